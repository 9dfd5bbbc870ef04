package config

import (
	"fmt"
	"net"
	neturl "net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// AIMode is the generation backend chosen at startup.
type AIMode string

const (
	AIModeGemini      AIMode = "gemini"
	AIModeMock        AIMode = "mock"
	AIModeUnavailable AIMode = "unavailable"
)

// StorageDriver is the persistence backend chosen at startup.
type StorageDriver string

const (
	DriverMemory   StorageDriver = "memory"
	DriverSQLite   StorageDriver = "sqlite"
	DriverPostgres StorageDriver = "postgres"
	DriverMySQL    StorageDriver = "mysql"
)

// Mode is resolved once from Config and handed to the components that care.
type Mode struct {
	AI      AIMode
	Storage StorageDriver
}

func (m Mode) String() string {
	return fmt.Sprintf("ai=%s storage=%s", m.AI, m.Storage)
}

func (c AIConfig) Mode() AIMode {
	if c.GeminiAPIKey != "" {
		return AIModeGemini
	}
	if c.MissingKeyPolicy == PolicyReject {
		return AIModeUnavailable
	}
	return AIModeMock
}

type StorageConfig struct {
	Driver     StorageDriver
	URL        string
	Host       string
	Port       int
	Name       string
	User       string
	Password   string
	SSL        bool
	SQLitePath string
}

// DSN returns the data source name for the configured SQL driver. DATABASE_URL
// wins over the individual DB_* settings.
func (c StorageConfig) DSN() (string, error) {
	switch c.Driver {
	case DriverSQLite:
		if c.URL != "" {
			return c.URL, nil
		}
		return c.SQLitePath, nil
	case DriverPostgres:
		if c.URL != "" {
			return c.URL, nil
		}
		return c.postgresDSN(), nil
	case DriverMySQL:
		if c.URL != "" {
			cfg, err := mysql.ParseDSN(c.URL)
			if err != nil {
				return "", fmt.Errorf("invalid mysql DATABASE_URL: %w", err)
			}
			return mysqlUTC(cfg).FormatDSN(), nil
		}
		return c.mysqlDSN(), nil
	default:
		return "", nil
	}
}

func (c StorageConfig) portOrDefault(defaultPort int) string {
	if c.Port > 0 {
		return strconv.Itoa(c.Port)
	}
	return strconv.Itoa(defaultPort)
}

func (c StorageConfig) postgresDSN() string {
	sslMode := "disable"
	if c.SSL {
		sslMode = "require"
	}
	u := &neturl.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, c.portOrDefault(5432)),
		Path:     "/" + c.Name,
		RawQuery: neturl.Values{"sslmode": {sslMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = neturl.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = neturl.User(c.User)
	}
	return u.String()
}

func (c StorageConfig) mysqlDSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, c.portOrDefault(3306))
	cfg.DBName = c.Name
	if c.SSL {
		cfg.TLSConfig = "skip-verify"
	}
	return mysqlUTC(cfg).FormatDSN()
}

// mysqlUTC makes DATETIME columns scan into time.Time in UTC.
func mysqlUTC(cfg *mysql.Config) *mysql.Config {
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg
}
