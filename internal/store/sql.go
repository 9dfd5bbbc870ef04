package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type dialect struct {
	schema      []string
	placeholder func(n int) string
	isDuplicate func(err error) bool
}

var dialects = map[string]dialect{
	DriverSQLite: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS ai_responses (
				id TEXT PRIMARY KEY,
				prompt TEXT NOT NULL,
				response TEXT NOT NULL,
				category TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_responses_created_at ON ai_responses (created_at)`,
		},
		placeholder: questionMark,
		isDuplicate: func(err error) bool {
			var liteErr sqlite3.Error
			return errors.As(err, &liteErr) &&
				(liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || liteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
		},
	},
	DriverPostgres: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS ai_responses (
				id VARCHAR(255) PRIMARY KEY,
				prompt TEXT NOT NULL,
				response TEXT NOT NULL,
				category VARCHAR(100) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id VARCHAR(255)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_responses_created_at ON ai_responses (created_at DESC)`,
		},
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		isDuplicate: func(err error) bool {
			var pqErr *pq.Error
			return errors.As(err, &pqErr) && pqErr.Code == "23505"
		},
	},
	DriverMySQL: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS ai_responses (
				id VARCHAR(255) NOT NULL PRIMARY KEY,
				prompt TEXT NOT NULL,
				response MEDIUMTEXT NOT NULL,
				category VARCHAR(100) NOT NULL,
				created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
				user_id VARCHAR(255) NULL,
				INDEX idx_ai_responses_created_at (created_at)
			)`,
		},
		placeholder: questionMark,
		isDuplicate: func(err error) bool {
			var myErr *mysql.MySQLError
			return errors.As(err, &myErr) && myErr.Number == 1062
		},
	},
}

func questionMark(int) string { return "?" }

// SQLStore persists responses in the ai_responses table of a SQLite,
// PostgreSQL or MySQL database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLStore opens and pings the database. The schema is not touched until
// CreateSchema is called.
func NewSQLStore(ctx context.Context, driver, dataSourceName string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// A single connection avoids "database is locked" under concurrent writes.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(30 * time.Second)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) CreateSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Insert(ctx context.Context, rec *GeneratedResponse) (*GeneratedResponse, error) {
	stored := *rec
	stored.CreatedAt = normalizeTime(stored.CreatedAt)

	query := fmt.Sprintf(
		"INSERT INTO ai_responses (id, prompt, response, category, created_at, user_id) VALUES (%s)",
		s.placeholders(6),
	)
	var userID sql.NullString
	if stored.UserID != "" {
		userID = sql.NullString{String: stored.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		stored.ID, stored.Prompt, stored.Response, string(stored.Category), stored.CreatedAt, userID)
	if err != nil {
		if s.dialect.isDuplicate(err) {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("failed to execute response insert: %w", err)
	}
	return &stored, nil
}

func (s *SQLStore) SelectRecent(ctx context.Context, limit int) ([]GeneratedResponse, error) {
	query := fmt.Sprintf(`
        SELECT id, prompt, response, category, created_at, user_id
        FROM ai_responses
        ORDER BY created_at DESC, id DESC
        LIMIT %s
    `, s.dialect.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	responses := []GeneratedResponse{}
	for rows.Next() {
		rec, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}
	return responses, nil
}

func (s *SQLStore) SelectByID(ctx context.Context, id string) (*GeneratedResponse, error) {
	query := fmt.Sprintf(
		"SELECT id, prompt, response, category, created_at, user_id FROM ai_responses WHERE id = %s",
		s.dialect.placeholder(1),
	)
	rec, err := scanResponse(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLStore) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.dialect.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResponse(row rowScanner) (*GeneratedResponse, error) {
	var rec GeneratedResponse
	var category string
	var userID sql.NullString
	if err := row.Scan(&rec.ID, &rec.Prompt, &rec.Response, &category, &rec.CreatedAt, &userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan response row: %w", err)
	}
	rec.Category = Category(category)
	rec.CreatedAt = rec.CreatedAt.UTC()
	if userID.Valid {
		rec.UserID = userID.String
	}
	return &rec, nil
}
