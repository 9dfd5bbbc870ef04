package store

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateID is returned by Insert when a record with the same id exists.
var ErrDuplicateID = errors.New("response with this id already exists")

// Store persists generated responses. Records are append-only.
type Store interface {
	CreateSchema(ctx context.Context) error
	Insert(ctx context.Context, rec *GeneratedResponse) (*GeneratedResponse, error)
	// SelectRecent returns at most limit records, newest first.
	SelectRecent(ctx context.Context, limit int) ([]GeneratedResponse, error)
	// SelectByID returns nil and no error when the id is unknown.
	SelectByID(ctx context.Context, id string) (*GeneratedResponse, error)
	Ping(ctx context.Context) error
	Close() error
}

// normalizeTime keeps timestamps at the precision every backend can round-trip.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
