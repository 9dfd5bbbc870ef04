package core

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"vibecode.dev/vibe-code/internal/store"
)

const (
	MaxPromptLength     = 1000
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// ResponseService validates requests, calls the generator and reads and
// writes the store.
type ResponseService struct {
	store store.Store
	gen   Generator
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewResponseService(st store.Store, gen Generator, log *zap.Logger) *ResponseService {
	return &ResponseService{
		store: st,
		gen:   gen,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Generate produces a new response record. The record is not persisted;
// clients keep the ones they like through Save.
func (s *ResponseService) Generate(ctx context.Context, prompt string, category store.Category) (*store.GeneratedResponse, error) {
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(string(category)) == "" {
		return nil, validationError("Prompt and category are required")
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return nil, validationError("Prompt is too long (max 1000 characters)")
	}

	text, err := s.gen.Generate(ctx, prompt, category)
	if err != nil {
		var coreErr *Error
		if errors.As(err, &coreErr) {
			return nil, err
		}
		s.log.Error("AI generation failed", zap.String("category", string(category)), zap.Error(err))
		return nil, upstreamError(err)
	}

	return &store.GeneratedResponse{
		ID:        s.newID(),
		Prompt:    prompt,
		Response:  text,
		Category:  category,
		CreatedAt: s.now().UTC(),
		UserID:    store.AnonymousUserID,
	}, nil
}

// Save persists a record produced by Generate.
func (s *ResponseService) Save(ctx context.Context, rec *store.GeneratedResponse) (*store.GeneratedResponse, error) {
	if rec == nil || rec.MissingRequiredFields() {
		return nil, validationError("Missing required fields")
	}

	toSave := *rec
	if toSave.CreatedAt.IsZero() {
		toSave.CreatedAt = s.now().UTC()
	}
	if strings.TrimSpace(toSave.UserID) == "" {
		toSave.UserID = store.AnonymousUserID
	}

	saved, err := s.store.Insert(ctx, &toSave)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			return nil, &Error{Kind: KindConflict, Message: "Response with this id already exists", Err: err}
		}
		s.log.Error("Failed to save AI response", zap.String("id", toSave.ID), zap.Error(err))
		return nil, internalError("Failed to save AI response", err)
	}
	return saved, nil
}

// History returns the most recent records, newest first.
func (s *ResponseService) History(ctx context.Context, limit int) ([]store.GeneratedResponse, error) {
	limit = ClampHistoryLimit(limit)
	records, err := s.store.SelectRecent(ctx, limit)
	if err != nil {
		s.log.Error("Failed to fetch AI response history", zap.Int("limit", limit), zap.Error(err))
		return nil, internalError("Failed to fetch AI response history", err)
	}
	return records, nil
}

// Get returns a single stored record.
func (s *ResponseService) Get(ctx context.Context, id string) (*store.GeneratedResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationError("Response id is required")
	}
	rec, err := s.store.SelectByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to fetch AI response", zap.String("id", id), zap.Error(err))
		return nil, internalError("Failed to fetch AI response", err)
	}
	if rec == nil {
		return nil, &Error{Kind: KindNotFound, Message: "Response not found"}
	}
	return rec, nil
}

// Ping reports whether the store is reachable.
func (s *ResponseService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ClampHistoryLimit maps non-positive limits to the default and caps the rest.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
