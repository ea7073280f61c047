// Package storage persists bigram tables and feedback sessions.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/refine/internal/bigram"
	"github.com/hyperjump/refine/internal/models"
)

// Storage defines bigram cache and session journal operations.
type Storage interface {
	// Bigram cache
	LoadBigrams(ctx context.Context, fingerprint string) (map[bigram.Pair]int, bool, error)
	SaveBigrams(ctx context.Context, fingerprint, source string, counts map[bigram.Pair]int) error

	// Session journal
	StartSession(ctx context.Context, id, seedQuery string, targetPrecision float64, startedAt time.Time) error
	RecordRound(ctx context.Context, sessionID string, round *models.Round) error
	FinishSession(ctx context.Context, outcome *models.Outcome) error

	// History
	ListSessions(ctx context.Context, offset, limit int) ([]*models.SessionSummary, error)
	GetRounds(ctx context.Context, sessionID string) ([]*models.Round, error)

	Close() error
}
