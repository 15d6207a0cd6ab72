package session

import (
	"context"
	"time"
)

// Store persists sessions. Get returns (nil, nil) for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	// GetMostRecentWithSymptom returns the most recently created unexpired
	// session that has a symptom, or nil.
	GetMostRecentWithSymptom(ctx context.Context) (*Session, error)
	// Save writes s if its Revision still matches the stored one, then bumps
	// s.Revision. A stale revision fails with ErrRevisionConflict.
	Save(ctx context.Context, s *Session) error
	Purger
}

// Purger removes sessions whose ExpiresAt is before now.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
