package database

import (
	"time"
)

// StoredDescriptor is a reference face descriptor cached for an account.
// PictureHash is the hex SHA-256 of the reference picture it was extracted
// from, so a replaced picture invalidates the cache entry.
type StoredDescriptor struct {
	AccountID   string
	PictureHash string
	Descriptor  []float32
	Model       string
	CreatedAt   time.Time
}

// StoredSession is a persisted login session.
type StoredSession struct {
	ID        string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AttemptRecord is the audit entry written when a login attempt resolves.
type AttemptRecord struct {
	ID             string
	AccountID      string
	Success        bool
	Status         string
	FaceMatched    bool
	FaceDistance   float64
	AudioMatched   bool
	AudioScore     float64
	SpeechMatched  bool
	FailureReasons []string
	StartedAt      time.Time
	ResolvedAt     time.Time
}

// Duration returns how long the attempt took.
func (r AttemptRecord) Duration() time.Duration {
	return r.ResolvedAt.Sub(r.StartedAt)
}
