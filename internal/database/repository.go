package database

import (
	"context"
	"errors"
)

// DescriptorCache stores reference descriptors so the reference picture does
// not have to be sent to the embedding server on every attempt.
type DescriptorCache interface {
	// GetDescriptor returns the cached descriptor, or nil if there is none for
	// this account and picture hash extracted by model.
	GetDescriptor(ctx context.Context, accountID, pictureHash, model string) (*StoredDescriptor, error)
	// SaveDescriptor stores the descriptor, replacing any previous one for the account.
	SaveDescriptor(ctx context.Context, d StoredDescriptor) error
	// ListDescriptors returns every cached descriptor.
	ListDescriptors(ctx context.Context) ([]StoredDescriptor, error)
	// DeleteDescriptor drops the cached descriptor for an account.
	DeleteDescriptor(ctx context.Context, accountID string) error
}

// SessionStore persists login sessions.
type SessionStore interface {
	Save(ctx context.Context, s StoredSession) error
	// Get returns nil when the session is missing or expired.
	Get(ctx context.Context, id string) (*StoredSession, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// AttemptRecorder writes audit entries for resolved attempts.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord) error
}

// AttemptReader lists audit entries.
type AttemptReader interface {
	// RecentAttempts returns the newest attempts for an account, newest first.
	RecentAttempts(ctx context.Context, accountID string, limit int) ([]AttemptRecord, error)
}

// MultiRecorder fans an audit entry out to several recorders. Every recorder
// is called; the errors are joined.
type MultiRecorder []AttemptRecorder

func (m MultiRecorder) RecordAttempt(ctx context.Context, rec AttemptRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordAttempt(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
