package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/biogate/internal/database"
	"github.com/lib/pq"
)

// AttemptRepository stores the login attempt audit log.
type AttemptRepository struct {
	pool *Pool
}

// NewAttemptRepository creates a new attempt repository.
func NewAttemptRepository(pool *Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// RecordAttempt inserts an audit entry. Re-recording the same attempt ID is a no-op.
func (r *AttemptRepository) RecordAttempt(ctx context.Context, rec database.AttemptRecord) error {
	query := `
		INSERT INTO login_attempts (
			id, account_id, success, status,
			face_matched, face_distance, audio_matched, audio_score, speech_matched,
			failure_reasons, started_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	reasons := rec.FailureReasons
	if reasons == nil {
		reasons = []string{}
	}

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.AccountID, rec.Success, rec.Status,
		rec.FaceMatched, rec.FaceDistance, rec.AudioMatched, rec.AudioScore, rec.SpeechMatched,
		pq.Array(reasons), rec.StartedAt, rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns the newest attempts for an account.
func (r *AttemptRepository) RecentAttempts(ctx context.Context, accountID string, limit int) ([]database.AttemptRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, success, status,
			face_matched, face_distance, audio_matched, audio_score, speech_matched,
			failure_reasons, started_at, resolved_at
		FROM login_attempts
		WHERE account_id = $1
		ORDER BY resolved_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	defer rows.Close()

	var result []database.AttemptRecord
	for rows.Next() {
		var rec database.AttemptRecord
		if err := rows.Scan(
			&rec.ID, &rec.AccountID, &rec.Success, &rec.Status,
			&rec.FaceMatched, &rec.FaceDistance, &rec.AudioMatched, &rec.AudioScore, &rec.SpeechMatched,
			pq.Array(&rec.FailureReasons), &rec.StartedAt, &rec.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return result, nil
}
