package mariadb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/biogate/internal/database"
)

const createAttemptsTable = `
CREATE TABLE IF NOT EXISTS login_attempts (
	id              CHAR(36) PRIMARY KEY,
	account_id      VARCHAR(255) NOT NULL,
	success         BOOLEAN NOT NULL,
	status          VARCHAR(16) NOT NULL,
	face_matched    BOOLEAN NOT NULL,
	face_distance   DOUBLE NOT NULL,
	audio_matched   BOOLEAN NOT NULL,
	audio_score     DOUBLE NOT NULL,
	speech_matched  BOOLEAN NOT NULL,
	failure_reasons TEXT NOT NULL,
	started_at      DATETIME(3) NOT NULL,
	resolved_at     DATETIME(3) NOT NULL,
	INDEX idx_login_attempts_account (account_id, resolved_at)
)`

// EnsureSchema creates the audit table when it does not exist.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createAttemptsTable); err != nil {
		return fmt.Errorf("create login_attempts table: %w", err)
	}
	return nil
}

// RecordAttempt inserts an audit entry. Failure reasons are stored as a JSON list.
func (p *Pool) RecordAttempt(ctx context.Context, rec database.AttemptRecord) error {
	reasons := rec.FailureReasons
	if reasons == nil {
		reasons = []string{}
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal failure reasons: %w", err)
	}

	query := `INSERT IGNORE INTO login_attempts (
		id, account_id, success, status,
		face_matched, face_distance, audio_matched, audio_score, speech_matched,
		failure_reasons, started_at, resolved_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := p.db.ExecContext(ctx, query,
		rec.ID, rec.AccountID, rec.Success, rec.Status,
		rec.FaceMatched, rec.FaceDistance, rec.AudioMatched, rec.AudioScore, rec.SpeechMatched,
		string(data), rec.StartedAt.UTC(), rec.ResolvedAt.UTC(),
	); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns the newest attempts for an account.
func (p *Pool) RecentAttempts(ctx context.Context, accountID string, limit int) ([]database.AttemptRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `SELECT id, account_id, success, status,
		face_matched, face_distance, audio_matched, audio_score, speech_matched,
		failure_reasons, started_at, resolved_at
		FROM login_attempts WHERE account_id = ? ORDER BY resolved_at DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	defer rows.Close()

	var result []database.AttemptRecord
	for rows.Next() {
		var rec database.AttemptRecord
		var reasons string
		if err := rows.Scan(
			&rec.ID, &rec.AccountID, &rec.Success, &rec.Status,
			&rec.FaceMatched, &rec.FaceDistance, &rec.AudioMatched, &rec.AudioScore, &rec.SpeechMatched,
			&reasons, &rec.StartedAt, &rec.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(reasons), &rec.FailureReasons); err != nil {
			return nil, fmt.Errorf("parse failure reasons for %s: %w", rec.ID, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return result, nil
}
