package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/biogate/internal/database"
	"github.com/pgvector/pgvector-go"
)

// DescriptorRepository caches reference descriptors in a pgvector column.
type DescriptorRepository struct {
	pool *Pool
}

// NewDescriptorRepository creates a new descriptor repository.
func NewDescriptorRepository(pool *Pool) *DescriptorRepository {
	return &DescriptorRepository{pool: pool}
}

// GetDescriptor returns nil when nothing is cached for this account and
// picture hash, or when the cached descriptor came from another model.
func (r *DescriptorRepository) GetDescriptor(ctx context.Context, accountID, pictureHash, model string) (*database.StoredDescriptor, error) {
	query := `
		SELECT account_id, picture_hash, descriptor, model, created_at
		FROM reference_descriptors
		WHERE account_id = $1 AND picture_hash = $2 AND model = $3
	`

	var d database.StoredDescriptor
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, query, accountID, pictureHash, model).Scan(
		&d.AccountID,
		&d.PictureHash,
		&vec,
		&d.Model,
		&d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get descriptor: %w", err)
	}

	d.Descriptor = vec.Slice()
	return &d, nil
}

// SaveDescriptor upserts the descriptor for the account.
func (r *DescriptorRepository) SaveDescriptor(ctx context.Context, d database.StoredDescriptor) error {
	if len(d.Descriptor) == 0 {
		return errors.New("descriptor is empty")
	}

	query := `
		INSERT INTO reference_descriptors (account_id, picture_hash, descriptor, model, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			picture_hash = EXCLUDED.picture_hash,
			descriptor = EXCLUDED.descriptor,
			model = EXCLUDED.model,
			created_at = EXCLUDED.created_at
	`

	_, err := r.pool.Exec(ctx, query, d.AccountID, d.PictureHash, pgvector.NewVector(d.Descriptor), d.Model)
	if err != nil {
		return fmt.Errorf("save descriptor: %w", err)
	}
	return nil
}

// ListDescriptors returns every cached descriptor ordered by account.
func (r *DescriptorRepository) ListDescriptors(ctx context.Context) ([]database.StoredDescriptor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT account_id, picture_hash, descriptor, model, created_at
		FROM reference_descriptors
		ORDER BY account_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer rows.Close()

	var result []database.StoredDescriptor
	for rows.Next() {
		var d database.StoredDescriptor
		var vec pgvector.Vector
		if err := rows.Scan(&d.AccountID, &d.PictureHash, &vec, &d.Model, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		d.Descriptor = vec.Slice()
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}
	return result, nil
}

// DeleteDescriptor removes the cached descriptor for an account.
func (r *DescriptorRepository) DeleteDescriptor(ctx context.Context, accountID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM reference_descriptors WHERE account_id = $1", accountID); err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}
	return nil
}
