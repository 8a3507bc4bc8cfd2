package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// BackupCodesRepository handles MFA backup code persistence. Codes are
// stored only as bcrypt hashes, so verification is a linear scan over the
// user's unused rows (at most ten) rather than an index lookup.
type BackupCodesRepository struct {
	db *sql.DB
}

// NewBackupCodesRepository creates a new backup codes repository.
func NewBackupCodesRepository(db *sql.DB) *BackupCodesRepository {
	return &BackupCodesRepository{db: db}
}

// CreateBatchTx inserts backup codes within an existing transaction.
func (r *BackupCodesRepository) CreateBatchTx(ctx context.Context, tx *sql.Tx, codes []*domain.BackupCode) error {
	query := `
		INSERT INTO backup_codes (id, user_id, code_hash, used, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, code := range codes {
		if _, err := stmt.ExecContext(ctx,
			code.ID, code.UserID, code.CodeHash, code.Used, code.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert backup code: %w", err)
		}
	}
	return nil
}

// DeleteAllByUserIDTx removes all backup codes for a user within an
// existing transaction.
func (r *BackupCodesRepository) DeleteAllByUserIDTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	query := `DELETE FROM backup_codes WHERE user_id = $1`
	_, err := tx.ExecContext(ctx, query, userID)
	return err
}

// ListUnused returns the user's unused backup codes.
func (r *BackupCodesRepository) ListUnused(ctx context.Context, userID uuid.UUID) ([]*domain.BackupCode, error) {
	query := `
		SELECT id, user_id, code_hash, used, used_at, created_at
		FROM backup_codes
		WHERE user_id = $1 AND used = false
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*domain.BackupCode
	for rows.Next() {
		code := &domain.BackupCode{}
		if err := rows.Scan(
			&code.ID, &code.UserID, &code.CodeHash, &code.Used, &code.UsedAt, &code.CreatedAt,
		); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// MarkUsed atomically marks an unused code as used. A code that was already
// consumed is reported as invalid, which makes each code single-use.
func (r *BackupCodesRepository) MarkUsed(ctx context.Context, codeID, userID uuid.UUID) error {
	query := `
		UPDATE backup_codes
		SET used = true, used_at = NOW()
		WHERE id = $1 AND user_id = $2 AND used = false
	`
	result, err := r.db.ExecContext(ctx, query, codeID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrInvalidMFACode
	}
	return nil
}

// CountUnused returns the number of unused backup codes for a user.
func (r *BackupCodesRepository) CountUnused(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM backup_codes
		WHERE user_id = $1 AND used = false
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	return count, err
}
