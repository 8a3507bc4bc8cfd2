package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

// MFAStore combines the user and backup-code repositories behind the
// transactional surface the MFA service needs.
type MFAStore struct {
	db    *sql.DB
	users *UsersRepository
	codes *BackupCodesRepository
}

// NewMFAStore creates a new MFA store.
func NewMFAStore(db *sql.DB, users *UsersRepository, codes *BackupCodesRepository) *MFAStore {
	return &MFAStore{db: db, users: users, codes: codes}
}

// ReplaceSetup stores the encrypted TOTP secret and a fresh batch of backup
// codes in one transaction, discarding any previous enrollment material.
// Either both writes land or neither does.
func (s *MFAStore) ReplaceSetup(ctx context.Context, userID uuid.UUID, encryptedSecret string, codes []*domain.BackupCode) error {
	return Tx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.users.SetMFASecretTx(ctx, tx, userID, encryptedSecret); err != nil {
			return err
		}
		if err := s.codes.DeleteAllByUserIDTx(ctx, tx, userID); err != nil {
			return err
		}
		return s.codes.CreateBatchTx(ctx, tx, codes)
	})
}

// ListUnused returns the user's unused backup codes.
func (s *MFAStore) ListUnused(ctx context.Context, userID uuid.UUID) ([]*domain.BackupCode, error) {
	return s.codes.ListUnused(ctx, userID)
}

// MarkUsed consumes a backup code.
func (s *MFAStore) MarkUsed(ctx context.Context, codeID, userID uuid.UUID) error {
	return s.codes.MarkUsed(ctx, codeID, userID)
}

// CountUnused returns the number of unused backup codes.
func (s *MFAStore) CountUnused(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.codes.CountUnused(ctx, userID)
}
