package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

const userColumns = `id, email, name, password_hash, status, mfa_enabled, mfa_secret,
	       verification_token_hash, verification_token_expiry, email_verified_at,
	       created_at, updated_at, deleted_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Status,
		&user.MFAEnabled, &user.MFASecret,
		&user.VerificationTokenHash, &user.VerificationTokenExpiry, &user.EmailVerifiedAt,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, status, mfa_enabled,
		                   verification_token_hash, verification_token_expiry,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, strings.ToLower(user.Email), user.Name, user.PasswordHash,
		user.Status, user.MFAEnabled,
		user.VerificationTokenHash, user.VerificationTokenExpiry,
		user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
	`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetPendingByVerificationTokenHash finds a pending user whose email
// verification token matches and has not expired.
func (r *UsersRepository) GetPendingByVerificationTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE verification_token_hash = $1
		  AND status = $2
		  AND verification_token_expiry > NOW()
		  AND deleted_at IS NULL
	`
	return scanUser(r.db.QueryRowContext(ctx, query, tokenHash, domain.UserStatusPending))
}

// UpdatePasswordHash updates a user's password hash.
func (r *UsersRepository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID, hash)
	return err
}

// SetVerificationToken stores a fresh verification token hash and expiry,
// implicitly invalidating any previous token.
func (r *UsersRepository) SetVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiry sql.NullTime) error {
	query := `
		UPDATE users
		SET verification_token_hash = $2, verification_token_expiry = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiry)
	return err
}

// MarkEmailVerified flips a pending user to active, clears the verification
// token fields, and stamps the verified-at time.
func (r *UsersRepository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET status = $2,
		    verification_token_hash = NULL,
		    verification_token_expiry = NULL,
		    email_verified_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, userID, domain.UserStatusActive, domain.UserStatusPending)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetMFASecretTx stores the encrypted TOTP secret within a transaction,
// leaving mfa_enabled untouched.
func (r *UsersRepository) SetMFASecretTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, encryptedSecret string) error {
	query := `
		UPDATE users
		SET mfa_secret = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := tx.ExecContext(ctx, query, userID, encryptedSecret)
	return err
}

// SetMFAEnabled flips the mfa_enabled flag.
func (r *UsersRepository) SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	query := `
		UPDATE users
		SET mfa_enabled = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, userID, enabled)
	return err
}
