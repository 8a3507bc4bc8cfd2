package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/backoffice-kit/authcore/pkg/domain"
)

const sessionColumns = `id, user_id, token_hash, purpose, fingerprint, device_info, browser, ip,
	       remember_me, created_at, expires_at, revoked_at, last_used_at`

// SessionsRepository handles session and password-reset-artifact
// persistence. Both share the sessions table, distinguished by purpose;
// reset rows never show up in listings or fingerprint reuse.
//
// Every mutation predicate includes user_id so no operation can touch a
// session belonging to a different user.
type SessionsRepository struct {
	db *sql.DB
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db *sql.DB) *SessionsRepository {
	return &SessionsRepository{db: db}
}

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	s := &domain.Session{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.Purpose, &s.Fingerprint,
		&s.DeviceInfo, &s.Browser, &s.IP, &s.RememberMe,
		&s.CreatedAt, &s.ExpiresAt, &s.RevokedAt, &s.LastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session row.
func (r *SessionsRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, purpose, fingerprint, device_info,
		                      browser, ip, remember_me, created_at, expires_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.TokenHash, session.Purpose,
		session.Fingerprint, session.DeviceInfo, session.Browser, session.IP,
		session.RememberMe, session.CreatedAt, session.ExpiresAt, session.LastUsedAt,
	)
	return err
}

// GetByTokenHash retrieves a session of the given purpose by token hash.
func (r *SessionsRepository) GetByTokenHash(ctx context.Context, tokenHash string, purpose domain.SessionPurpose) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE token_hash = $1 AND purpose = $2
	`
	return scanSession(r.db.QueryRowContext(ctx, query, tokenHash, purpose))
}

// FindLiveByFingerprint returns the most-recently-used live session for the
// user matching the fingerprint exactly, excluding password-reset rows.
func (r *SessionsRepository) FindLiveByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND fingerprint = $2 AND purpose = $3
		  AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY last_used_at DESC
		LIMIT 1
	`
	return scanSession(r.db.QueryRowContext(ctx, query, userID, fingerprint, domain.SessionPurposeSession))
}

// ReuseOrCreate atomically reuses a live session with the same fingerprint
// (rotating its token hash and extending expiry) or inserts a new row. The
// row lock makes concurrent logins from the same device converge on one
// session instead of racing duplicate inserts; in-process locks would not
// cover multiple server instances.
func (r *SessionsRepository) ReuseOrCreate(ctx context.Context, session *domain.Session) (reused bool, err error) {
	err = Tx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			SELECT ` + sessionColumns + `
			FROM sessions
			WHERE user_id = $1 AND fingerprint = $2 AND purpose = $3
			  AND revoked_at IS NULL AND expires_at > NOW()
			ORDER BY last_used_at DESC
			LIMIT 1
			FOR UPDATE
		`
		existing, scanErr := scanSession(tx.QueryRowContext(ctx, query,
			session.UserID, session.Fingerprint, domain.SessionPurposeSession))
		if scanErr != nil && !errors.Is(scanErr, domain.ErrSessionNotFound) {
			return scanErr
		}

		if existing != nil {
			update := `
				UPDATE sessions
				SET token_hash = $3, expires_at = $4, remember_me = $5,
				    ip = $6, last_used_at = NOW()
				WHERE id = $1 AND user_id = $2
			`
			if _, err := tx.ExecContext(ctx, update,
				existing.ID, session.UserID, session.TokenHash,
				session.ExpiresAt, session.RememberMe, session.IP,
			); err != nil {
				return err
			}
			session.ID = existing.ID
			session.CreatedAt = existing.CreatedAt
			reused = true
			return nil
		}

		insert := `
			INSERT INTO sessions (id, user_id, token_hash, purpose, fingerprint, device_info,
			                      browser, ip, remember_me, created_at, expires_at, last_used_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err := tx.ExecContext(ctx, insert,
			session.ID, session.UserID, session.TokenHash, session.Purpose,
			session.Fingerprint, session.DeviceInfo, session.Browser, session.IP,
			session.RememberMe, session.CreatedAt, session.ExpiresAt, session.LastUsedAt,
		)
		return err
	})
	return reused, err
}

// Rotate replaces a session's token hash and expiry, refreshing last-used.
func (r *SessionsRepository) Rotate(ctx context.Context, sessionID, userID uuid.UUID, newTokenHash string, newExpiry sql.NullTime) error {
	query := `
		UPDATE sessions
		SET token_hash = $3,
		    expires_at = COALESCE($4, expires_at),
		    last_used_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, sessionID, userID, newTokenHash, newExpiry)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Revoke revokes a session by ID, scoped to the owning user.
func (r *SessionsRepository) Revoke(ctx context.Context, sessionID, userID uuid.UUID) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, sessionID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// RevokeByTokenHash revokes the session carrying the given token hash,
// scoped to the owning user.
func (r *SessionsRepository) RevokeByTokenHash(ctx context.Context, tokenHash string, userID uuid.UUID) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW()
		WHERE token_hash = $1 AND user_id = $2 AND revoked_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, tokenHash, userID)
	return err
}

// RevokeAll revokes every live session for a user, optionally sparing the
// one matching exceptTokenHash.
func (r *SessionsRepository) RevokeAll(ctx context.Context, userID uuid.UUID, exceptTokenHash *string) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
		  AND ($2::text IS NULL OR token_hash <> $2)
	`
	_, err := r.db.ExecContext(ctx, query, userID, exceptTokenHash)
	return err
}

// ListActive returns the user's live sessions, most-recently-used first,
// excluding revoked, expired, and password-reset rows.
func (r *SessionsRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND purpose = $2
		  AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY last_used_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, domain.SessionPurposeSession)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// PurgeExpired hard-deletes rows past expiry. Runs on a schedule, not tied
// to any request.
func (r *SessionsRepository) PurgeExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at < NOW()
	`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
