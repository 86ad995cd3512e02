/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL queries for the session rows and the
 * cached profile, account, and beneficiary snapshots.
 *
 * @notes
 * - Snapshot replacement runs as delete-then-insert inside one transaction,
 *   so the previous snapshot survives until the new one commits.
 * - The repository accepts the small PgxPool interface instead of a concrete
 *   *pgxpool.Pool, which pgxmock also satisfies in tests.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lumapay/wallet-service/internal/domain"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists for credential key")
	ErrProfileNotCached = errors.New("profile not cached")
)

// PgxPool is a minimal abstraction over a Postgres connection pool, used by
// the repository. It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db PgxPool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db PgxPool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, credential_key, secret_hash, environment, token, token_expires_at, created_at, updated_at`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	err := row.Scan(
		&session.ID,
		&session.CredentialKey,
		&session.SecretHash,
		&session.Environment,
		&session.Token,
		&session.TokenExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// FindSessionByCredentialKey retrieves a session by its local identity key.
func (r *PostgresRepository) FindSessionByCredentialKey(ctx context.Context, credentialKey string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM wallet_sessions WHERE credential_key = $1`
	return scanSession(r.db.QueryRow(ctx, query, credentialKey))
}

// FindSessionByID retrieves a session by its identifier.
func (r *PostgresRepository) FindSessionByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM wallet_sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

// CreateSession inserts a new unauthenticated session row. A concurrent
// insert for the same credential key surfaces as ErrSessionExists so the
// caller can re-read the winner's row.
func (r *PostgresRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO wallet_sessions (id, credential_key, secret_hash, environment)
		VALUES ($1, $2, $3, $4)
		RETURNING token, token_expires_at, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, session.ID, session.CredentialKey, session.SecretHash, session.Environment).Scan(
		&session.Token,
		&session.TokenExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionExists
		}
		return err
	}
	return nil
}

// ReplaceToken overwrites the session's token, expiry, environment, and
// secret hash in one update.
func (r *PostgresRepository) ReplaceToken(ctx context.Context, sessionID uuid.UUID, environment, secretHash, token string, expiresAt time.Time) error {
	query := `
		UPDATE wallet_sessions
		SET environment = $2, secret_hash = $3, token = $4, token_expires_at = $5, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, sessionID, environment, secretHash, token, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ReplaceProfile stores the profile snapshot for a session, overwriting any
// previous one.
func (r *PostgresRepository) ReplaceProfile(ctx context.Context, sessionID uuid.UUID, profile *domain.Profile) error {
	query := `
		INSERT INTO wallet_profiles (
			session_id, provider_user_id, first_name, last_name, email, phone_number, document_number, two_factor_type, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			provider_user_id = EXCLUDED.provider_user_id,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone_number = EXCLUDED.phone_number,
			document_number = EXCLUDED.document_number,
			two_factor_type = EXCLUDED.two_factor_type,
			updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query,
		sessionID,
		profile.ProviderUserID,
		profile.FirstName,
		profile.LastName,
		profile.Email,
		profile.PhoneNumber,
		profile.DocumentNumber,
		profile.TwoFactorType,
	)
	return err
}

// GetCachedProfile returns the last persisted profile snapshot for a session.
func (r *PostgresRepository) GetCachedProfile(ctx context.Context, sessionID uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	query := `
		SELECT session_id, provider_user_id, first_name, last_name, email, phone_number, document_number, two_factor_type, updated_at
		FROM wallet_profiles
		WHERE session_id = $1
	`
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&profile.SessionID,
		&profile.ProviderUserID,
		&profile.FirstName,
		&profile.LastName,
		&profile.Email,
		&profile.PhoneNumber,
		&profile.DocumentNumber,
		&profile.TwoFactorType,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotCached
		}
		return nil, err
	}
	return &profile, nil
}

// ReplaceAccounts replaces the session's full account snapshot atomically.
func (r *PostgresRepository) ReplaceAccounts(ctx context.Context, sessionID uuid.UUID, accounts []domain.Account) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM wallet_accounts WHERE session_id = $1`, sessionID); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO wallet_accounts (
			session_id, account_id, currency, balance, available_balance, pending_in, pending_out, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	for _, account := range accounts {
		if _, err := tx.Exec(ctx, insertQuery,
			sessionID,
			account.AccountID,
			account.Currency,
			account.Balance,
			account.AvailableBalance,
			account.PendingIn,
			account.PendingOut,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetCachedAccounts returns the last persisted account snapshot for a
// session. An empty snapshot is an empty slice, not an error.
func (r *PostgresRepository) GetCachedAccounts(ctx context.Context, sessionID uuid.UUID) ([]domain.Account, error) {
	query := `
		SELECT session_id, account_id, currency, balance, available_balance, pending_in, pending_out, updated_at
		FROM wallet_accounts
		WHERE session_id = $1
		ORDER BY account_id
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.SessionID,
			&account.AccountID,
			&account.Currency,
			&account.Balance,
			&account.AvailableBalance,
			&account.PendingIn,
			&account.PendingOut,
			&account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// ReplaceBeneficiaries replaces the session's full beneficiary snapshot
// atomically.
func (r *PostgresRepository) ReplaceBeneficiaries(ctx context.Context, sessionID uuid.UUID, beneficiaries []domain.Beneficiary) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM wallet_beneficiaries WHERE session_id = $1`, sessionID); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO wallet_beneficiaries (
			session_id, beneficiary_id, name, account_number, bank_code, bank_name, country, type, email, phone_number, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	for _, beneficiary := range beneficiaries {
		if _, err := tx.Exec(ctx, insertQuery,
			sessionID,
			beneficiary.BeneficiaryID,
			beneficiary.Name,
			beneficiary.AccountNumber,
			beneficiary.BankCode,
			beneficiary.BankName,
			beneficiary.Country,
			beneficiary.Type,
			beneficiary.Email,
			beneficiary.PhoneNumber,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetCachedBeneficiaries returns the last persisted beneficiary snapshot for
// a session. An empty snapshot is an empty slice, not an error.
func (r *PostgresRepository) GetCachedBeneficiaries(ctx context.Context, sessionID uuid.UUID) ([]domain.Beneficiary, error) {
	query := `
		SELECT session_id, beneficiary_id, name, account_number, bank_code, bank_name, country, type, email, phone_number, updated_at
		FROM wallet_beneficiaries
		WHERE session_id = $1
		ORDER BY beneficiary_id
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	beneficiaries := []domain.Beneficiary{}
	for rows.Next() {
		var beneficiary domain.Beneficiary
		if err := rows.Scan(
			&beneficiary.SessionID,
			&beneficiary.BeneficiaryID,
			&beneficiary.Name,
			&beneficiary.AccountNumber,
			&beneficiary.BankCode,
			&beneficiary.BankName,
			&beneficiary.Country,
			&beneficiary.Type,
			&beneficiary.Email,
			&beneficiary.PhoneNumber,
			&beneficiary.UpdatedAt,
		); err != nil {
			return nil, err
		}
		beneficiaries = append(beneficiaries, beneficiary)
	}
	return beneficiaries, rows.Err()
}

// ListSessionsWithValidToken returns sessions whose token is present and not
// yet expired at the given instant, most recently authenticated first. The
// background snapshot refresher feeds on this.
func (r *PostgresRepository) ListSessionsWithValidToken(ctx context.Context, asOf time.Time, limit int) ([]domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM wallet_sessions
		WHERE token <> '' AND token_expires_at > $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var session domain.Session
		if err := rows.Scan(
			&session.ID,
			&session.CredentialKey,
			&session.SecretHash,
			&session.Environment,
			&session.Token,
			&session.TokenExpiresAt,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
