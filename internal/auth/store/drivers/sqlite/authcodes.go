package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/store"
)

type authCodesRepo struct {
	db dbtx
}

const authCodeSelect = `SELECT id, user_id, client_id, code_hash, scopes, code_challenge,
	expires_at, consumed_at, created_at, updated_at FROM authentication_codes`

func (r *authCodesRepo) CreateAuthenticationCode(ctx context.Context, c domain.AuthenticationCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authentication_codes (id, user_id, client_id, code_hash, scopes, code_challenge,
			expires_at, consumed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ClientID, c.CodeHash, joinScopes(c.Scopes), c.CodeChallenge,
		c.ExpiresAt, mapOptionalTime(c.ConsumedAt), c.CreatedAt, c.UpdatedAt)
	return mapConflict(err)
}

func (r *authCodesRepo) GetAuthenticationCodeByHash(ctx context.Context, hash string) (domain.AuthenticationCode, error) {
	return scanAuthCode(r.db.QueryRowContext(ctx, authCodeSelect+` WHERE code_hash = ?`, hash))
}

func (r *authCodesRepo) GetAuthenticationCodeByID(ctx context.Context, id string) (domain.AuthenticationCode, error) {
	return scanAuthCode(r.db.QueryRowContext(ctx, authCodeSelect+` WHERE id = ?`, id))
}

// MarkAuthenticationCodeConsumed only stamps codes that are still unconsumed,
// so a concurrent double-redeem loses the race instead of silently passing.
func (r *authCodesRepo) MarkAuthenticationCodeConsumed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE authentication_codes SET consumed_at = ?, updated_at = ?
		 WHERE id = ? AND consumed_at IS NULL`,
		now, now, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *authCodesRepo) DeleteExpiredAuthenticationCodes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authentication_codes WHERE expires_at < ?`, time.Now().UTC())
	return err
}

func scanAuthCode(row *sql.Row) (domain.AuthenticationCode, error) {
	var (
		c          domain.AuthenticationCode
		scopes     string
		consumedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.ClientID, &c.CodeHash, &scopes, &c.CodeChallenge,
		&c.ExpiresAt, &consumedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.AuthenticationCode{}, mapNotFound(err)
	}
	c.Scopes = splitScopes(scopes)
	c.ConsumedAt = mapNullTimePtr(consumedAt)
	return c, nil
}
