package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"jupiter/internal/domain"
)

// APIKey is a long-lived credential of a user. Only its hash is stored.
type APIKey struct {
	ID          string          `json:"id"`
	UserRefID   domain.EntityID `json:"user_ref_id"`
	Name        string          `json:"name,omitempty"`
	KeyHash     string          `json:"-"`
	CreatedTime time.Time       `json:"created_time"`
}

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// APIKeys is the api_keys table bound to a transaction.
type APIKeys struct {
	tx *sql.Tx
}

func NewAPIKeys(tx *sql.Tx) APIKeys { return APIKeys{tx: tx} }

// Insert stores a hashed API key. KeyHash must already contain the hashed value.
func (r APIKeys) Insert(ctx context.Context, key APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.UserRefID == domain.BadRefID {
		return errors.New("user_ref_id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	_, err := r.tx.ExecContext(ctx, `INSERT INTO api_keys(id, user_ref_id, name, key_hash, created_time) VALUES (?,?,?,?,?)`,
		key.ID, int64(key.UserRefID), nullableString(key.Name), key.KeyHash, formatTime(key.CreatedTime))
	if isUniqueViolation(err) {
		return fmt.Errorf("api key: %w", domain.ErrEntityAlreadyExists)
	}
	return err
}

// GetByHash returns an API key by its hashed value.
func (r APIKeys) GetByHash(ctx context.Context, hash string) (APIKey, error) {
	keys, err := r.query(ctx, `WHERE key_hash=? LIMIT 1`, hash)
	if err != nil {
		return APIKey{}, err
	}
	if len(keys) == 0 {
		return APIKey{}, fmt.Errorf("api key: %w", domain.ErrEntityNotFound)
	}
	return keys[0], nil
}

// List returns the API keys of user, newest first.
func (r APIKeys) List(ctx context.Context, user domain.EntityID) ([]APIKey, error) {
	return r.query(ctx, `WHERE user_ref_id=? ORDER BY created_time DESC`, int64(user))
}

// Delete deletes an API key of user by ID.
func (r APIKeys) Delete(ctx context.Context, user domain.EntityID, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id required")
	}
	res, err := r.tx.ExecContext(ctx, `DELETE FROM api_keys WHERE id=? AND user_ref_id=?`, id, int64(user))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("api key %s: %w", id, domain.ErrEntityNotFound)
	}
	return nil
}

func (r APIKeys) query(ctx context.Context, where string, args ...any) ([]APIKey, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id, user_ref_id, COALESCE(name,''), key_hash, created_time FROM api_keys `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []APIKey
	for rows.Next() {
		var key APIKey
		var user int64
		var created string
		if err := rows.Scan(&key.ID, &user, &key.Name, &key.KeyHash, &created); err != nil {
			return nil, err
		}
		key.UserRefID = domain.EntityID(user)
		if key.CreatedTime, err = parseTime(created); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
