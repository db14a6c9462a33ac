// Package auth issues and checks the credentials the CLI and the HTTP API accept.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"jupiter/internal/domain"
)

// DefaultTTL is how long a login token stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// APIKeyPrefix starts every API key so that leaked keys are easy to grep for.
const APIKeyPrefix = "jpk_"

// ErrInvalidCredentials is returned for any token or key that does not check out.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims binds a token to a user and the workspace it was issued for.
type Claims struct {
	jwt.RegisteredClaims
	WorkspaceRefID domain.EntityID `json:"workspace_ref_id"`
}

// Identity is who a request acts as.
type Identity struct {
	User      domain.EntityID `json:"user_ref_id"`
	Workspace domain.EntityID `json:"workspace_ref_id"`
	Source    string          `json:"source"`
}

// Tokens signs HS256 tokens with a shared secret.
type Tokens struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func (t Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t Tokens) key() ([]byte, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return nil, errors.New("AUTH_TOKEN_SECRET not configured")
	}
	return []byte(t.Secret), nil
}

// Issue returns a signed token for user acting in workspace.
func (t Tokens) Issue(user, workspace domain.EntityID) (string, error) {
	key, err := t.key()
	if err != nil {
		return "", err
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.String(),
			ID:        uuid.NewString(),
			Issuer:    "jupiter",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		WorkspaceRefID: workspace,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Verify checks the signature and expiry of token.
func (t Tokens) Verify(token string) (Identity, error) {
	key, err := t.key()
	if err != nil {
		return Identity{}, err
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return key, nil })
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	user, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || user <= 0 || claims.WorkspaceRefID == domain.BadRefID {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidCredentials)
	}
	return Identity{User: domain.EntityID(user), Workspace: claims.WorkspaceRefID, Source: "jwt"}, nil
}

// NewAPIKey returns a fresh key id and the plaintext key. Only the hash of the key is stored.
func NewAPIKey() (id, key string) {
	raw := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return uuid.NewString(), APIKeyPrefix + raw
}
