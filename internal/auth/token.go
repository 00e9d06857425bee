// Package auth verifies the bearer tokens presented by chat clients.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-core/internal/chaterrors"
	"chat-core/internal/models"
)

// CustomClaims is the payload of a chat access token.
type CustomClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for identity. Used by tests and local tooling; real
// tokens come from the identity provider.
func (v *Verifier) Issue(identity models.Identity, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:   identity.ID,
		Username: identity.Username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify validates signature, expiry and issuer and returns the principal.
func (v *Verifier) Verify(tokenString string) (models.Principal, error) {
	if tokenString == "" {
		return models.Principal{}, fmt.Errorf("%w: missing token", chaterrors.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", chaterrors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return models.Principal{}, fmt.Errorf("%w: %v", chaterrors.ErrUnauthenticated, jwt.ErrSignatureInvalid)
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" || claims.Username == "" {
		return models.Principal{}, fmt.Errorf("%w: token carries no identity", chaterrors.ErrUnauthenticated)
	}
	return models.Principal{
		Identity: models.Identity{ID: id, Username: claims.Username},
		Roles:    claims.Roles,
	}, nil
}

var errNoToken = errors.New("missing authorization")

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the access_token query parameter that browser websocket clients use.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", errors.New("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, nil
	}
	return "", errNoToken
}
