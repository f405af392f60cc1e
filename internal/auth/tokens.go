package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/air593-booking/internal/common"
)

const (
	claimEmail = "email"
	claimRole  = "role"
)

// TokenValidator validates structural and contextual properties of JWT tokens.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate ensures the supplied token satisfies issuer, audience, expiry, and algorithm requirements.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

// Tokens signs and verifies the HS256 session tokens carried in the auth cookie.
type Tokens struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// NewTokens returns a token codec for the given secret.
func NewTokens(secret string, clockSkew time.Duration) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	return &Tokens{
		secret: []byte(secret),
		validator: TokenValidator{
			Issuer:    "air593-booking",
			Audience:  "air593-web",
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		now: time.Now,
	}, nil
}

// Issue signs a token for id valid for ttl.
func (t *Tokens) Issue(id common.Identity, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(ttl)
	tok, err := jwt.NewBuilder().
		Subject(id.UserID).
		Issuer(t.validator.Issuer).
		Audience([]string{t.validator.Audience}).
		IssuedAt(now).
		NotBefore(now.Add(-t.validator.ClockSkew)).
		Expiration(expiresAt).
		Claim(claimEmail, id.Email).
		Claim(claimRole, id.Role).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// Parse verifies token and returns the identity it carries.
func (t *Tokens) Parse(token string) (common.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Identity{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return common.Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != t.validator.Algorithm {
		return common.Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, t.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := t.validator.Validate(parsed, algorithm, t.now()); err != nil {
		return common.Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	id := common.Identity{UserID: parsed.Subject()}
	if v, ok := parsed.Get(claimEmail); ok {
		id.Email, _ = v.(string)
	}
	if v, ok := parsed.Get(claimRole); ok {
		id.Role, _ = v.(string)
	}
	if id.UserID == "" {
		return common.Identity{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, errors.New("missing subject"))
	}
	return id, nil
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		switch {
		case alg == "":
			return "", errors.New("auth: token missing algorithm")
		case alg == jwa.NoSignature:
			return "", errors.New("auth: token uses none algorithm")
		case algorithm == "":
			algorithm = alg
		case algorithm != alg:
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
