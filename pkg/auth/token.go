package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

var errNoSecret = errors.New("jwt secret is required")

// claims is the token body minted by the account service.
type claims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens against the shared secret and issuer.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) *Verifier {
	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithLeeway(cfg.Leeway),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify returns the caller named by a valid token.
func (v *Verifier) Verify(raw string) (Caller, error) {
	if len(v.secret) == 0 {
		return Caller{}, errNoSecret
	}
	var c claims
	if _, err := v.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return Caller{}, err
	}
	caller := Caller{UserID: c.UserID, Role: c.Role}
	switch {
	case caller.UserID == uuid.Nil:
		return Caller{}, errors.New("token has no user_id")
	case !caller.Role.IsValid():
		return Caller{}, fmt.Errorf("token carries unknown role %q", caller.Role)
	}
	return caller, nil
}

// Mint signs a token for caller. Production tokens come from the account
// service; this serves local tooling and tests.
func Mint(cfg config.JWTConfig, caller Caller, issuedAt time.Time, ttl time.Duration) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case ttl <= 0:
		return "", errors.New("jwt ttl must be positive")
	case !caller.Role.IsValid():
		return "", fmt.Errorf("invalid role %q", caller.Role)
	}
	token := jwt.NewWithClaims(signingMethod, claims{
		UserID: caller.UserID,
		Role:   caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   caller.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
