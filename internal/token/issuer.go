package token

import (
	"errors"
	"fmt"
	"time"

	"identity-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken indicates a failed signature check or an expired token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMalformedToken indicates input that cannot be parsed as a token.
	ErrMalformedToken = errors.New("malformed token")
)

// Claims is the identity snapshot embedded in every signed token.
type Claims struct {
	ID        int64         `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Role      models.Role   `json:"role"`
	Email     string        `json:"email"`
	Status    models.Status `json:"status"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256-signed access and refresh tokens.
// Tokens are self-contained; nothing is persisted server-side.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is not configured")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be greater than zero")
	}
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// SnapshotClaims builds a claim set from the account's current state.
func SnapshotClaims(account *models.Account) Claims {
	return Claims{
		ID:        account.ID,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Role:      account.Role,
		Email:     account.Email,
		Status:    account.Status,
	}
}

// MintAccess signs a short-lived access token carrying the claims.
func (i *Issuer) MintAccess(claims Claims) (string, error) {
	return i.mint(claims, i.accessTTL)
}

// MintRefresh signs a long-lived refresh token carrying the same claim shape.
func (i *Issuer) MintRefresh(claims Claims) (string, error) {
	return i.mint(claims, i.refreshTTL)
}

func (i *Issuer) mint(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   claims.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the embedded claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrMalformedToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != i.issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
