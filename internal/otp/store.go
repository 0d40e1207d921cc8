package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// Store holds outstanding challenge codes, one per email. Issue
// overwrites any prior entry for the email; a successful Check
// invalidates the entry so the same code can never be accepted twice.
type Store interface {
	// Issue generates a fresh code bound to the store's validity window
	// and returns it for out-of-band delivery.
	Issue(ctx context.Context, email string) (code string, expiresAt time.Time, err error)

	// Check reports whether presented matches the outstanding unexpired
	// challenge for email. On a match the entry is consumed atomically;
	// on a mismatch it is left untouched.
	Check(ctx context.Context, email, presented string) (bool, error)

	// Purge drops any outstanding challenge for email.
	Purge(ctx context.Context, email string) error
}

// GenerateCode returns a random numeric code of the given length,
// leading zeros included.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// HashCode digests a code for storage; only digests are kept so a
// leaked store never reveals live codes.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
