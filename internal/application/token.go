package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// calendarTokenBytes sizes the random token; 16 bytes encode to 32 hex
// characters, matching the entropy of the original feed tokens.
const calendarTokenBytes = 16

// calendarTokenAttempts caps the generate-and-check loop so a pathological
// store cannot spin it forever.
const calendarTokenAttempts = 8

// TokenChecker reports whether a candidate token is already assigned.
type TokenChecker interface {
	CalendarTokenInUse(ctx context.Context, token string) (bool, error)
}

// generateCalendarToken produces an unused opaque token, retrying on
// collision up to the attempt cap.
func generateCalendarToken(ctx context.Context, checker TokenChecker) (string, error) {
	for attempt := 0; attempt < calendarTokenAttempts; attempt++ {
		buf := make([]byte, calendarTokenBytes)
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		token := hex.EncodeToString(buf)

		inUse, err := checker.CalendarTokenInUse(ctx, token)
		if err != nil {
			return "", err
		}
		if !inUse {
			return token, nil
		}
	}
	return "", ErrTokenExhausted
}
