package files

import (
	"context"
	"math/rand"
	"strings"

	"github.com/pasindu8/telegrambot/core/logger"
	"log/slog"
)

const (
	pinAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// PinLength is the fixed length of issued PIN codes.
	PinLength = 6

	// issueAttempts bounds IssueUnique. The candidate space is 36^6, so under
	// normal occupancy a handful of attempts is plenty; the cap exists to
	// guarantee termination when the registry fills up.
	issueAttempts = 10
)

// Reserver is the atomic create-if-absent primitive backing PIN issuance.
// Reserve must succeed for at most one caller per pin, even under concurrent
// invocations that share no memory.
type Reserver interface {
	Reserve(ctx context.Context, pin string, ownerID int64) (bool, error)
}

// Registry issues PIN codes that are unique among live records.
type Registry struct {
	store Reserver

	// candidate is an override point for tests.
	candidate func() string
}

// NewRegistry creates a Registry over the given atomic store.
func NewRegistry(store Reserver) *Registry {
	return &Registry{
		store:     store,
		candidate: Candidate,
	}
}

// Candidate draws PinLength characters uniformly at random from the PIN
// alphabet. Collision resistance relies on the registry reservation, not on
// the entropy of a single draw.
func Candidate() string {
	var b strings.Builder
	b.Grow(PinLength)
	for i := 0; i < PinLength; i++ {
		b.WriteByte(pinAlphabet[rand.Intn(len(pinAlphabet))])
	}
	return b.String()
}

// IssueUnique reserves and returns a PIN no other live record holds. Each
// attempt is a single atomic conditional write; a rejected write means the
// candidate is taken and a fresh one is drawn. After issueAttempts rejected
// candidates it fails with ErrRegistryExhausted.
func (r *Registry) IssueUnique(ctx context.Context, ownerID int64) (string, error) {
	for attempt := 1; attempt <= issueAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pin := r.candidate()
		ok, err := r.store.Reserve(ctx, pin, ownerID)
		if err != nil {
			return "", err
		}
		if ok {
			logger.Debug(ctx, "files", "pin.issued",
				slog.String("status", "ok"),
				slog.String("pin", pin),
				slog.Int("attempts", attempt),
			)
			return pin, nil
		}
	}
	logger.Warn(ctx, "files", "pin.exhausted",
		slog.String("status", "fail"),
		slog.Int("attempts", issueAttempts),
	)
	return "", ErrRegistryExhausted
}

// NormalizePin trims surrounding whitespace and uppercases user input so PIN
// lookup is case-insensitive.
func NormalizePin(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
