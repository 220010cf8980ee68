package files

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pasindu8/telegrambot/core/logger"
	"log/slog"
)

var pinPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// Exchange binds uploaded attachments to freshly issued PINs and resolves
// submitted PINs back to file metadata. The size cap is enforced on both paths.
type Exchange struct {
	store    Store
	registry *Registry
}

// NewExchange builds the file-exchange service over a record store.
func NewExchange(store Store) *Exchange {
	return &Exchange{
		store:    store,
		registry: NewRegistry(store),
	}
}

// Bind validates the upload, issues a unique PIN, and persists the full record
// over the registry placeholder. The placeholder is released if the finalize
// write fails, so an aborted bind does not leak a claimed pin.
func (e *Exchange) Bind(ctx context.Context, up Upload) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrStoreUnavailable
	}
	if up.SizeBytes > MaxTransferBytes {
		return "", &OversizedError{SizeBytes: up.SizeBytes}
	}

	pin, err := e.registry.IssueUnique(ctx, up.OwnerID)
	if err != nil {
		return "", err
	}

	rec := Record{
		Pin:         pin,
		FileID:      up.FileID,
		DisplayName: up.DisplayName,
		MimeType:    up.MimeType,
		SizeBytes:   up.SizeBytes,
		Kind:        up.Kind,
		OwnerID:     up.OwnerID,
	}
	if err := e.store.Finalize(ctx, rec); err != nil {
		if relErr := e.store.Release(ctx, pin); relErr != nil {
			logger.Warn(ctx, "files", "pin.release_failed",
				slog.String("pin", pin),
				slog.String("err", relErr.Error()),
			)
		}
		return "", fmt.Errorf("bind upload: %w", err)
	}

	logger.Info(ctx, "files", "bind",
		slog.String("status", "ok"),
		slog.String("pin", pin),
		slog.String("kind", string(rec.Kind)),
		slog.Int64("size_bytes", rec.SizeBytes),
		slog.Int64("user_id", up.OwnerID),
	)
	return pin, nil
}

// Resolve looks up a user-submitted PIN. Input is trimmed and uppercased
// first; anything that does not match the PIN format resolves to ErrNotFound
// without touching the store. Oversized records are reported rather than
// returned for resending.
func (e *Exchange) Resolve(ctx context.Context, pin string) (Record, error) {
	if e == nil || e.store == nil {
		return Record{}, ErrStoreUnavailable
	}
	normalized := NormalizePin(pin)
	if !pinPattern.MatchString(normalized) {
		return Record{}, ErrNotFound
	}

	rec, err := e.store.Get(ctx, normalized)
	if err != nil {
		return Record{}, err
	}
	if rec.SizeBytes > MaxTransferBytes {
		return Record{}, &OversizedError{SizeBytes: rec.SizeBytes}
	}

	logger.Debug(ctx, "files", "resolve",
		slog.String("status", "ok"),
		slog.String("pin", normalized),
		slog.String("kind", string(rec.Kind)),
		slog.Int64("size_bytes", rec.SizeBytes),
	)
	return rec, nil
}

// Count reports the number of live records, for ops.
func (e *Exchange) Count(ctx context.Context) (int64, error) {
	if e == nil || e.store == nil {
		return 0, ErrStoreUnavailable
	}
	return e.store.Count(ctx)
}
