package files

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with atomic reserve semantics.
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

func (s *memStore) Reserve(_ context.Context, pin string, ownerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.records[pin]; taken {
		return false, nil
	}
	s.records[pin] = Record{Pin: pin, Status: "reserved", OwnerID: ownerID}
	return true, nil
}

func (s *memStore) Finalize(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[rec.Pin]
	if !ok || existing.Status != "reserved" {
		return errors.New("no reserved row")
	}
	rec.Status = "ready"
	s.records[rec.Pin] = rec
	return nil
}

func (s *memStore) Release(_ context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[pin]; ok && rec.Status == "reserved" {
		delete(s.records, pin)
	}
	return nil
}

func (s *memStore) Get(_ context.Context, pin string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[pin]
	if !ok || rec.Status != "ready" {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.records {
		if rec.Status == "ready" {
			n++
		}
	}
	return n, nil
}

func TestCandidateFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		pin := Candidate()
		require.Len(t, pin, PinLength)
		require.Regexp(t, `^[A-Z0-9]{6}$`, pin)
	}
}

func TestIssueUniqueConcurrent(t *testing.T) {
	store := newMemStore()
	reg := NewRegistry(store)

	const n = 200
	var wg sync.WaitGroup
	results := make(chan string, n)
	errs := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			pin, err := reg.IssueUnique(context.Background(), 1)
			if err != nil {
				errs <- err
				return
			}
			results <- pin
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("issue failed: %v", err)
	}
	pins := make(map[string]struct{}, n)
	for pin := range results {
		pins[pin] = struct{}{}
	}
	require.Len(t, pins, n, "every issued pin must be distinct")
}

func TestIssueUniqueBoundedRetry(t *testing.T) {
	store := newMemStore()
	reg := NewRegistry(store)

	// Make every candidate collide.
	calls := 0
	reg.candidate = func() string {
		calls++
		return "AAAAAA"
	}
	_, err := store.Reserve(context.Background(), "AAAAAA", 99)
	require.NoError(t, err)

	_, err = reg.IssueUnique(context.Background(), 1)
	require.ErrorIs(t, err, ErrRegistryExhausted)
	require.Equal(t, issueAttempts, calls, "issuance must stop after the attempt cap")
}

func TestIssueUniquePropagatesStoreError(t *testing.T) {
	reg := NewRegistry(reserveFunc(func(context.Context, string, int64) (bool, error) {
		return false, errors.New("connection refused")
	}))
	_, err := reg.IssueUnique(context.Background(), 1)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRegistryExhausted)
}

func TestIssueUniqueHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reg := NewRegistry(newMemStore())
	_, err := reg.IssueUnique(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

type reserveFunc func(ctx context.Context, pin string, ownerID int64) (bool, error)

func (f reserveFunc) Reserve(ctx context.Context, pin string, ownerID int64) (bool, error) {
	return f(ctx, pin, ownerID)
}

func TestNormalizePin(t *testing.T) {
	require.Equal(t, "AB12CD", NormalizePin("  ab12cd "))
	require.Equal(t, "AB12CD", NormalizePin("AB12CD"))
}
