// Package verify implements the FACEIT account linking flow: an
// authorization-code exchange hardened with a PKCE verifier/challenge pair,
// bound to a Discord user through a single-use state token.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/solstice-gg/matchroom/telemetry"
)

// maxPending caps the store so a flood of begin calls cannot exhaust memory.
const maxPending = 10000

// Pending is one in-flight verification, keyed by its state token. Entries
// are single-use and expire after the store's TTL.
type Pending struct {
	State        string
	DiscordID    string
	CodeVerifier string
	CreatedAt    time.Time
}

// PendingStore holds in-flight verifications. It is safe for concurrent use;
// Take is atomic so two callbacks racing on the same state token cannot both
// succeed. Entries live only in memory: they are short-TTL and single-use, so
// losing them on restart just means the user starts over.
type PendingStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]Pending
}

func NewPendingStore(ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PendingStore{ttl: ttl, m: make(map[string]Pending)}
}

// ErrStoreFull is returned when the store refuses a new entry at capacity.
var ErrStoreFull = errors.New("pending verification store full")

// Put stores a new entry.
func (s *PendingStore) Put(p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Clean expired entries periodically to prevent unbounded growth.
	if len(s.m)%100 == 0 {
		s.sweepLocked()
	}
	if len(s.m) >= maxPending {
		return ErrStoreFull
	}
	s.m[p.State] = p
	return nil
}

// Take atomically looks up and deletes the entry for a state token. Expired
// entries are deleted and reported as absent (lazy GC on lookup).
func (s *PendingStore) Take(state string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[state]
	if !ok {
		return Pending{}, false
	}
	delete(s.m, state)
	if time.Since(p.CreatedAt) > s.ttl {
		return Pending{}, false
	}
	return p, true
}

// Len returns the number of held entries, expired or not.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep removes expired entries eagerly and returns the remaining count.
func (s *PendingStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.m)
}

func (s *PendingStore) sweepLocked() {
	now := time.Now()
	for state, p := range s.m {
		if now.Sub(p.CreatedAt) > s.ttl {
			delete(s.m, state)
		}
	}
}

// StartSweeper schedules an eager periodic sweep of expired entries and keeps
// the pending gauge current. The scheduler shuts down with ctx.
func StartSweeper(ctx context.Context, store *PendingStore, every time.Duration) error {
	if every <= 0 {
		every = time.Minute
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			remaining := store.Sweep()
			telemetry.SetPendingVerifications(remaining)
			slog.Debug("pending verification sweep", slog.Int("remaining", remaining))
		}),
	); err != nil {
		return err
	}
	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			slog.Warn("sweeper shutdown error", slog.Any("err", err))
		}
	}()
	return nil
}
