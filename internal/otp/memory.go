package otp

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"identity-service/internal/util"
)

type entry struct {
	codeHash  string
	expiresAt time.Time
}

// MemoryStore is a process-local Store backed by a concurrent map with
// per-email locking. Issue and Check for the same email are mutually
// exclusive; different emails never block each other. Entries do not
// survive a restart, so a multi-instance deployment should use the
// Redis-backed store instead.
type MemoryStore struct {
	ttl    time.Duration
	digits int

	mu      sync.RWMutex
	entries map[string]*entry
	locks   sync.Map // email -> *sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
}

func NewMemoryStore(ttl time.Duration, digits int) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		digits:  digits,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
}

func (s *MemoryStore) lockFor(email string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(email, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *MemoryStore) Issue(ctx context.Context, email string) (string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}

	code, err := GenerateCode(s.digits)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(s.ttl)

	lock := s.lockFor(email)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	s.entries[email] = &entry{codeHash: HashCode(code), expiresAt: expiresAt}
	s.mu.Unlock()

	return code, expiresAt, nil
}

func (s *MemoryStore) Check(ctx context.Context, email, presented string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	presentedHash := HashCode(presented)

	lock := s.lockFor(email)
	lock.Lock()
	defer lock.Unlock()

	// Lookup, compare and consume under the map lock so two concurrent
	// checks can never both observe the same valid entry.
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[email]
	if !ok || time.Now().After(e.expiresAt) {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(e.codeHash), []byte(presentedHash)) != 1 {
		return false, nil
	}

	delete(s.entries, email)
	return true, nil
}

func (s *MemoryStore) Purge(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.lockFor(email)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	delete(s.entries, email)
	s.mu.Unlock()
	s.locks.Delete(email)

	return nil
}

// StartJanitor sweeps expired entries in the background to bound
// memory. Stop with Close.
func (s *MemoryStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed := s.sweep()
				if removed > 0 {
					util.Debug("Expired OTP challenges swept", util.Int("removed", removed))
				}
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *MemoryStore) sweep() int {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	for email, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, email)
			s.locks.Delete(email)
			removed++
		}
	}
	s.mu.Unlock()

	return removed
}

func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
