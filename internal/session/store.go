// Package session holds the authenticated identity and bearer credential
// for the running process, mirrors them to durable storage and restores
// them once at startup.
//
// A Store is built once in main and handed to whoever needs it. Reads never
// block; mutations apply in memory immediately and are written behind by a
// single goroutine. Restored flips to true exactly once, when the startup
// restore attempt settles, whatever its outcome.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"
)

const (
	DefaultRestoreTimeout = 5 * time.Second
	defaultWriteTimeout   = 5 * time.Second
	defaultRetryBase      = 50 * time.Millisecond
	defaultMaxRetries     = 4
)

// ChangeKind names a session transition.
type ChangeKind string

const (
	ChangeEstablished ChangeKind = "established"
	ChangeCleared     ChangeKind = "cleared"
	ChangeRestored    ChangeKind = "restored"
)

// Change describes a session transition. User is nil for cleared sessions
// and for restores that came back empty.
type Change struct {
	Kind ChangeKind
	User *core.User
	At   time.Time
}

// Listener is called after each transition, outside the store's lock.
type Listener func(Change)

// Snapshot is a consistent view of the session at one instant.
type Snapshot struct {
	User       *core.User
	Credential string
	Restored   bool
}

// Authenticated reports whether the snapshot carries a user.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger scopes l to the session component.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentSession) }
}

// WithListener registers fn to receive every Change.
func WithListener(fn Listener) Option {
	return func(s *Store) { s.listener = fn }
}

// WithRestoreTimeout bounds the storage read done by Restore.
func WithRestoreTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.restoreTimeout = d
		}
	}
}

// WithRetry tunes the backoff used for durable writes.
func WithRetry(base time.Duration, maxRetries uint64) Option {
	return func(s *Store) {
		s.retryBase = base
		s.maxRetries = maxRetries
	}
}

// WithClock replaces time.Now, used for change times and credential expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store holds the signed-in user and bearer credential. It is safe for
// concurrent use.
type Store struct {
	kv             storage.KV
	logger         *log.Logger
	listener       Listener
	now            func() time.Time
	restoreTimeout time.Duration
	writeTimeout   time.Duration
	retryBase      time.Duration
	maxRetries     uint64

	mu           sync.RWMutex
	user         *core.User
	credential   string
	loginForm    LoginForm
	registerForm RegisterForm
	// mutated is set by the first SetSession/ClearSession; restore must not
	// overwrite state that is newer than what storage holds.
	mutated bool

	restored    atomic.Bool
	restoreOnce sync.Once
	ready       chan struct{}

	dirty     chan struct{}
	flushReq  chan chan error
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	lastErr   error // owned by the writer goroutine
}

// New builds an empty, not-yet-restored store backed by kv and starts its
// writer goroutine. Call Close to stop it.
func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:             kv,
		logger:         log.Discard(),
		now:            time.Now,
		restoreTimeout: DefaultRestoreTimeout,
		writeTimeout:   defaultWriteTimeout,
		retryBase:      defaultRetryBase,
		maxRetries:     defaultMaxRetries,
		ready:          make(chan struct{}),
		dirty:          make(chan struct{}, 1),
		flushReq:       make(chan chan error),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// SetSession replaces user and credential together and clears the
// authentication form buffers. The durable copy is written behind.
func (s *Store) SetSession(user core.User, credential string) error {
	if credential == "" {
		return ErrInvalidSession
	}
	if err := user.Validate(); err != nil {
		return errors.Join(ErrInvalidSession, err)
	}

	u := user
	s.mu.Lock()
	s.user = &u
	s.credential = credential
	s.loginForm = LoginForm{}
	s.registerForm = RegisterForm{}
	s.mutated = true
	s.mu.Unlock()

	s.markDirty()
	s.logger.Info("Session established", log.NewFields().WithUser(u.ID, string(u.Role)).ToSlice()...)
	s.notify(Change{Kind: ChangeEstablished, User: cloneUser(&u)})
	return nil
}

// ClearSession drops user, credential and every form buffer. On a restored
// store that is already empty only the form buffers change: nothing is
// written and no listener is called. Before restore settles the empty
// record is still written so a stale session cannot come back.
func (s *Store) ClearSession() {
	s.mu.Lock()
	wasSet := s.user != nil
	s.loginForm = LoginForm{}
	s.registerForm = RegisterForm{}
	if !wasSet && s.restored.Load() {
		s.mu.Unlock()
		return
	}
	s.user = nil
	s.credential = ""
	s.mutated = true
	s.mu.Unlock()

	s.markDirty()
	if !wasSet {
		return
	}
	s.logger.Info("Session cleared")
	s.notify(Change{Kind: ChangeCleared})
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Credential returns the bearer credential, or "" when signed out.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Restored reports whether restore has settled. It never reverts.
func (s *Store) Restored() bool {
	return s.restored.Load()
}

// Ready is closed once restore has settled.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Snapshot returns user, credential and restored as one consistent view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		User:       cloneUser(s.user),
		Credential: s.credential,
		// read under the lock so a restore that applies state and flips the
		// flag is never seen half way
		Restored: s.restored.Load(),
	}
}

// Restore loads the persisted session. Only the first call does anything;
// later calls return once the first has settled. Missing, corrupt, expired
// or unreachable data all leave the session empty. Restore never fails.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.restoreTimeout)
		defer cancel()

		start := s.now()
		user, credential, err := s.load(ctx)

		s.mu.Lock()
		kept := s.mutated
		if !kept {
			s.user = user
			s.credential = credential
		}
		current := cloneUser(s.user)
		s.restored.Store(true)
		s.mu.Unlock()
		close(s.ready)

		fields := log.NewFields().WithOperation(log.OpRestore)
		fields[log.FieldDuration] = s.now().Sub(start).Milliseconds()
		switch {
		case kept:
			s.logger.Info("Restore settled after an in-memory change; keeping current session", fields.ToSlice()...)
		case err != nil:
			s.logger.Warn("Session restore failed; starting empty", fields.WithError(err).ToSlice()...)
		case user != nil:
			s.logger.Info("Session restored", fields.WithUser(user.ID, string(user.Role)).ToSlice()...)
		default:
			s.logger.Info("No persisted session", fields.ToSlice()...)
		}

		s.notify(Change{Kind: ChangeRestored, User: current})
	})
}

func (s *Store) load(ctx context.Context) (*core.User, string, error) {
	type result struct {
		data []byte
		err  error
	}
	// a backend that ignores ctx must not be able to hold restore open
	ch := make(chan result, 1)
	go func() {
		data, err := s.kv.Get(ctx, StorageKey)
		ch <- result{data, err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}

	if errors.Is(res.err, storage.ErrNotFound) {
		return nil, "", nil
	}
	if res.err != nil {
		return nil, "", res.err
	}

	user, credential, err := decodeRecord(res.data)
	if err != nil {
		return nil, "", err
	}
	if user != nil && credentialExpired(credential, s.now()) {
		return nil, "", ErrExpired
	}
	return user, credential, nil
}

func (s *Store) notify(c Change) {
	if s.listener == nil {
		return
	}
	c.At = s.now()
	s.listener(c)
}

func cloneUser(u *core.User) *core.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
