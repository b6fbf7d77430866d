package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"crew_research_assistant/metrics"
	"crew_research_assistant/pipeline"
)

// Session is one browser session. Events run on a copy of the state that is
// committed when the event returns, so readers never see a half-written state.
type Session struct {
	ID string

	mu    sync.Mutex
	state pipeline.State
	flash flash

	busy atomic.Bool
}

type flash struct {
	Kind    string
	Message string
}

func (s *Session) Snapshot() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether an event is in flight for this session.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Do runs fn against a working copy of the state. It returns false without
// calling fn when another event is already running.
func (s *Session) Do(fn func(st *pipeline.State) error) (bool, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.busy.Store(false)

	work := s.Snapshot()
	err := fn(&work)

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return true, err
}

func (s *Session) setFlash(kind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = flash{Kind: kind, Message: msg}
}

// takeFlash returns and clears the pending message.
func (s *Session) takeFlash() flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flash
	s.flash = flash{}
	return f
}

// sessionStore keeps sessions in memory. A session that sees no request for
// the configured ttl is dropped, which ends it.
type sessionStore struct {
	cache        *ttlcache.Cache[string, *Session]
	defaultTopic string
}

func newStore(ttl time.Duration, defaultTopic string) *sessionStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
	)
	cache.OnInsertion(func(context.Context, *ttlcache.Item[string, *Session]) {
		metrics.ActiveSessions.Inc()
	})
	cache.OnEviction(func(context.Context, ttlcache.EvictionReason, *ttlcache.Item[string, *Session]) {
		metrics.ActiveSessions.Dec()
	})
	return &sessionStore{cache: cache, defaultTopic: defaultTopic}
}

func (s *sessionStore) create() *Session {
	sess := &Session{
		ID:    uuid.NewString(),
		state: *pipeline.NewState(s.defaultTopic),
	}
	s.cache.Set(sess.ID, sess, ttlcache.DefaultTTL)
	return sess
}

// get returns a live session and extends its lifetime.
func (s *sessionStore) get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *sessionStore) start() {
	go s.cache.Start()
}

func (s *sessionStore) stop() {
	s.cache.Stop()
}
