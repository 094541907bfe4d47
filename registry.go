package main

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Registry owns the mapping from match id to its single live Session. A
// session is materialized from the match store on first reference; the
// singleflight group guarantees exactly one load per unseen id no matter
// how many connections race for it, and every caller gets the same
// Session instance.
type Registry struct {
	cfg        *Config
	store      MatchStore
	prizes     PrizeService
	supervisor *Supervisor

	mu       sync.Mutex
	sessions map[string]*Session
	group    singleflight.Group
}

func newRegistry(cfg *Config, store MatchStore, prizes PrizeService) *Registry {
	reg := &Registry{
		cfg:        cfg,
		store:      store,
		prizes:     prizes,
		supervisor: newSupervisor(cfg),
		sessions:   make(map[string]*Session),
	}
	if cfg.sessionTimeout > 0 {
		go reg.reaperLoop()
	}
	return reg
}

// resolve returns the live session for matchID, hydrating it from the match
// store on first reference. A store miss or failure degrades to a default
// waiting session; resolution never fails.
func (reg *Registry) resolve(matchID string) *Session {
	reg.mu.Lock()
	if s, ok := reg.sessions[matchID]; ok {
		reg.mu.Unlock()
		return s
	}
	reg.mu.Unlock()

	v, _, _ := reg.group.Do(matchID, func() (any, error) {
		reg.mu.Lock()
		if s, ok := reg.sessions[matchID]; ok {
			reg.mu.Unlock()
			return s, nil
		}
		reg.mu.Unlock()

		rec, err := reg.store.LoadMatch(matchID)
		switch {
		case err == nil:
			logf(reg.cfg, "MATCH: Hydrated %q from store (mode %s, status %s)", matchID, rec.Mode, rec.Status)
		case errors.Is(err, errNoRecord):
			logf(reg.cfg, "MATCH: No record for %q, starting fresh", matchID)
		default:
			logf(reg.cfg, "STORE: Loading %q failed, starting fresh: %v", matchID, err)
			rec = nil
		}

		s := newSession(reg.cfg, matchID, rec, reg.store, reg.prizes, reg.supervisor, reg.remove)

		reg.mu.Lock()
		reg.sessions[matchID] = s
		reg.mu.Unlock()

		go s.run(reg.cfg)
		return s, nil
	})

	return v.(*Session)
}

func (reg *Registry) remove(matchID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.sessions, matchID)
}

// newMatchID generates a crypto-random match ID and ensures it doesn't
// collide with any live session.
func (reg *Registry) newMatchID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		reg.mu.Lock()
		_, exists := reg.sessions[id]
		reg.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically abandons sessions that have been idle longer than
// the configured timeout. This also puts a ceiling on lobbies that never
// gather enough players.
func (reg *Registry) reaperLoop() {
	ticker := time.NewTicker(reg.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-reg.cfg.sessionTimeout)

		reg.mu.Lock()
		for id, s := range reg.sessions {
			s.mu.RLock()
			last := s.lastActive
			s.mu.RUnlock()

			if last.Before(cutoff) {
				delete(reg.sessions, id)
				logf(reg.cfg, "MATCH: Reaped idle session %q", id)
				go s.closeAll()
			}
		}
		reg.mu.Unlock()
	}
}
