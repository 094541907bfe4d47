package main

import "time"

// Supervisor tracks disconnected participants and removes them once the
// grace period elapses. Each timer carries the generation current at
// scheduling time; a reconnect bumps the session's generation for that
// identity, so a stale timer finds itself outvoted and does nothing.
// Connectivity is still re-checked at fire time as a second line of defense
// against timers scheduled before the generation counters existed.
type Supervisor struct {
	cfg *Config
}

func newSupervisor(cfg *Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

func (sv *Supervisor) watch(s *Session, identity string, gen int) {
	time.AfterFunc(sv.cfg.gracePeriod, func() {
		s.expireGrace(sv.cfg, identity, gen)
	})
}

// expireGrace removes a participant whose grace window passed without a
// reconnect. Removing the last participant abandons the session and drops
// it from the registry.
func (s *Session) expireGrace(cfg *Config, identity string, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graceGen[identity] != gen {
		return
	}

	p := s.participantLocked(identity)
	if p == nil || p.IsConnected {
		return
	}

	dst := s.participants[:0]
	for _, q := range s.participants {
		if q.Identity == identity {
			continue
		}
		dst = append(dst, q)
	}
	s.participants = dst
	delete(s.graceGen, identity)

	s.lastActive = time.Now()
	s.broadcastLocked(PresenceMessage{
		Type:        "participant_left",
		Identity:    p.Identity,
		DisplayName: p.DisplayName,
	})
	s.broadcastSnapshotLocked()
	logf(cfg, "MATCH: %q removed from %q after grace period", identity, s.id)

	if len(s.participants) == 0 {
		if s.status != StatusCompleted {
			s.status = StatusAbandoned
		}
		logf(cfg, "MATCH: %q is empty, tearing down", s.id)

		for c := range s.clients {
			c.close()
			if c.conn != nil {
				_ = c.conn.Close()
			}
			delete(s.clients, c)
		}

		if s.onEmpty != nil {
			// The registry takes its own lock; keep lock ordering one-way.
			go s.onEmpty(s.id)
		}
	}
}
