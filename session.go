// Suduko Arena match sessions
//
// One Session owns the authoritative state of one active match: its grid,
// participants, lifecycle, and every rule decision. All mutations funnel
// through the session's run loop and take the session mutex, so members
// observe broadcasts in the order mutations were applied.
//
// Lifecycle: waiting -> starting -> in_progress -> completed, with abandoned
// reachable from any non-terminal state once the participant list empties.
// Single-player matches the store already marks active skip straight to
// in_progress on hydration.

package main

import (
	"math/rand/v2"
	"sync"
	"time"
)

type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusStarting   SessionStatus = "starting"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
)

type MatchMode string

const (
	ModeSinglePlayer MatchMode = "single_player"
	ModeSimultaneous MatchMode = "simultaneous"
	ModeTurnBased    MatchMode = "turn_based"
	ModeSpeedBattle  MatchMode = "speed_battle"
)

func (m MatchMode) requiredPlayers() int {
	if m == ModeSinglePlayer {
		return 1
	}
	return 2
}

const (
	outcomeCorrect     = "correct"
	outcomeIncorrect   = "incorrect"
	outcomeSurrendered = "surrendered"

	// Awarded per placed digit; clearing a cell is free either way.
	scorePerDigit = 10
)

// Settings are fixed at session creation.
type Settings struct {
	TimeLimit       int // seconds, 0 for none
	HintsAllowed    int
	AllowSpectators bool
	Prize           int
}

// Participant is one player's membership record. At most one entry per
// identity per session; reconnects merge into the existing entry.
type Participant struct {
	Identity       string
	DisplayName    string
	IsReady        bool
	IsConnected    bool
	Score          int
	MovesMade      int
	HintsUsed      int
	HintsRemaining int
}

type moveRequest struct {
	client *Client
	msg    ClientMessage
}

type readyRequest struct {
	client *Client
	msg    ClientMessage
}

type hintRequest struct {
	client *Client
}

type chatRequest struct {
	client *Client
	msg    ClientMessage
}

type surrenderRequest struct {
	client *Client
}

type Session struct {
	id   string
	mode MatchMode

	clients      map[*Client]bool
	participants []*Participant

	register   chan *Client
	unreg      chan *Client
	moves      chan moveRequest
	readies    chan readyRequest
	hints      chan hintRequest
	chats      chan chatRequest
	surrenders chan surrenderRequest

	mu sync.RWMutex

	status    SessionStatus
	grid      Grid
	solution  *Grid
	settings  Settings
	startedAt time.Time
	outcome   string
	winner    string

	createdAt  time.Time
	lastActive time.Time

	startGen int            // invalidates stale countdown timers
	graceGen map[string]int // per-identity, invalidates stale grace timers

	store      MatchStore
	prizes     PrizeService
	supervisor *Supervisor
	onEmpty    func(matchID string) // registry removal hook
}

func newSession(cfg *Config, matchID string, rec *MatchRecord, store MatchStore, prizes PrizeService, sv *Supervisor, onEmpty func(string)) *Session {
	now := time.Now()
	s := &Session{
		id:         matchID,
		mode:       ModeSimultaneous,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		moves:      make(chan moveRequest),
		readies:    make(chan readyRequest),
		hints:      make(chan hintRequest),
		chats:      make(chan chatRequest),
		surrenders: make(chan surrenderRequest),
		status:     StatusWaiting,
		settings: Settings{
			HintsAllowed: cfg.defaultHints,
			Prize:        cfg.prize,
		},
		createdAt:  now,
		lastActive: now,
		graceGen:   make(map[string]int),
		store:      store,
		prizes:     prizes,
		supervisor: sv,
		onEmpty:    onEmpty,
	}

	if rec == nil {
		return s
	}

	if rec.Mode != "" {
		s.mode = rec.Mode
	}
	s.grid = rec.Grid
	s.solution = rec.Solution
	s.settings.TimeLimit = rec.TimeLimit
	s.settings.AllowSpectators = rec.AllowSpectators
	if rec.HintsAllowed > 0 {
		s.settings.HintsAllowed = rec.HintsAllowed
	}
	if rec.Prize > 0 {
		s.settings.Prize = rec.Prize
	}

	// A single-player match the store already considers live resumes play
	// immediately, skipping the lobby.
	if s.mode == ModeSinglePlayer && rec.Status == recordActive {
		s.status = StatusInProgress
		if rec.StartedAt != nil {
			s.startedAt = *rec.StartedAt
		} else {
			s.startedAt = now
		}
	}

	return s
}

func (s *Session) run(cfg *Config) {
	for {
		select {
		case c := <-s.register:
			s.handleRegister(cfg, c)
		case c := <-s.unreg:
			s.handleUnregister(cfg, c)
		case mr := <-s.moves:
			s.handleMove(cfg, mr)
		case rr := <-s.readies:
			s.handleReady(cfg, rr)
		case hr := <-s.hints:
			s.handleHint(cfg, hr)
		case cr := <-s.chats:
			s.handleChat(cfg, cr)
		case sr := <-s.surrenders:
			s.handleSurrender(cfg, sr)
		}
	}
}

// handleRegister admits a connection: reactivating an existing participant,
// creating a new one, or seating a spectator.
func (s *Session) handleRegister(cfg *Config, c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	existing := s.participantLocked(c.identity)

	if existing != nil {
		// Reconnect: merge into the existing entry, stats intact, and
		// invalidate any pending grace timer for this identity.
		existing.IsConnected = true
		existing.DisplayName = c.name
		s.graceGen[c.identity]++

		s.clients[c] = true
		s.sendToLocked(c, SessionInfoMessage{
			Type:       "session_info",
			MatchID:    s.id,
			Identity:   c.identity,
			IsExisting: true,
		})
		s.broadcastSnapshotLocked()
		logf(cfg, "MATCH: %q reconnected to %q", c.identity, s.id)
		return
	}

	seatsFull := len(s.participants) >= s.mode.requiredPlayers()
	gameOver := s.status == StatusCompleted

	if seatsFull || gameOver {
		if gameOver || s.settings.AllowSpectators {
			c.spectator = true
			s.clients[c] = true
			s.sendToLocked(c, SessionInfoMessage{
				Type:        "session_info",
				MatchID:     s.id,
				Identity:    c.identity,
				IsSpectator: true,
			})
			s.sendToLocked(c, s.snapshotLocked())
			return
		}

		// A refused connection never joins the client map. Buffer the
		// refusal directly, then close; writePump flushes it before
		// dropping the connection, and later frames from the still-live
		// readPump find no membership and are ignored.
		select {
		case c.send <- ErrorMessage{
			Type:    "error",
			Reason:  errLobbyFull.Error(),
			Message: "This match is full and does not allow spectators.",
		}:
		default:
		}
		c.close()
		return
	}

	p := &Participant{
		Identity:       c.identity,
		DisplayName:    c.name,
		IsConnected:    true,
		HintsRemaining: s.settings.HintsAllowed,
	}
	if s.mode == ModeSinglePlayer {
		p.IsReady = true
	}
	s.participants = append(s.participants, p)

	s.clients[c] = true
	s.sendToLocked(c, SessionInfoMessage{
		Type:     "session_info",
		MatchID:  s.id,
		Identity: c.identity,
	})
	s.broadcastLocked(PresenceMessage{
		Type:        "participant_joined",
		Identity:    p.Identity,
		DisplayName: p.DisplayName,
	})
	s.broadcastSnapshotLocked()
	logf(cfg, "MATCH: %q joined %q", c.identity, s.id)

	s.maybeStartLocked(cfg)
}

// handleUnregister drops a connection. The participant entry survives; the
// supervisor decides later whether the player truly left.
func (s *Session) handleUnregister(cfg *Config, c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}

	if c.spectator {
		return
	}

	p := s.participantLocked(c.identity)
	if p == nil {
		return
	}

	// Another tab may still hold a live connection for this identity.
	for other := range s.clients {
		if other.identity == c.identity && !other.spectator {
			return
		}
	}

	p.IsConnected = false
	s.lastActive = time.Now()
	s.broadcastLocked(PresenceMessage{
		Type:        "participant_disconnected",
		Identity:    p.Identity,
		DisplayName: p.DisplayName,
	})
	s.broadcastSnapshotLocked()
	logf(cfg, "MATCH: %q disconnected from %q", c.identity, s.id)

	s.graceGen[c.identity]++
	s.supervisor.watch(s, c.identity, s.graceGen[c.identity])
}

// maybeStartLocked begins the countdown once every required seat is filled
// and ready. Readiness is frozen while starting; the timer generation guards
// against a countdown scheduled for a lobby that has since changed.
func (s *Session) maybeStartLocked(cfg *Config) {
	if s.status != StatusWaiting {
		return
	}
	if len(s.participants) < s.mode.requiredPlayers() {
		return
	}
	for _, p := range s.participants {
		if !p.IsReady {
			return
		}
	}

	s.status = StatusStarting
	s.broadcastLocked(StartingMessage{
		Type:    "starting",
		Seconds: cfg.countdown.Seconds(),
	})
	s.broadcastSnapshotLocked()
	logf(cfg, "MATCH: %q starting in %s", s.id, cfg.countdown)

	s.startGen++
	gen := s.startGen
	time.AfterFunc(cfg.countdown, func() {
		s.beginPlay(cfg, gen)
	})
}

func (s *Session) beginPlay(cfg *Config, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusStarting || gen != s.startGen {
		return
	}

	s.status = StatusInProgress
	s.startedAt = time.Now()
	s.lastActive = s.startedAt

	s.broadcastLocked(StartedMessage{
		Type:      "started",
		Grid:      s.grid,
		StartedAt: s.startedAt,
	})
	s.broadcastSnapshotLocked()
	logf(cfg, "MATCH: %q in progress", s.id)
}

// handleReady records a readiness toggle while the lobby is open.
func (s *Session) handleReady(cfg *Config, rr readyRequest) {
	c := rr.client
	if rr.msg.IsReady == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	p := s.participantLocked(c.identity)
	if p == nil || c.spectator {
		s.rejectLocked(c, errNotParticipant, "You are not part of this match.")
		return
	}
	if s.status != StatusWaiting {
		s.rejectLocked(c, errNotWaiting, "The match is past the lobby stage.")
		return
	}

	p.IsReady = *rr.msg.IsReady
	s.broadcastLocked(ReadyChangedMessage{
		Type:     "ready_changed",
		Identity: p.Identity,
		IsReady:  p.IsReady,
	})
	s.broadcastSnapshotLocked()

	s.maybeStartLocked(cfg)
}

// handleMove validates and applies one cell write, then runs completion
// detection. The full-board scan is the single completion trigger; no
// per-move constraint checking happens while cells remain empty.
func (s *Session) handleMove(cfg *Config, mr moveRequest) {
	c := mr.client
	msg := mr.msg

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	p := s.participantLocked(c.identity)
	if p == nil || c.spectator {
		s.rejectLocked(c, errNotParticipant, "You are not part of this match.")
		return
	}

	if s.status == StatusCompleted {
		s.rejectMoveLocked(c, p, msg, errMatchOver)
		return
	}
	if s.status != StatusInProgress {
		s.rejectMoveLocked(c, p, msg, errMatchNotLive)
		return
	}
	if !inRange(msg.Row, msg.Col) || !validCellValue(msg.Value) {
		s.rejectMoveLocked(c, p, msg, errOutOfRange)
		return
	}

	s.grid[msg.Row][msg.Col] = uint8(msg.Value)
	p.MovesMade++
	if msg.Value != 0 {
		p.Score += scorePerDigit
	}

	s.broadcastLocked(MoveResultMessage{
		Type:     "move_applied",
		Identity: p.Identity,
		Row:      msg.Row,
		Col:      msg.Col,
		Value:    msg.Value,
		Accepted: true,
		Stats:    viewOf(p),
	})
	s.broadcastSnapshotLocked()

	grid := s.grid
	go func() {
		if err := s.store.PersistGrid(s.id, grid); err != nil {
			logf(cfg, "STORE: Persisting grid for %q failed: %v", s.id, err)
		}
	}()

	if !s.grid.isFull() {
		return
	}

	correct := false
	if s.solution != nil {
		correct = s.grid.matchesSolution(s.solution)
	} else {
		correct = s.grid.satisfiesRules()
	}

	if correct {
		s.finishLocked(cfg, outcomeCorrect, s.leaderLocked(""))
	} else {
		s.finishLocked(cfg, outcomeIncorrect, "")
	}
}

func (s *Session) rejectMoveLocked(c *Client, p *Participant, msg ClientMessage, reason error) {
	s.sendToLocked(c, MoveResultMessage{
		Type:     "move_rejected",
		Identity: p.Identity,
		Row:      msg.Row,
		Col:      msg.Col,
		Value:    msg.Value,
		Accepted: false,
		Reason:   reason.Error(),
		Stats:    viewOf(p),
	})
}

// handleHint offers the first empty cell in row-major order. The digit is
// read from the solution when one exists; without one, the lowest digit
// legal under row/col/box constraints is offered. --legacy-hints restores
// the old behavior of suggesting an arbitrary digit.
func (s *Session) handleHint(cfg *Config, hr hintRequest) {
	c := hr.client

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	p := s.participantLocked(c.identity)
	if p == nil || c.spectator {
		s.rejectLocked(c, errNotParticipant, "You are not part of this match.")
		return
	}
	if s.status != StatusInProgress {
		s.rejectLocked(c, errMatchNotLive, "Hints are only available during play.")
		return
	}
	if p.HintsRemaining == 0 {
		s.rejectLocked(c, errNoHints, "No hints remaining.")
		return
	}

	row, col, ok := s.grid.firstEmpty()
	if !ok {
		s.rejectLocked(c, errMatchNotLive, "No empty cells remain.")
		return
	}

	var value uint8
	switch {
	case cfg.legacyHints:
		value = uint8(rand.IntN(9) + 1)
	case s.solution != nil:
		value = s.solution[row][col]
	default:
		value = s.grid.candidate(row, col)
		if value == 0 {
			value = uint8(rand.IntN(9) + 1)
		}
	}

	p.HintsUsed++
	p.HintsRemaining--

	s.sendToLocked(c, HintIssuedMessage{
		Type:           "hint_issued",
		Row:            row,
		Col:            col,
		Value:          int(value),
		HintsRemaining: p.HintsRemaining,
	})
	s.broadcastLocked(HintConsumedMessage{
		Type:           "hint_consumed",
		Identity:       p.Identity,
		Row:            row,
		Col:            col,
		HintsRemaining: p.HintsRemaining,
	})
	s.broadcastSnapshotLocked()
	logf(cfg, "MATCH: Hint for %q in %q at (%d,%d), %d left", c.identity, s.id, row, col, p.HintsRemaining)
}

// handleChat relays a text message to every member of the match.
func (s *Session) handleChat(cfg *Config, cr chatRequest) {
	if cr.msg.Text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	s.broadcastLocked(ChatMessage{
		Type:        "message",
		Identity:    cr.client.identity,
		DisplayName: cr.client.name,
		Text:        cr.msg.Text,
		Timestamp:   time.Now(),
	})
}

// handleSurrender forfeits the match; the opposing side wins.
func (s *Session) handleSurrender(cfg *Config, sr surrenderRequest) {
	c := sr.client

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	p := s.participantLocked(c.identity)
	if p == nil || c.spectator {
		s.rejectLocked(c, errNotParticipant, "You are not part of this match.")
		return
	}
	if s.status != StatusInProgress {
		s.rejectLocked(c, errMatchNotLive, "There is nothing to surrender.")
		return
	}

	logf(cfg, "MATCH: %q surrendered %q", c.identity, s.id)
	s.finishLocked(cfg, outcomeSurrendered, s.leaderLocked(c.identity))
}

// finishLocked moves the session to completed, announces the outcome, and
// notifies the store and prize service off the hot path.
func (s *Session) finishLocked(cfg *Config, outcome, winner string) {
	s.status = StatusCompleted
	s.outcome = outcome
	s.winner = winner

	s.broadcastLocked(CompletedMessage{
		Type:    "completed",
		Outcome: outcome,
		Winner:  winner,
		Stats:   s.viewsLocked(),
	})
	s.broadcastSnapshotLocked()
	logf(cfg, "MATCH: %q completed (%s), winner %q", s.id, outcome, winner)

	matchID := s.id
	prize := s.settings.Prize
	go func() {
		if err := s.store.MarkFinished(matchID, winner); err != nil {
			logf(cfg, "STORE: Marking %q finished failed: %v", matchID, err)
		}
		if winner != "" && prize > 0 {
			if err := s.prizes.Award(matchID, winner, prize); err != nil {
				logf(cfg, "PRIZE: Award for %q failed: %v", matchID, err)
			}
		}
	}()
}

// leaderLocked picks the winner: strictly highest score, equal scores broken
// by lexicographic identity order so the result does not depend on join
// order. exclude removes the surrendering player from contention.
func (s *Session) leaderLocked(exclude string) string {
	var best *Participant
	for _, p := range s.participants {
		if p.Identity == exclude {
			continue
		}
		if best == nil || p.Score > best.Score || (p.Score == best.Score && p.Identity < best.Identity) {
			best = p
		}
	}
	if best == nil {
		return ""
	}
	return best.Identity
}

func (s *Session) participantLocked(identity string) *Participant {
	for _, p := range s.participants {
		if p.Identity == identity {
			return p
		}
	}
	return nil
}

func viewOf(p *Participant) ParticipantView {
	return ParticipantView{
		Identity:       p.Identity,
		DisplayName:    p.DisplayName,
		IsReady:        p.IsReady,
		IsConnected:    p.IsConnected,
		Score:          p.Score,
		MovesMade:      p.MovesMade,
		HintsUsed:      p.HintsUsed,
		HintsRemaining: p.HintsRemaining,
	}
}

func (s *Session) viewsLocked() []ParticipantView {
	views := make([]ParticipantView, 0, len(s.participants))
	for _, p := range s.participants {
		views = append(views, viewOf(p))
	}
	return views
}

func (s *Session) snapshotLocked() SnapshotMessage {
	msg := SnapshotMessage{
		Type:         "snapshot",
		MatchID:      s.id,
		Status:       s.status,
		Mode:         s.mode,
		Grid:         s.grid,
		Participants: s.viewsLocked(),
		Outcome:      s.outcome,
		Winner:       s.winner,
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		msg.StartedAt = &started
	}
	return msg
}

func (s *Session) broadcastSnapshotLocked() {
	s.broadcastLocked(s.snapshotLocked())
}

// broadcastLocked pushes msg to every member, dropping clients whose send
// buffer is full.
func (s *Session) broadcastLocked(msg any) {
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			delete(s.clients, client)
			client.close()
		}
	}
}

// sendToLocked delivers msg to a current member. Clients no longer in the
// map were refused or evicted and their channel may already be closed, so
// they are ignored.
func (s *Session) sendToLocked(c *Client, msg any) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		delete(s.clients, c)
		c.close()
	}
}

func (s *Session) rejectLocked(c *Client, reason error, text string) {
	s.sendToLocked(c, ErrorMessage{
		Type:    "error",
		Reason:  reason.Error(),
		Message: text,
	})
}

// closeAll disconnects every client of this session (used by the reaper).
func (s *Session) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusCompleted {
		s.status = StatusAbandoned
	}

	for c := range s.clients {
		c.close()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(s.clients, c)
	}
}
