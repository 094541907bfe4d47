package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Store-side match status values.
const (
	recordWaiting  = "waiting"
	recordActive   = "active"
	recordFinished = "finished"
)

var errNoRecord = errors.New("no record for match")

// MatchRecord is the persisted shape of one match. Sessions hydrate from it
// and write back through PersistGrid/MarkFinished.
type MatchRecord struct {
	ID              string     `json:"id"`
	Mode            MatchMode  `json:"mode"`
	Status          string     `json:"status"`
	Grid            Grid       `json:"grid"`
	Solution        *Grid      `json:"solution,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	TimeLimit       int        `json:"time_limit,omitempty"` // seconds
	HintsAllowed    int        `json:"hints_allowed,omitempty"`
	AllowSpectators bool       `json:"allow_spectators,omitempty"`
	Prize           int        `json:"prize,omitempty"`
	Winner          string     `json:"winner,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// MatchStore is the external match record collaborator. Implementations must
// treat failures as non-fatal; sessions log and continue on error.
type MatchStore interface {
	LoadMatch(id string) (*MatchRecord, error)
	PersistGrid(id string, grid Grid) error
	MarkFinished(id string, winner string) error
}

// FileMatchStore keeps match records as JSON files under matches/ in the
// data directory, one file per match, with a small read cache.
type FileMatchStore struct {
	storage *storage.Storage
	locks   sync.Map // per-match *sync.RWMutex
	cache   *lru.Cache[string, *MatchRecord]
}

func NewFileMatchStore(dataDir string) *FileMatchStore {
	cache, _ := lru.New[string, *MatchRecord](1024)
	return &FileMatchStore{
		storage: storage.New(dataDir, nil),
		cache:   cache,
	}
}

func matchFilename(id string) string {
	return filepath.Join("matches", url.PathEscape(id)+".json")
}

func (fs *FileMatchStore) lockFor(id string) *sync.RWMutex {
	m, _ := fs.locks.LoadOrStore(id, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

func (fs *FileMatchStore) LoadMatch(id string) (*MatchRecord, error) {
	mutex := fs.lockFor(id)
	mutex.RLock()
	defer mutex.RUnlock()

	return fs.readLocked(id)
}

// SaveMatch writes a full record, for seeding matches and for tests.
func (fs *FileMatchStore) SaveMatch(rec *MatchRecord) error {
	mutex := fs.lockFor(rec.ID)
	mutex.Lock()
	defer mutex.Unlock()

	return fs.saveLocked(rec)
}

func (fs *FileMatchStore) saveLocked(rec *MatchRecord) error {
	if err := fs.storage.SaveDataFile(matchFilename(rec.ID), rec); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}

	clone := *rec
	fs.cache.Add(rec.ID, &clone)

	return nil
}

func (fs *FileMatchStore) PersistGrid(id string, grid Grid) error {
	mutex := fs.lockFor(id)
	mutex.Lock()
	defer mutex.Unlock()

	rec, err := fs.readLocked(id)
	if err != nil {
		// First write for a match the store has never seen.
		rec = &MatchRecord{ID: id, Mode: ModeSimultaneous, Status: recordActive}
	}
	rec.Grid = grid

	return fs.saveLocked(rec)
}

func (fs *FileMatchStore) MarkFinished(id string, winner string) error {
	mutex := fs.lockFor(id)
	mutex.Lock()
	defer mutex.Unlock()

	rec, err := fs.readLocked(id)
	if err != nil {
		rec = &MatchRecord{ID: id, Mode: ModeSimultaneous}
	}
	now := time.Now()
	rec.Status = recordFinished
	rec.Winner = winner
	rec.FinishedAt = &now

	return fs.saveLocked(rec)
}

// readLocked reads one record through the cache. A missing file reports
// errNoRecord; any other read failure (corruption, I/O) passes through so
// callers can tell a miss from a broken store.
func (fs *FileMatchStore) readLocked(id string) (*MatchRecord, error) {
	if rec, ok := fs.cache.Get(id); ok {
		clone := *rec
		return &clone, nil
	}

	var rec MatchRecord
	if err := fs.storage.ReadDataFile(matchFilename(id), &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", errNoRecord, id)
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	rec.ID = id

	clone := rec
	fs.cache.Add(id, &clone)

	return &rec, nil
}

// PrizeService credits a match winner. Invoked fire-and-forget on
// completion; failures are logged, never surfaced to the session.
type PrizeService interface {
	Award(matchID, winner string, amount int) error
}

// logPrizeService records awards in the server log. A real deployment
// substitutes the wallet backend here.
type logPrizeService struct {
	cfg *Config
}

func (p *logPrizeService) Award(matchID, winner string, amount int) error {
	logf(p.cfg, "PRIZE: Credited %d to %q for winning %q", amount, winner, matchID)
	return nil
}
