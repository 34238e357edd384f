// Package storage persists the engine's durable files. The primary
// implementation is a directory of JSON documents written atomically;
// buntdb and SQL order journals are available as higher-volume sinks
// for per-order audit rows.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"syscall"

	"github.com/ver3trade/engine/core"
)

// File names inside the data directory. The dashboard reads these by
// name, so they are part of the on-disk contract.
const (
	StateFile       = "engine_state.json"
	PositionsFile   = "positions.json"
	FactorsFile     = "dynamic_factors.json"
	JournalFile     = "transaction_journal.json"
	DailyFile       = "daily_history.json"
	PerformanceFile = "performance_history.json"

	lockFile = "engine.lock"
)

// FileStore implements core.StateStore over a directory of JSON files.
// Every write goes through a temp-file + fsync + rename sequence so a
// crash mid-write leaves the previous version intact.
type FileStore struct {
	dir string
	log core.Logger

	mu sync.Mutex
}

// journalDoc is the envelope of transaction_journal.json.
type journalDoc struct {
	Transactions []core.Transaction `json:"transactions"`
}

// dailyDoc is the envelope of daily_history.json.
type dailyDoc struct {
	Snapshots []core.DailySnapshot `json:"snapshots"`
}

// performanceDoc is the envelope of performance_history.json.
type performanceDoc struct {
	Outcomes []core.TradeOutcome `json:"outcomes"`
}

// NewFileStore opens (creating if needed) the data directory and takes
// the instance lock. A second engine pointed at the same directory
// fails here instead of corrupting state.
func NewFileStore(dir string, log core.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &FileStore{dir: dir, log: log}
	if err := s.acquireLock(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the instance lock.
func (s *FileStore) Close() error {
	return os.Remove(filepath.Join(s.dir, lockFile))
}

func (s *FileStore) acquireLock() error {
	path := filepath.Join(s.dir, lockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		// A previous run may have died without cleanup. If the recorded
		// pid is gone, take over the stale lock.
		if pid, readErr := os.ReadFile(path); readErr == nil && !processAlive(string(pid)) {
			s.log.WithField("path", path).Warn("removing stale lock file")
			_ = os.Remove(path)
			f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		}
	}
	if err != nil {
		return fmt.Errorf("data dir %s is locked by another instance: %w", s.dir, err)
	}
	defer f.Close()

	_, err = f.WriteString(strconv.Itoa(os.Getpid()))
	return err
}

func processAlive(pidText string) bool {
	pid, err := strconv.Atoi(pidText)
	if err != nil || pid <= 0 {
		return false
	}
	// FindProcess never fails on unix; signal 0 probes existence.
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// LoadState implements core.StateStore. A missing or corrupt
// engine_state.json is recoverable and yields a fresh default, but a
// corrupt positions.json means open positions can no longer be trusted
// and the engine must not trade: that surfaces as ErrStateCorruption.
func (s *FileStore) LoadState() (*core.EngineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := core.NewEngineState()
	if err := s.readJSON(StateFile, state); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).Warn("state file unreadable, starting from defaults")
			state = core.NewEngineState()
		}
	}
	if state.LastRegimePerCoin == nil {
		state.LastRegimePerCoin = make(map[string]core.Regime)
	}

	// positions.json is authoritative over the copy embedded in the
	// state file.
	var positions []core.Position
	err := s.readJSON(PositionsFile, &positions)
	switch {
	case err == nil:
		state.Positions = positions
	case errors.Is(err, os.ErrNotExist):
		// First run, keep whatever the state file carried.
	default:
		return nil, fmt.Errorf("%w: positions file: %v", core.ErrStateCorruption, err)
	}

	for _, p := range state.Positions {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStateCorruption, err)
		}
	}
	return state, nil
}

// SaveState implements core.StateStore. The positions mirror is written
// first so a crash between the two writes is detected as a stale state
// file rather than lost positions.
func (s *FileStore) SaveState(state *core.EngineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeJSON(PositionsFile, state.Positions); err != nil {
		return err
	}
	return s.writeJSON(StateFile, state)
}

// SaveFactors implements core.StateStore.
func (s *FileStore) SaveFactors(record core.FactorsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(FactorsFile, record)
}

// AppendTransaction implements core.StateStore.
func (s *FileStore) AppendTransaction(tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc journalDoc
	if err := s.readRecoverable(JournalFile, &doc); err != nil {
		return err
	}
	doc.Transactions = append(doc.Transactions, tx)
	return s.writeJSON(JournalFile, doc)
}

// AppendOutcome implements core.StateStore.
func (s *FileStore) AppendOutcome(outcome core.TradeOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc performanceDoc
	if err := s.readRecoverable(PerformanceFile, &doc); err != nil {
		return err
	}
	doc.Outcomes = append(doc.Outcomes, outcome)
	return s.writeJSON(PerformanceFile, doc)
}

// Outcomes implements core.StateStore.
func (s *FileStore) Outcomes() ([]core.TradeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc performanceDoc
	if err := s.readRecoverable(PerformanceFile, &doc); err != nil {
		return nil, err
	}
	return doc.Outcomes, nil
}

// SaveDailySnapshot implements core.StateStore. A snapshot for an
// already-recorded date replaces the earlier row, so re-running within
// the same day never duplicates history.
func (s *FileStore) SaveDailySnapshot(snapshot core.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc dailyDoc
	if err := s.readRecoverable(DailyFile, &doc); err != nil {
		return err
	}

	replaced := false
	for i := range doc.Snapshots {
		if doc.Snapshots[i].Date == snapshot.Date {
			doc.Snapshots[i] = snapshot
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Snapshots = append(doc.Snapshots, snapshot)
	}
	sort.Slice(doc.Snapshots, func(i, j int) bool {
		return doc.Snapshots[i].Date < doc.Snapshots[j].Date
	})
	return s.writeJSON(DailyFile, doc)
}

// Transactions returns the full journal, oldest first.
func (s *FileStore) Transactions() ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc journalDoc
	if err := s.readRecoverable(JournalFile, &doc); err != nil {
		return nil, err
	}
	return doc.Transactions, nil
}

// DailySnapshots returns daily history rows, oldest first.
func (s *FileStore) DailySnapshots() ([]core.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc dailyDoc
	if err := s.readRecoverable(DailyFile, &doc); err != nil {
		return nil, err
	}
	return doc.Snapshots, nil
}

// readRecoverable loads a peripheral file, treating missing or corrupt
// content as an empty document after logging a warning.
func (s *FileStore) readRecoverable(name string, v any) error {
	err := s.readJSON(name, v)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	s.log.WithError(err).WithField("file", name).Warn("file unreadable, starting a fresh one")
	return nil
}

func (s *FileStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// writeJSON performs the atomic replace: marshal into a temp file in
// the same directory, fsync, then rename over the target.
func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
