package portfolio

import (
	"sync"

	"github.com/ver3trade/engine/core"
)

// memStore is an in-memory core.StateStore for cycle tests.
type memStore struct {
	mu        sync.Mutex
	states    []*core.EngineState
	factors   []core.FactorsRecord
	txs       []core.Transaction
	outcomes  []core.TradeOutcome
	snapshots []core.DailySnapshot
}

func (m *memStore) LoadState() (*core.EngineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return core.NewEngineState(), nil
	}
	return m.states[len(m.states)-1], nil
}

func (m *memStore) SaveState(state *core.EngineState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
	return nil
}

func (m *memStore) SaveFactors(record core.FactorsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factors = append(m.factors, record)
	return nil
}

func (m *memStore) AppendTransaction(tx core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memStore) AppendOutcome(outcome core.TradeOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func (m *memStore) SaveDailySnapshot(snapshot core.DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *memStore) Outcomes() ([]core.TradeOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes, nil
}

func (m *memStore) lastSnapshot() *core.DailySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil
	}
	return &m.snapshots[len(m.snapshots)-1]
}

func (m *memStore) lastState() *core.EngineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return nil
	}
	return m.states[len(m.states)-1]
}
