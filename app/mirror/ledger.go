package mirror

import (
	"context"
	"sort"
	"sync"
)

// Ledger records which source items were mirrored.
// After a successful Insert, Contains reports true for that id. Inserting a
// duplicate id is a no-op.
type Ledger interface {
	Contains(ctx context.Context, sourceID string) (bool, error)
	Insert(ctx context.Context, record LedgerRecord) error
}

// MemoryLedger keeps records in process memory, for dry runs.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]LedgerRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]LedgerRecord)}
}

func (l *MemoryLedger) Contains(_ context.Context, sourceID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[sourceID]
	return ok, nil
}

func (l *MemoryLedger) Insert(_ context.Context, record LedgerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[record.SourceID]; !ok {
		l.records[record.SourceID] = record
	}
	return nil
}

func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns the stored records, newest first.
func (l *MemoryLedger) Records() []LedgerRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := make([]LedgerRecord, 0, len(l.records))
	for _, rec := range l.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].MirroredAt.After(records[j].MirroredAt)
	})
	return records
}
