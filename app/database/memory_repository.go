package database

import (
	"context"
	"sync"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

var _ MirrorRepository = (*MemoryMirrorRepository)(nil)

// MemoryMirrorRepository forgets everything on restart. Useful for dry runs
// against a test community.
type MemoryMirrorRepository struct {
	mu      sync.Mutex
	ledgers map[string]*mirror.MemoryLedger
}

func NewMemoryMirrorRepository() *MemoryMirrorRepository {
	return &MemoryMirrorRepository{ledgers: make(map[string]*mirror.MemoryLedger)}
}

func (r *MemoryMirrorRepository) Ledger(job string) mirror.Ledger {
	return r.ledger(job)
}

func (r *MemoryMirrorRepository) GetMirroredCount(_ context.Context, job string) (int, error) {
	return r.ledger(job).Len(), nil
}

func (r *MemoryMirrorRepository) GetRecentItems(_ context.Context, job string, limit int) ([]mirror.LedgerRecord, error) {
	records := r.ledger(job).Records()
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *MemoryMirrorRepository) ledger(job string) *mirror.MemoryLedger {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.ledgers[job]
	if !ok {
		l = mirror.NewMemoryLedger()
		r.ledgers[job] = l
	}
	return l
}
