package database

import (
	"context"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
)

// MirrorRepository stores ledger records grouped by job name.
type MirrorRepository interface {
	Ledger(job string) mirror.Ledger
	GetMirroredCount(ctx context.Context, job string) (int, error)
	GetRecentItems(ctx context.Context, job string, limit int) ([]mirror.LedgerRecord, error)
}
