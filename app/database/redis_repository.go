package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/lemmy-mirror/app/mirror"
	"github.com/redis/go-redis/v9"
)

var _ MirrorRepository = (*RedisMirrorRepository)(nil)

// RedisMirrorRepository keeps one JSON record per mirrored item plus a
// per-job sorted set (score = mirrored_at) for counts and recent listings.
type RedisMirrorRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisMirrorRepository(ctx context.Context, addr, password string) (*RedisMirrorRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &RedisMirrorRepository{client: client, prefix: "mirror"}, nil
}

func (r *RedisMirrorRepository) Close() error {
	return r.client.Close()
}

func (r *RedisMirrorRepository) Ledger(job string) mirror.Ledger {
	return &redisLedger{repo: r, job: job}
}

func (r *RedisMirrorRepository) GetMirroredCount(ctx context.Context, job string) (int, error) {
	count, err := r.client.ZCard(ctx, r.indexKey(job)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count mirrored items: %w", err)
	}
	return int(count), nil
}

func (r *RedisMirrorRepository) GetRecentItems(ctx context.Context, job string, limit int) ([]mirror.LedgerRecord, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(job), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list mirrored items: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.itemKey(job, id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load mirrored items: %w", err)
	}

	records := make([]mirror.LedgerRecord, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", keys[i], err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r *RedisMirrorRepository) itemKey(job, sourceID string) string {
	return fmt.Sprintf("%s:%s:item:%s", r.prefix, job, sourceID)
}

func (r *RedisMirrorRepository) indexKey(job string) string {
	return fmt.Sprintf("%s:%s:index", r.prefix, job)
}

func encodeRecord(rec mirror.LedgerRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(raw string) (mirror.LedgerRecord, error) {
	var rec mirror.LedgerRecord
	err := json.Unmarshal([]byte(raw), &rec)
	return rec, err
}

type redisLedger struct {
	repo *RedisMirrorRepository
	job  string
}

func (l *redisLedger) Contains(ctx context.Context, sourceID string) (bool, error) {
	count, err := l.repo.client.Exists(ctx, l.repo.itemKey(l.job, sourceID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of %s: %w", sourceID, err)
	}
	return count > 0, nil
}

// Insert uses SETNX so a duplicate id leaves the first record untouched.
func (l *redisLedger) Insert(ctx context.Context, rec mirror.LedgerRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.SourceID, err)
	}

	created, err := l.repo.client.SetNX(ctx, l.repo.itemKey(l.job, rec.SourceID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set record %s: %w", rec.SourceID, err)
	}
	if !created {
		return nil
	}

	err = l.repo.client.ZAdd(ctx, l.repo.indexKey(l.job), redis.Z{
		Score:  float64(rec.MirroredAt.Unix()),
		Member: rec.SourceID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index record %s: %w", rec.SourceID, err)
	}

	return nil
}
