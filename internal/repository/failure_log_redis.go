package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix = "failurelog"
	maxAcknowledgeRetries = 5
)

var _ FailureLog = (*RedisFailureLog)(nil)

// RedisFailureLog keeps entries in a hash keyed by correlation ID and orders them with a sorted set
// scored by log time. Durability relies on the server running with AOF persistence.
type RedisFailureLog struct {
	client     goredis.UniversalClient
	entriesKey string
	indexKey   string
	pageSize   int64
	now        func() time.Time
}

func NewRedisFailureLog(client goredis.UniversalClient, keyPrefix string) (*RedisFailureLog, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}

	return &RedisFailureLog{
		client:     client,
		entriesKey: prefix + ":entries",
		indexKey:   prefix + ":index",
		pageSize:   defaultListPageSize,
		now:        time.Now,
	}, nil
}

func (r *RedisFailureLog) Record(
	ctx context.Context,
	req domain.NotificationRequest,
	attempts []domain.AttemptOutcome,
) (*domain.FailureLogEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	entry := newFailureLogEntry(req, attempts, r.now())
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode failure log entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, r.entriesKey, req.CorrelationID, payload)
		pipe.ZAdd(ctx, r.indexKey, goredis.Z{
			Score:  float64(entry.LoggedAt.UnixMilli()),
			Member: req.CorrelationID,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record failure log entry: %w", err)
	}

	return &entry, nil
}

// List pages the index newest first with a (score, member) cursor, so entries recorded while a
// listing is in progress neither repeat nor push older entries out of view.
func (r *RedisFailureLog) List(ctx context.Context) iter.Seq2[domain.FailureLogEntry, error] {
	return func(yield func(domain.FailureLogEntry, error) bool) {
		var (
			cursor   indexCursor
			maxScore = "+inf"
			offset   int64
		)
		for {
			page, err := r.client.ZRevRangeByScoreWithScores(ctx, r.indexKey, &goredis.ZRangeBy{
				Min:    "-inf",
				Max:    maxScore,
				Offset: offset,
				Count:  r.pageSize,
			}).Result()
			if err != nil {
				yield(domain.FailureLogEntry{}, fmt.Errorf("failed to list failure log index: %w", err))
				return
			}

			ids := make([]string, 0, len(page))
			for _, z := range page {
				member, _ := z.Member.(string)
				if cursor.valid && z.Score == cursor.score {
					// Offset counts positions inside the cursor's score so ties are not re-read.
					offset++
					if member >= cursor.member {
						continue
					}
				} else {
					offset = 1
				}
				cursor = indexCursor{valid: true, score: z.Score, member: member}
				ids = append(ids, member)
			}
			if cursor.valid {
				maxScore = strconv.FormatFloat(cursor.score, 'f', -1, 64)
			}

			if len(ids) > 0 && !r.yieldEntries(ctx, ids, yield) {
				return
			}
			if int64(len(page)) < r.pageSize {
				return
			}
		}
	}
}

type indexCursor struct {
	valid  bool
	score  float64
	member string
}

func (r *RedisFailureLog) yieldEntries(
	ctx context.Context,
	ids []string,
	yield func(domain.FailureLogEntry, error) bool,
) bool {
	values, err := r.client.HMGet(ctx, r.entriesKey, ids...).Result()
	if err != nil {
		yield(domain.FailureLogEntry{}, fmt.Errorf("failed to load failure log entries: %w", err))
		return false
	}

	for _, value := range values {
		// Cleared between the index read and the hash read.
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var entry domain.FailureLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			if !yield(domain.FailureLogEntry{}, fmt.Errorf("failed to decode failure log entry: %w", err)) {
				return false
			}
			continue
		}
		if !yield(entry, nil) {
			return false
		}
	}
	return true
}

func (r *RedisFailureLog) Acknowledge(ctx context.Context, correlationID string) error {
	update := func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, r.entriesKey, correlationID).Bytes()
		if errors.Is(err, goredis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var entry domain.FailureLogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("failed to decode failure log entry: %w", err)
		}
		if entry.Acknowledged {
			return nil
		}
		entry.Acknowledged = true

		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode failure log entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, r.entriesKey, correlationID, payload)
			return nil
		})
		return err
	}

	for i := 0; i < maxAcknowledgeRetries; i++ {
		err := r.client.Watch(ctx, update, r.entriesKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to acknowledge failure log entry: %w", err)
		}
		return err
	}

	return fmt.Errorf("failed to acknowledge failure log entry: %w", goredis.TxFailedErr)
}

func (r *RedisFailureLog) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.entriesKey, r.indexKey).Err(); err != nil {
		return fmt.Errorf("failed to clear failure log: %w", err)
	}
	return nil
}

func (r *RedisFailureLog) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
