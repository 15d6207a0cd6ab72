package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	expiryIndexKey  = "chat_sessions:expiry"
	symptomIndexKey = "chat_sessions:symptom"

	// how many recent symptom sessions GetMostRecentWithSymptom inspects
	recentScanLimit = 50
)

func sessionKey(id string) string {
	return "chat_session:" + id
}

// RedisStore keeps each session as JSON under chat_session:<id>. Keys outlive
// ExpiresAt by a retention window so an expired session is reported as
// expired rather than silently restarted.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
	tracer    trace.Tracer
}

type RedisStoreOptions struct {
	TTL       time.Duration
	Retention time.Duration
	Now       func() time.Time
	Tracer    trace.Tracer
}

func NewRedisStore(client *redis.Client, opts RedisStoreOptions) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("hospiico.internal.session.redis")
	}
	return &RedisStore{
		client:    client,
		ttl:       opts.TTL,
		retention: opts.Retention,
		now:       opts.Now,
		tracer:    opts.Tracer,
	}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.get")
	defer span.End()
	span.SetAttributes(attribute.String("hospiico.session_id", id))

	return r.load(ctx, r.client, id, span)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, g getter, id string, span trace.Span) (*Session, error) {
	data, err := g.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	s, err := r.Get(ctx, id)
	if err != nil || s != nil {
		return s, err
	}
	return New(id, r.now(), r.ttl), nil
}

func (r *RedisStore) GetMostRecentWithSymptom(ctx context.Context) (*Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.most_recent_with_symptom")
	defer span.End()

	ids, err := r.client.ZRevRange(ctx, symptomIndexKey, 0, recentScanLimit-1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: read symptom index: %w", err)
	}

	now := r.now()
	for _, id := range ids {
		s, err := r.load(ctx, r.client, id, span)
		if err != nil {
			return nil, err
		}
		if s == nil {
			// key already evicted; drop the stale index entry
			r.client.ZRem(ctx, symptomIndexKey, id)
			continue
		}
		if s.HasSymptom() && !s.Expired(now) {
			return s, nil
		}
	}
	return nil, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ctx, span := r.tracer.Start(ctx, "session.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("hospiico.session_id", s.ID),
		attribute.String("hospiico.step", s.Step.String()),
		attribute.Int64("hospiico.revision", s.Revision),
	)

	key := sessionKey(s.ID)
	now := r.now()

	next := s.Clone()
	next.Revision++
	next.UpdatedAt = now

	data, err := json.Marshal(next)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: encode %s: %w", s.ID, err)
	}

	ttl := next.ExpiresAt.Sub(now) + r.retention
	if ttl < time.Second {
		ttl = time.Second
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := r.load(ctx, tx, s.ID, span)
		if err != nil {
			return err
		}
		var current int64
		if stored != nil {
			current = stored.Revision
		}
		if current != s.Revision {
			return ErrRevisionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			pipe.ZAdd(ctx, expiryIndexKey, redis.Z{Score: float64(next.ExpiresAt.Unix()), Member: next.ID})
			if next.HasSymptom() {
				pipe.ZAdd(ctx, symptomIndexKey, redis.Z{Score: float64(next.CreatedAt.UnixMilli()), Member: next.ID})
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			err = ErrRevisionConflict
		}
		span.RecordError(err)
		if errors.Is(err, ErrRevisionConflict) {
			return err
		}
		return fmt.Errorf("session: save %s: %w", s.ID, err)
	}

	s.Revision = next.Revision
	s.UpdatedAt = now
	return nil
}

func (r *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "session.purge_expired")
	defer span.End()

	// ExpiresAt < now, so the upper bound is exclusive
	ids, err := r.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("session: read expiry index: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	members := make([]any, len(ids))
	keys := make([]string, len(ids))
	for i, id := range ids {
		members[i] = id
		keys[i] = sessionKey(id)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, expiryIndexKey, members...)
		pipe.ZRem(ctx, symptomIndexKey, members...)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("session: purge expired: %w", err)
	}

	span.SetAttributes(attribute.Int("hospiico.purged", len(ids)))
	return len(ids), nil
}
