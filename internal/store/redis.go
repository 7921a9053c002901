package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatzam/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const txRetries = 8

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.StoreErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.StoreErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// RedisStore implements Store on Redis: one JSON value per document, a
// per-collection id set for queries, and a pub/sub channel per collection
// for change notification.
type RedisStore struct {
	client  *redis.Client
	metrics observability.StoreMetrics
}

// NewRedisStore connects to Redis at addr (host:port or redis:// URL) and
// verifies the connection.
func NewRedisStore(addr string) (*RedisStore, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL %q: %w", addr, err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client (used by tests).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func docKey(collection, id string) string { return "doc:" + collection + ":" + id }

func indexKey(collection string) string { return "idx:" + collection }

func changeChannel(collection string) string { return "changes:" + collection }

func (s *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	defer s.metrics.TrackOp("get", collection)()

	raw, err := s.client.Get(ctx, docKey(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func (s *RedisStore) Set(ctx context.Context, collection, id string, doc Document) error {
	defer s.metrics.TrackOp("set", collection)()
	span, ctx := observability.NewSpan(ctx, "store.set")
	defer span.End()
	span.AddAttributes(attribute.String("collection", collection))

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, id), raw, 0)
		pipe.SAdd(ctx, indexKey(collection), id)
		return nil
	})
	if err != nil {
		span.SetError(err)
		return err
	}
	s.notify(ctx, collection, id)
	return nil
}

func (s *RedisStore) Create(ctx context.Context, collection, id string, doc Document) (bool, error) {
	defer s.metrics.TrackOp("create", collection)()

	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encode document: %w", err)
	}

	// The index add rides in the same pipeline as the SETNX so a created
	// document is never invisible to Find. Re-adding an existing id when
	// the SETNX loses is a no-op on the set.
	var setNX *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setNX = pipe.SetNX(ctx, docKey(collection, id), raw, 0)
		pipe.SAdd(ctx, indexKey(collection), id)
		return nil
	})
	if err != nil {
		return false, err
	}
	if !setNX.Val() {
		return false, nil
	}
	s.notify(ctx, collection, id)
	return true, nil
}

func (s *RedisStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.Transform(ctx, collection, id, func(doc Document) (Document, error) {
		ApplyFields(doc, fields)
		return doc, nil
	})
	return err
}

// Transform runs fn under a WATCH transaction on the document key and
// retries on concurrent modification, so read-modify-write sequences such
// as key get-or-create behave as atomic conditional writes.
func (s *RedisStore) Transform(ctx context.Context, collection, id string, fn func(Document) (Document, error)) (Document, error) {
	defer s.metrics.TrackOp("transform", collection)()
	span, ctx := observability.NewSpan(ctx, "store.transform")
	defer span.End()
	span.AddAttributes(attribute.String("collection", collection))

	key := docKey(collection, id)
	var result Document
	var wrote bool

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return err
		}

		next, err := fn(doc)
		if err != nil {
			return err
		}
		if next == nil {
			result, wrote = doc, false
			return nil
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err == nil {
			result, wrote = next, true
		}
		return err
	}

	var err error
	for attempt := 0; attempt < txRetries; attempt++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if wrote {
		s.notify(ctx, collection, id)
	}
	return result, nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	defer s.metrics.TrackOp("delete", collection)()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(collection, id))
		pipe.SRem(ctx, indexKey(collection), id)
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(ctx, collection, id)
	return nil
}

func (s *RedisStore) Find(ctx context.Context, q Query) ([]Document, error) {
	defer s.metrics.TrackOp("find", q.Collection)()
	span, ctx := observability.NewSpan(ctx, "store.find")
	defer span.End()
	span.AddAttributes(attribute.String("collection", q.Collection))

	ids, err := s.client.SMembers(ctx, indexKey(q.Collection)).Result()
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		doc, err := decodeDocument(str)
		if err != nil {
			return nil, err
		}
		if Matches(doc, q) {
			docs = append(docs, doc)
		}
	}
	SortDocuments(docs, q)
	return docs, nil
}

// Subscribe emits the current result set, then re-runs the query and emits
// again after every mutation in the collection. Notifications are coalesced:
// a burst of writes may produce a single re-emission containing their
// combined effect.
func (s *RedisStore) Subscribe(ctx context.Context, q Query) (<-chan []Document, error) {
	initial, err := s.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	pubsub := s.client.Subscribe(ctx, changeChannel(q.Collection))
	out := make(chan []Document, 1)

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		select {
		case out <- initial:
		case <-ctx.Done():
			return
		}

		changes := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				drainPending(changes)
				docs, err := s.Find(ctx, q)
				if err != nil {
					// The next notification retries the query.
					continue
				}
				select {
				case out <- docs:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func drainPending(ch <-chan *redis.Message) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func (s *RedisStore) notify(ctx context.Context, collection, id string) {
	// Best effort: a lost notification only delays re-emission until the
	// next mutation.
	_ = s.client.Publish(ctx, changeChannel(collection), id).Err()
}

func decodeDocument(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
