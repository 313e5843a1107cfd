package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key layout on the hosted Redis instance:
//
//	doc:<path>    JSON-encoded document fields
//	col:<path>    set of member document paths for a collection
//	watch:<path>  pub/sub channel notified on every write to the document
//	              (and to its collection channel)
const (
	docKeyPrefix   = "doc:"
	colKeyPrefix   = "col:"
	watchKeyPrefix = "watch:"
)

// RedisOptions configures the connection to the hosted store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Store on a hosted Redis instance. Writes publish the
// updated document on the document's and its collection's watch channel, so
// subscriptions observe changes in pub/sub arrival order.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to the store and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, wrapNetwork("ping document store", err)
	}
	return &RedisStore{rdb: rdb, logger: logger}, nil
}

// Close releases the connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Get returns the document at path, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, path string) (*Document, error) {
	raw, err := s.rdb.Get(ctx, docKeyPrefix+path).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, wrapNetwork("get "+path, err)
	}
	return decodeDocument(path, []byte(raw))
}

// Set writes fields at path, creating the document if absent. With merge,
// fields not named keep their current value (last write wins per field).
func (s *RedisStore) Set(ctx context.Context, path string, fields map[string]any, merge bool) error {
	out := fields
	if merge {
		existing, err := s.Get(ctx, path)
		if err == nil {
			out = existing.Fields
			for k, v := range fields {
				out[k] = v
			}
		} else if !isNotFound(err) {
			return err
		}
	}
	return s.write(ctx, path, out)
}

// Update overwrites the named fields of an existing document. Fails with
// ErrNotFound if the document is absent.
func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	existing, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	for k, v := range fields {
		existing.Fields[k] = v
	}
	return s.write(ctx, path, existing.Fields)
}

// Query returns the documents of a collection matching all filters.
func (s *RedisStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Document, error) {
	paths, err := s.rdb.SMembers(ctx, colKeyPrefix+collection).Result()
	if err != nil {
		return nil, wrapNetwork("list "+collection, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = docKeyPrefix + p
	}
	raws, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapNetwork("load "+collection, err)
	}

	var docs []*Document
	for i, raw := range raws {
		body, ok := raw.(string)
		if !ok {
			// Index entry with no backing document; skip.
			continue
		}
		doc, err := decodeDocument(paths[i], []byte(body))
		if err != nil {
			s.logger.Warn("skipping undecodable document", zap.String("path", paths[i]), zap.Error(err))
			continue
		}
		if matchesAll(doc, filters) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Subscribe watches a single document. Delivers the current snapshot first
// (nil if absent), then one callback per observed write.
func (s *RedisStore) Subscribe(path string, fn func(*Document)) (func(), error) {
	ctx := context.Background()
	pubsub := s.rdb.Subscribe(ctx, watchKeyPrefix+path)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, wrapNetwork("subscribe "+path, err)
	}

	initial, err := s.Get(ctx, path)
	if err != nil && !isNotFound(err) {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		fn(initial)
		for msg := range pubsub.Channel() {
			doc, err := decodeDocument(path, []byte(msg.Payload))
			if err != nil {
				s.logger.Warn("dropping undecodable update", zap.String("path", path), zap.Error(err))
				continue
			}
			fn(doc)
		}
	}()

	return s.cancelFunc(pubsub), nil
}

// SubscribeQuery watches a collection query. Delivers the current result set
// first, then re-runs the query and re-delivers on every write anywhere in
// the collection.
func (s *RedisStore) SubscribeQuery(collection string, filters []Filter, fn func([]*Document)) (func(), error) {
	ctx := context.Background()
	pubsub := s.rdb.Subscribe(ctx, watchKeyPrefix+collection)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, wrapNetwork("subscribe "+collection, err)
	}

	run := func() ([]*Document, error) {
		return s.Query(context.Background(), collection, filters...)
	}

	initial, err := run()
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		fn(initial)
		for range pubsub.Channel() {
			docs, err := run()
			if err != nil {
				// A failed refresh stalls this subscription's view until the
				// next write; no retry.
				s.logger.Warn("query refresh failed", zap.String("collection", collection), zap.Error(err))
				continue
			}
			fn(docs)
		}
	}()

	return s.cancelFunc(pubsub), nil
}

func (s *RedisStore) cancelFunc(pubsub *redis.PubSub) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				s.logger.Warn("closing subscription", zap.Error(err))
			}
		})
	}
}

func (s *RedisStore) write(ctx context.Context, path string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := s.rdb.Set(ctx, docKeyPrefix+path, body, 0).Err(); err != nil {
		return wrapNetwork("write "+path, err)
	}
	collection := CollectionOf(path)
	if err := s.rdb.SAdd(ctx, colKeyPrefix+collection, path).Err(); err != nil {
		return wrapNetwork("index "+path, err)
	}
	// Notify document watchers and collection watchers.
	if err := s.rdb.Publish(ctx, watchKeyPrefix+path, body).Err(); err != nil {
		return wrapNetwork("notify "+path, err)
	}
	if err := s.rdb.Publish(ctx, watchKeyPrefix+collection, body).Err(); err != nil {
		return wrapNetwork("notify "+collection, err)
	}
	return nil
}

func decodeDocument(path string, body []byte) (*Document, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &Document{Path: path, Fields: fields}, nil
}

func matchesAll(doc *Document, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(doc.Fields) {
			return false
		}
	}
	return true
}

func wrapNetwork(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrNetwork)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
