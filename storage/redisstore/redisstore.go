// Package redisstore is a Redis storage backend.
//
// Each record is a JSON string under prefix:collection:rec:<id>. A sorted
// set at prefix:collection:ids keeps insertion order; its scores come from a
// counter at prefix:collection:seq. Saves run in a MULTI/EXEC transaction.
// Queries read the collection and filter in process, except for a plain id
// match which reads one key.
package redisstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/persist/entity"
	apperrors "github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/logger"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
	"github.com/kbukum/persist/redis"
	"github.com/kbukum/persist/storage"
)

const backend = storage.DriverRedis

func init() {
	storage.RegisterFactory(storage.DriverRedis, func(ctx context.Context, cfg storage.Config, log *logger.Logger) (storage.Store, error) {
		client, err := redis.New(cfg.Redis, log)
		if err != nil {
			return nil, apperrors.StorageError(backend, err)
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, apperrors.StorageError(backend, err)
		}
		s := New(client, cfg.Collection, cfg.IDField, log)
		s.ownsClient = true
		return s, nil
	})
}

// Store is one collection in Redis.
type Store struct {
	client     *redis.Client
	rdb        *goredis.Client
	collection string
	idField    string
	ownsClient bool
	log        *logger.Logger
}

var _ storage.Store = (*Store)(nil)

// New returns a Store for collection using client.
func New(client *redis.Client, collection, idField string, log *logger.Logger) *Store {
	if collection == "" {
		collection = storage.DefaultCollection
	}
	if idField == "" {
		idField = entity.IDField
	}
	if log == nil {
		log = logger.Get(logger.ComponentStorage)
	}
	return &Store{
		client:     client,
		rdb:        client.Unwrap(),
		collection: collection,
		idField:    idField,
		log:        log,
	}
}

func (s *Store) recordKey(member string) string { return s.client.Key(s.collection, "rec", member) }
func (s *Store) indexKey() string               { return s.client.Key(s.collection, "ids") }
func (s *Store) seqKey() string                 { return s.client.Key(s.collection, "seq") }

// Save writes records in one transaction. Records without an id get a UUID.
func (s *Store) Save(ctx context.Context, records []entity.PlainData) ([]entity.PlainData, error) {
	results := make([]entity.PlainData, len(records))
	if len(records) == 0 {
		return results, nil
	}

	docs := make([][]byte, len(records))
	members := make([]string, len(records))
	for i, rec := range records {
		rec = rec.Clone()
		if rec == nil {
			rec = entity.PlainData{}
		}
		id, ok := rec[s.idField]
		if !ok || entity.IsAbsentID(id) {
			id = uuid.NewString()
			rec[s.idField] = id
			results[i] = entity.PlainData{s.idField: id}
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, apperrors.InvalidArgumentf("record is not JSON encodable: %v", err).WithCause(err)
		}
		docs[i] = raw
		members[i] = storage.IDKey(id)
	}

	last, err := s.rdb.IncrBy(ctx, s.seqKey(), int64(len(records))).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	first := last - int64(len(records)) + 1

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i := range records {
			pipe.Set(ctx, s.recordKey(members[i]), docs[i], 0)
			pipe.ZAddNX(ctx, s.indexKey(), goredis.Z{Score: float64(first + int64(i)), Member: members[i]})
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	s.log.Debug("records saved", logger.Fields(logger.FieldBatchSize, len(records)))
	return results, nil
}

// Fetch returns the matching records.
func (s *Store) Fetch(ctx context.Context, filter storage.Filter, opts ...storage.Option) (*pipeline.Pipeline[entity.PlainData], error) {
	records, err := s.query(ctx, filter, "", opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.FromSlice(records), nil
}

// Search returns the matching records that contain every term.
func (s *Store) Search(ctx context.Context, terms string, filter storage.Filter, opts ...storage.Option) (*pipeline.Pipeline[entity.PlainData], error) {
	records, err := s.query(ctx, filter, terms, opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.FromSlice(records), nil
}

// Count returns the number of matching records.
func (s *Store) Count(ctx context.Context, filter storage.Filter, opts ...storage.Option) (int, error) {
	if len(filter) == 0 {
		total, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
		if err != nil {
			return 0, s.wrap(err)
		}
		return storage.NewOptions(opts...).Window(int(total)), nil
	}
	records, err := s.query(ctx, filter, "", opts...)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Delete removes the matching records and their index entries.
func (s *Store) Delete(ctx context.Context, filter storage.Filter) (int, error) {
	records, err := s.query(ctx, filter, "")
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	keys := make([]string, len(records))
	members := make([]any, len(records))
	for i, rec := range records {
		member := storage.IDKey(rec[s.idField])
		keys[i] = s.recordKey(member)
		members[i] = member
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return 0, s.wrap(err)
	}
	return len(records), nil
}

// CheckHealth pings Redis.
func (s *Store) CheckHealth(ctx context.Context) observability.Health {
	h := s.client.CheckHealth(ctx)
	if h.Details == nil {
		h.Details = map[string]string{}
	}
	h.Details["collection"] = s.collection
	return h
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

func (s *Store) query(ctx context.Context, filter storage.Filter, terms string, opts ...storage.Option) ([]entity.PlainData, error) {
	conds, err := filter.Conditions()
	if err != nil {
		return nil, err
	}
	members, err := s.candidates(ctx, conds)
	if err != nil {
		return nil, err
	}
	records, err := s.load(ctx, members)
	if err != nil {
		return nil, err
	}
	if terms != "" {
		records, err = pipeline.Collect(ctx, pipeline.Filter(pipeline.FromSlice(records), func(d entity.PlainData) bool {
			return storage.MatchText(d, terms)
		}))
		if err != nil {
			return nil, err
		}
	}
	return storage.Select(ctx, records, conds, storage.NewOptions(opts...))
}

// candidates lists the index members worth loading. An equality condition
// on the id names the only candidate.
func (s *Store) candidates(ctx context.Context, conds []storage.Condition) ([]string, error) {
	for _, c := range conds {
		if c.Field == s.idField && c.Op == storage.OpEq {
			return []string{storage.IDKey(c.Value)}, nil
		}
	}
	members, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	return members, nil
}

func (s *Store) load(ctx context.Context, members []string) ([]entity.PlainData, error) {
	if len(members) == 0 {
		return nil, nil
	}
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = s.recordKey(m)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.wrap(err)
	}
	records := make([]entity.PlainData, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec := entity.PlainData{}
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, apperrors.StorageError(backend, err).
				WithDetail(logger.FieldCollection, s.collection).
				WithDetail("key", keys[i])
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) wrap(err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.StorageError(backend, err).WithDetail(logger.FieldCollection, s.collection)
}
