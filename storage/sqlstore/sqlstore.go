// Package sqlstore is a SQLite storage backend built on the database package.
//
// Every collection shares one table. A row holds the collection name, an
// integer id and the record's remaining fields as a JSON document. Filters on
// the id field run in SQL; other conditions, sorting on other fields and
// search are evaluated in process on the rows of the collection.
package sqlstore

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"gorm.io/gorm"

	"github.com/kbukum/persist/database"
	"github.com/kbukum/persist/entity"
	apperrors "github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/logger"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
	"github.com/kbukum/persist/storage"
)

func init() {
	storage.RegisterFactory(storage.DriverSQLite, func(ctx context.Context, cfg storage.Config, log *logger.Logger) (storage.Store, error) {
		db, err := database.Open(ctx, cfg.SQL, log)
		if err != nil {
			return nil, apperrors.StorageError(storage.DriverSQLite, err)
		}
		s, err := New(db, cfg.Collection, cfg.IDField, log)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.ownsDB = true
		return s, nil
	})
}

// row is the table layout shared by all collections.
type row struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"size:64;not null;index"`
	Data       string `gorm:"type:text;not null"`
}

func (row) TableName() string { return "records" }

// Store is one collection in a SQLite database.
type Store struct {
	db         *database.DB
	collection string
	idField    string
	ownsDB     bool
	log        *logger.Logger
}

var _ storage.Store = (*Store)(nil)

// New returns a Store for collection. The records table is migrated when
// the database config asks for it.
func New(db *database.DB, collection, idField string, log *logger.Logger) (*Store, error) {
	if collection == "" {
		collection = storage.DefaultCollection
	}
	if idField == "" {
		idField = entity.IDField
	}
	if log == nil {
		log = logger.Get(logger.ComponentStorage)
	}
	if db.Config().AutoMigrate {
		if err := db.AutoMigrate(&row{}); err != nil {
			return nil, apperrors.StorageError(storage.DriverSQLite, err)
		}
	}
	return &Store{db: db, collection: collection, idField: idField, log: log}, nil
}

// Save inserts records without an id and replaces the others, all in one
// transaction. Ids must be integers or integer strings.
func (s *Store) Save(ctx context.Context, records []entity.PlainData) ([]entity.PlainData, error) {
	results := make([]entity.PlainData, len(records))
	if len(records) == 0 {
		return results, nil
	}
	err := s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for i, rec := range records {
			data, err := s.encode(rec)
			if err != nil {
				return err
			}
			id, ok := rec[s.idField]
			if !ok || entity.IsAbsentID(id) {
				r := row{Collection: s.collection, Data: data}
				if err := tx.Create(&r).Error; err != nil {
					return err
				}
				results[i] = entity.PlainData{s.idField: r.ID}
				continue
			}

			n, err := rowID(id)
			if err != nil {
				return err
			}
			res := tx.Model(&row{}).
				Where("id = ? AND collection = ?", n, s.collection).
				Update("data", data)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				if err := tx.Create(&row{ID: n, Collection: s.collection, Data: data}).Error; err != nil {
					return err
				}
			}
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

// Count returns the number of matching records. It is a SQL count when
// every condition is on the id field.
func (s *Store) Count(ctx context.Context, filter storage.Filter, opts ...storage.Option) (int, error) {
	conds, err := filter.Conditions()
	if err != nil {
		return 0, err
	}
	o := storage.NewOptions(opts...)
	q, rest := s.scope(s.db.WithContext(ctx), conds)
	if len(rest) == 0 {
		var total int64
		if err := q.Count(&total).Error; err != nil {
			return 0, s.wrap(err)
		}
		return o.Window(int(total)), nil
	}
	records, err := s.load(q)
	if err != nil {
		return 0, err
	}
	matched, err := storage.Select(ctx, records, rest, o)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Delete removes the matching records.
func (s *Store) Delete(ctx context.Context, filter storage.Filter) (int, error) {
	conds, err := filter.Conditions()
	if err != nil {
		return 0, err
	}
	var removed int64
	err = s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		q, rest := s.scope(tx, conds)
		if len(rest) > 0 {
			records, err := s.load(q)
			if err != nil {
				return err
			}
			var ids []int64
			for _, rec := range records {
				if storage.Match(rest, rec) {
					ids = append(ids, rec[s.idField].(int64))
				}
			}
			if len(ids) == 0 {
				return nil
			}
			q = tx.Where("collection = ? AND id IN ?", s.collection, ids)
		}
		res := q.Delete(&row{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, s.wrap(err)
	}
	return int(removed), nil
}

// CheckHealth pings the database.
func (s *Store) CheckHealth(ctx context.Context) observability.Health {
	h := s.db.CheckHealth(ctx)
	if h.Details == nil {
		h.Details = map[string]string{}
	}
	h.Details["collection"] = s.collection
	return h
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, filter storage.Filter, terms string, opts ...storage.Option) ([]entity.PlainData, error) {
	conds, err := filter.Conditions()
	if err != nil {
		return nil, err
	}
	o := storage.NewOptions(opts...)
	q, rest := s.scope(s.db.WithContext(ctx), conds)

	order, onID := s.orderOnID(o.Sort)
	q = q.Order(order)
	paged := onID && len(rest) == 0 && terms == "" && o.Limit > 0
	if paged {
		q = q.Limit(o.Limit).Offset(o.Offset)
	}

	records, err := s.load(q)
	if err != nil {
		return nil, err
	}
	if paged {
		return records, nil
	}
	if terms != "" {
		records, err = pipeline.Collect(ctx, pipeline.Filter(pipeline.FromSlice(records), func(d entity.PlainData) bool {
			return storage.MatchText(d, terms)
		}))
		if err != nil {
			return nil, err
		}
	}
	return storage.Select(ctx, records, rest, o)
}

// scope limits q to the collection and turns id conditions into SQL. The
// conditions it cannot express are returned for in-process matching.
func (s *Store) scope(q *gorm.DB, conds []storage.Condition) (*gorm.DB, []storage.Condition) {
	q = q.Model(&row{}).Where("collection = ?", s.collection)
	var rest []storage.Condition
	for _, c := range conds {
		if c.Field != s.idField {
			rest = append(rest, c)
			continue
		}
		switch c.Op {
		case storage.OpEq, storage.OpNot, storage.OpMin, storage.OpMax:
			n, err := rowID(c.Value)
			if err != nil {
				rest = append(rest, c)
				continue
			}
			q = q.Where("id "+sqlOps[c.Op]+" ?", n)
		case storage.OpIn, storage.OpNotIn:
			ids, ok := rowIDs(c.Value)
			if !ok {
				rest = append(rest, c)
				continue
			}
			q = q.Where("id "+sqlOps[c.Op]+" ?", ids)
		default:
			rest = append(rest, c)
		}
	}
	return q, rest
}

var sqlOps = map[storage.Op]string{
	storage.OpEq:    "=",
	storage.OpNot:   "<>",
	storage.OpMin:   ">=",
	storage.OpMax:   "<=",
	storage.OpIn:    "IN",
	storage.OpNotIn: "NOT IN",
}

// orderOnID returns the ORDER BY clause and whether sort only involves the
// id field. Other sort fields are applied in process after loading.
func (s *Store) orderOnID(sort []string) (string, bool) {
	order := "id"
	for i, entry := range sort {
		field, desc := storage.SortKey(entry)
		if field != s.idField {
			return "id", false
		}
		if i == 0 && desc {
			order = "id DESC"
		}
	}
	return order, true
}

func (s *Store) load(q *gorm.DB) ([]entity.PlainData, error) {
	var rows []row
	if err := q.Find(&rows).Error; err != nil {
		return nil, s.wrap(err)
	}
	records := make([]entity.PlainData, 0, len(rows))
	for _, r := range rows {
		rec, err := s.decode(r)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) encode(rec entity.PlainData) (string, error) {
	doc := make(entity.PlainData, len(rec))
	for k, v := range rec {
		if k != s.idField {
			doc[k] = v
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", apperrors.InvalidArgumentf("record is not JSON encodable: %v", err).WithCause(err)
	}
	return string(raw), nil
}

func (s *Store) decode(r row) (entity.PlainData, error) {
	rec := entity.PlainData{}
	if err := json.Unmarshal([]byte(r.Data), &rec); err != nil {
		return nil, apperrors.StorageError(storage.DriverSQLite, err).
			WithDetail(logger.FieldCollection, s.collection).
			WithDetail("row", r.ID)
	}
	rec[s.idField] = r.ID
	return rec, nil
}

func (s *Store) wrap(err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return database.FromDatabase(err, s.collection)
}

// rowID converts an id to the integer primary key.
func rowID(id any) (int64, error) {
	switch v := id.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), nil
		}
	case float32:
		return rowID(float64(v))
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= 1<<53 {
			return int64(v), nil
		}
	case json.Number:
		return rowID(string(v))
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, apperrors.InvalidArgumentf("id %v (%T) is not an integer", id, id)
}

func rowIDs(list any) ([]int64, bool) {
	var values []any
	switch v := list.(type) {
	case []any:
		values = v
	case []int64:
		return v, len(v) > 0
	default:
		return nil, false
	}
	if len(values) == 0 {
		return nil, false
	}
	ids := make([]int64, len(values))
	for i, v := range values {
		n, err := rowID(v)
		if err != nil {
			return nil, false
		}
		ids[i] = n
	}
	return ids, true
}
