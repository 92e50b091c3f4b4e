package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/cmorg789/vox/internal/logger"
)

// badgerKeyPrefix namespaces event entries. Keys are the prefix plus the
// big-endian snowflake, so iteration order is ID order.
var badgerKeyPrefix = []byte("ev/")

// BadgerLog persists events in an embedded Badger database. Entries are
// written with a TTL equal to the retention window, so Badger's value
// log GC handles expiry; Prune only triggers GC.
type BadgerLog struct {
	db        *badger.DB
	retention time.Duration
}

// BadgerConfig configures the embedded backend.
type BadgerConfig struct {
	// Path is the directory holding the Badger database.
	Path string `mapstructure:"path" yaml:"path"`

	// Retention bounds event lifetime. Zero means DefaultRetention.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// NewBadgerLog opens (or creates) the event log at cfg.Path.
func NewBadgerLog(cfg BadgerConfig) (*BadgerLog, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // badger's own logger is too chatty at INFO
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log at %s: %w", cfg.Path, err)
	}

	return &BadgerLog{db: db, retention: cfg.Retention}, nil
}

func badgerKey(id int64) []byte {
	key := make([]byte, len(badgerKeyPrefix)+8)
	copy(key, badgerKeyPrefix)
	binary.BigEndian.PutUint64(key[len(badgerKeyPrefix):], uint64(id))
	return key
}

// Append implements Log.
func (l *BadgerLog) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode event %d: %w", entry.ID, err)
	}

	return l.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(badgerKey(entry.ID), data).WithTTL(l.retention)
		return txn.SetEntry(e)
	})
}

// Read implements Log. The iterator starts at AfterID+1 and walks in key
// (= ID) order, so results come back sorted without a post-pass.
func (l *BadgerLog) Read(ctx context.Context, q Query) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Entry
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(badgerKey(q.AfterID + 1)); it.Valid(); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			if !q.matches(entry) {
				continue
			}
			out = append(out, entry)
			if q.Limit > 0 && len(out) >= q.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return out, nil
}

// Prune implements Log. Expiry itself is TTL-driven; this pass reclaims
// value-log space left behind by expired entries.
func (l *BadgerLog) Prune(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// ErrNoRewrite just means there was nothing worth rewriting.
	if err := l.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		logger.Warn("event log value GC failed", logger.Err(err))
	}
	return 0, nil
}

// Close implements Log.
func (l *BadgerLog) Close() error {
	return l.db.Close()
}

var _ Log = (*BadgerLog)(nil)
