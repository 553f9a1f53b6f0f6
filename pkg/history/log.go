// Package history provides a durable, time-ordered log of node updates
// backed by BadgerDB. The log is the input to correlation learning: replaying
// it yields the update stream LearnFromHistory buckets into windows.
package history

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/strata/pkg/correlation"
)

// Config holds configuration for the update log.
type Config struct {
	// Path is the directory for the Badger files. Ignored when InMemory is set.
	Path string

	// InMemory disables disk persistence. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives Badger's internal logging; nil disables it.
	Logger *slog.Logger
}

// Log is an append-only update log. Keys are ordered by timestamp so a replay
// iterates in time order without sorting.
type Log struct {
	db     *badger.DB
	logger *slog.Logger
	seq    atomic.Uint64
}

// Open opens (or creates) the update log described by cfg.
func Open(cfg Config) (*Log, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open update log: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{db: db, logger: logger}, nil
}

// Append records one node update. The sequence suffix keeps keys unique when
// several updates share a timestamp.
func (l *Log) Append(nodeID string, ts time.Time) error {
	if nodeID == "" {
		return fmt.Errorf("append: node id cannot be empty")
	}

	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], l.seq.Add(1))

	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(nodeID))
	})
}

// Replay returns every recorded update in time order.
func (l *Log) Replay() ([]correlation.Update, error) {
	var updates []correlation.Update

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if len(key) < 8 {
				continue
			}
			ts := time.Unix(0, int64(binary.BigEndian.Uint64(key[:8]))).UTC()
			err := item.Value(func(v []byte) error {
				updates = append(updates, correlation.Update{
					NodeID:    string(v),
					Timestamp: ts,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay update log: %w", err)
	}
	return updates, nil
}

// Close flushes and closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
