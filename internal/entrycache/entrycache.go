// Package entrycache provides a durable on-disk cache mapping a CT log's
// (LogID, index) pairs to the raw leaf_input/extra_data pair fetched for
// that index, so a later filter run can reuse entries a prior dl run
// already downloaded without re-fetching them from the log.
//
// Backed by go.etcd.io/bbolt: one file per log, one bucket holding all
// entries for that log. bbolt commits each Put/PutBatch as its own
// transaction and fsyncs on commit by default, so a process restart is
// guaranteed to observe a prefix of the writes it made before the restart,
// never a torn write.
package entrycache

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"ctoidscan.dev/internal/ctwire"
	"ctoidscan.dev/internal/logdir"
)

// ErrIO wraps a failure to read or write the underlying bbolt file.
var ErrIO = fmt.Errorf("entrycache: storage I/O error")

// ErrMissing describes a cache miss at Index: routine and non-fatal, not a
// storage fault. Get does not return it; Get reports a miss as ok == false
// with a nil error.
type ErrMissing struct {
	Index uint64
}

func (e *ErrMissing) Error() string {
	return fmt.Sprintf("entrycache: no entry cached at index %d", e.Index)
}

const bucketName = "entries"
const entryKindRaw byte = 1

// Cache is a durable (logID, index) -> raw entry store, one bbolt file per
// log.
type Cache struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file for logID under dbDir,
// named db/{hex(logID)}.db.
func Open(dbDir string, logID logdir.LogID) (*Cache, error) {
	path := filepath.Join(dbDir, fmt.Sprintf("%x.db", logID[:]))
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating bucket in %s: %v", ErrIO, path, err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying bbolt file.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func entryKey(index uint64) []byte {
	key := make([]byte, 9)
	key[0] = entryKindRaw
	binary.BigEndian.PutUint64(key[1:], index)
	return key
}

func encodeRawEntry(raw ctwire.RawEntry) []byte {
	buf := make([]byte, 0, 16+len(raw.LeafInput)+len(raw.ExtraData))
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(raw.LeafInput)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, raw.LeafInput...)
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(raw.ExtraData)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, raw.ExtraData...)
	return buf
}

func decodeRawEntry(value []byte) (ctwire.RawEntry, error) {
	if len(value) < 8 {
		return ctwire.RawEntry{}, fmt.Errorf("%w: value too short for leaf_input length prefix", ErrIO)
	}
	leafLen := binary.BigEndian.Uint64(value[:8])
	value = value[8:]
	if uint64(len(value)) < leafLen {
		return ctwire.RawEntry{}, fmt.Errorf("%w: value truncated in leaf_input", ErrIO)
	}
	leafInput := value[:leafLen]
	value = value[leafLen:]

	if len(value) < 8 {
		return ctwire.RawEntry{}, fmt.Errorf("%w: value too short for extra_data length prefix", ErrIO)
	}
	extraLen := binary.BigEndian.Uint64(value[:8])
	value = value[8:]
	if uint64(len(value)) < extraLen {
		return ctwire.RawEntry{}, fmt.Errorf("%w: value truncated in extra_data", ErrIO)
	}
	extraData := value[:extraLen]

	return ctwire.RawEntry{
		LeafInput: append([]byte(nil), leafInput...),
		ExtraData: append([]byte(nil), extraData...),
	}, nil
}

// Put stores a single raw entry at index.
func (c *Cache) Put(ctx context.Context, index uint64, raw ctwire.RawEntry) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(entryKey(index), encodeRawEntry(raw))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// PutBatch stores a contiguous run of raw entries starting at start, in a
// single bbolt transaction so a batch from one get-entries response is
// committed atomically.
func (c *Cache) PutBatch(ctx context.Context, start uint64, raws []ctwire.RawEntry) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		for i, raw := range raws {
			if err := b.Put(entryKey(start+uint64(i)), encodeRawEntry(raw)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Get retrieves the raw entry at index. ok is false, with a nil error, if
// nothing is cached there.
func (c *Cache) Get(ctx context.Context, index uint64) (ctwire.RawEntry, bool, error) {
	var raw ctwire.RawEntry
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		value := b.Get(entryKey(index))
		if value == nil {
			return nil
		}
		found = true
		decoded, err := decodeRawEntry(value)
		if err != nil {
			return err
		}
		raw = decoded
		return nil
	})
	if err != nil {
		return ctwire.RawEntry{}, false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return raw, found, nil
}
