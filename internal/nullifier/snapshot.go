// Package nullifier tracks consumed identity nullifiers so a membership proof
// cannot be replayed across responses.
package nullifier

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mr-tron/base58"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// ErrUnsupportedFormatVersion is returned when loading a snapshot with an
// unknown format version.
var ErrUnsupportedFormatVersion = fmt.Errorf("nullifier: unsupported snapshot format version")

// snapshotVersion is the current binary snapshot format version.
// Version 1: snapshotVersion(1) + count(8) + count * [hash(32) + rootVersion(8) + seenAt(8)]
const snapshotVersion byte = 1

const entrySize = 32 + 8 + 8

// Save writes the store to disk using atomic write: the snapshot goes to a
// temp file in the same directory, is synced, then renamed over the target.
func (s *Store) Save(path string) error {
	s.mu.RLock()

	data := make([]byte, 1+8+len(s.seen)*entrySize)
	data[0] = snapshotVersion
	binary.LittleEndian.PutUint64(data[1:9], uint64(len(s.seen)))

	offset := 9
	for _, rec := range s.seen {
		hashBytes, err := zkproof.FieldBytes(rec.nullifierHash)
		if err != nil {
			s.mu.RUnlock()
			return fmt.Errorf("encode nullifier hash: %w", err)
		}
		copy(data[offset:offset+32], hashBytes)
		binary.LittleEndian.PutUint64(data[offset+32:offset+40], rec.rootVersion)
		binary.LittleEndian.PutUint64(data[offset+40:offset+48], uint64(rec.seenAt.Unix()))
		offset += entrySize
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}

// Load reads a snapshot from disk. A missing file yields an empty store so a
// fresh keeper starts cleanly.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if len(data) < 9 {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}
	if data[0] != snapshotVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedFormatVersion, data[0], snapshotVersion)
	}

	count := binary.LittleEndian.Uint64(data[1:9])
	expectedLen := 9 + int(count)*entrySize
	if len(data) != expectedLen {
		return nil, fmt.Errorf("snapshot length mismatch: expected %d bytes, got %d", expectedLen, len(data))
	}

	store := NewStore()
	offset := 9
	for i := uint64(0); i < count; i++ {
		hash := zkproof.FieldFromBytes(data[offset : offset+32])
		rootVersion := binary.LittleEndian.Uint64(data[offset+32 : offset+40])
		seenAt := int64(binary.LittleEndian.Uint64(data[offset+40 : offset+48]))
		offset += entrySize

		hashBytes, err := zkproof.FieldBytes(hash)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		store.seen[base58.Encode(hashBytes)] = &record{
			nullifierHash: hash,
			rootVersion:   rootVersion,
			seenAt:        time.Unix(seenAt, 0).UTC(),
		}
	}

	return store, nil
}
