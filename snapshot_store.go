package pitfeat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

const snapshotExt = ".pfs"

// SnapshotStore keeps encoded frames in a StorageBackend.
type SnapshotStore struct {
	Backend StorageBackend
	// Prefix is prepended to every snapshot key, e.g. "features/".
	Prefix string
}

// NewSnapshotStore returns a store over backend.
func NewSnapshotStore(backend StorageBackend, prefix string) *SnapshotStore {
	return &SnapshotStore{Backend: backend, Prefix: prefix}
}

func (s *SnapshotStore) key(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return s.Prefix + name + snapshotExt, nil
}

// Save encodes f and stores it under name, replacing an older snapshot.
func (s *SnapshotStore) Save(ctx context.Context, name string, f *Frame) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}
	data, err := EncodeFrame(f)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", name, err)
	}
	if err := s.Backend.Write(ctx, key, data); err != nil {
		return fmt.Errorf("write snapshot %s: %w", name, err)
	}
	return nil
}

// Load reads and verifies the snapshot stored under name.
func (s *SnapshotStore) Load(ctx context.Context, name string) (*Frame, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}
	data, err := s.Backend.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	f, err := DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return f, nil
}

// Delete removes the snapshot stored under name.
func (s *SnapshotStore) Delete(ctx context.Context, name string) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}
	return s.Backend.Delete(ctx, key)
}

// List returns the names of stored snapshots in lexical order.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.Backend.List(ctx, s.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var names []string
	for _, k := range keys {
		name, ok := strings.CutSuffix(strings.TrimPrefix(k, s.Prefix), snapshotExt)
		if !ok || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// IsSnapshotCorrupt reports whether err came from a snapshot that failed
// verification or decoding.
func IsSnapshotCorrupt(err error) bool {
	return errors.Is(err, ErrSnapshotCorrupt)
}
