// Package checkpoint persists the set of addresses already published to the
// remote databases.
//
// The set only grows. It is loaded once per run, extended in memory, and
// written back with an atomic replace after every remote mirror has confirmed
// the batch. A crash before Save costs only a redundant, idempotent re-upload.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/roach88/pda-uploader/internal/atomicfile"
	"github.com/roach88/pda-uploader/internal/pda"
)

// Set is a set of published addresses.
// A Set is not safe for concurrent mutation.
type Set struct {
	addrs map[pda.Address]struct{}
}

// NewSet returns a set holding addrs.
func NewSet(addrs ...pda.Address) *Set {
	s := &Set{addrs: make(map[pda.Address]struct{}, len(addrs))}
	s.Add(addrs...)
	return s
}

// Contains reports whether a is in the set.
func (s *Set) Contains(a pda.Address) bool {
	_, ok := s.addrs[a]
	return ok
}

// Add inserts addrs.
func (s *Set) Add(addrs ...pda.Address) {
	for _, a := range addrs {
		s.addrs[a] = struct{}{}
	}
}

// AddRecords inserts the address of every record.
// Returns the number of addresses that were not already present.
func (s *Set) AddRecords(records []pda.Record) int {
	added := 0
	for _, r := range records {
		if _, ok := s.addrs[r.Address]; !ok {
			s.addrs[r.Address] = struct{}{}
			added++
		}
	}
	return added
}

// Len returns the number of addresses.
func (s *Set) Len() int {
	return len(s.addrs)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := &Set{addrs: make(map[pda.Address]struct{}, len(s.addrs))}
	for a := range s.addrs {
		c.addrs[a] = struct{}{}
	}
	return c
}

// Addresses returns the addresses in ascending order.
func (s *Set) Addresses() []pda.Address {
	out := make([]pda.Address, 0, len(s.addrs))
	for a := range s.addrs {
		out = append(out, a)
	}
	slices.SortFunc(out, pda.Address.Compare)
	return out
}

// Load reads the checkpoint at path.
//
// A missing file yields an empty set. A file that does not decode also yields
// an empty set, with a warning: re-publishing is safe because remote inserts
// are idempotent, while refusing to run would block every later batch.
// Other read failures are returned.
func Load(path string, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("no checkpoint found, starting empty", "path", path)
		return NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	addrs, err := pda.DecodeAddressSet(data)
	if err != nil {
		logger.Warn("checkpoint is corrupt, starting empty", "path", path, "error", err)
		return NewSet(), nil
	}
	return NewSet(addrs...), nil
}

// Save atomically replaces the checkpoint at path with s.
func Save(path string, s *Set) error {
	if err := atomicfile.Write(path, pda.EncodeAddressSet(s.Addresses()), 0o644); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
