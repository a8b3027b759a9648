// Package txid allocates the short numeric transaction ids printed on
// receipts. Ids are nine random decimal digits; the allocator resamples on
// collision and gives up after a bounded number of attempts rather than
// scanning for a free slot.
package txid

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"tokopos/internal/store"
)

const (
	idDigits    = 9
	idSpace     = 1_000_000_000
	maxAttempts = 25
)

// ExistsFunc reports whether a candidate id is already taken. The check is
// advisory; the persistence layer's uniqueness guarantee is authoritative
// and callers must still handle a duplicate error on write.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

type Allocator struct {
	exists ExistsFunc
}

func NewAllocator(exists ExistsFunc) *Allocator {
	return &Allocator{exists: exists}
}

// Next returns a fresh nine-digit id, zero-padded. Returns
// store.ErrIDSpaceExhausted when maxAttempts consecutive candidates were
// taken, which in practice means the id space is badly saturated.
func (a *Allocator) Next(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := randomID()
		if err != nil {
			return "", fmt.Errorf("sample transaction id: %w", err)
		}
		taken, err := a.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check transaction id: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: gave up after %d attempts", store.ErrIDSpaceExhausted, maxAttempts)
}

func randomID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(buf[:]) % idSpace
	return fmt.Sprintf("%0*d", idDigits, n), nil
}
