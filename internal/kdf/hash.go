// Package kdf holds the memory-hard hash the seed pipeline is built on.
package kdf

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const Size = 32

var ErrInvalidParams = errors.New("invalid kdf params")

// Params are the Argon2id costs. They are part of the derivation: a
// repository can only be recovered with the params it was created with.
type Params struct {
	Time     uint32 `yaml:"time"`
	MemoryKB uint32 `yaml:"memoryKB"`
	Threads  uint8  `yaml:"threads"`
}

// DefaultParams is the pipeline profile: ten passes over 4 MiB in four lanes.
var DefaultParams = Params{Time: 10, MemoryKB: 4096, Threads: 4}

func (p Params) Validate() error {
	if p.Time == 0 {
		return fmt.Errorf("%w: time must be positive", ErrInvalidParams)
	}
	if p.Threads == 0 {
		return fmt.Errorf("%w: threads must be positive", ErrInvalidParams)
	}
	if p.MemoryKB < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: memory %d KiB below %d KiB for %d threads", ErrInvalidParams, p.MemoryKB, 8*uint32(p.Threads), p.Threads)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("argon2id t=%d m=%dKiB p=%d", p.Time, p.MemoryKB, p.Threads)
}

// Hasher produces a fixed-size digest of message under salt.
type Hasher interface {
	Hash(message, salt string) [Size]byte
}

// Counter is notified once per hash; metrics.Registry satisfies it.
type Counter interface {
	Inc()
}

type argonHasher struct {
	params Params
	count  Counter
}

// New returns an Argon2id Hasher for p.
func New(p Params) (Hasher, error) {
	return NewCounting(p, nil)
}

// NewCounting is New with c incremented after every hash.
func NewCounting(p Params, c Counter) (Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &argonHasher{params: p, count: c}, nil
}

func (h *argonHasher) Hash(message, salt string) [Size]byte {
	var out [Size]byte
	key := argon2.IDKey([]byte(message), []byte(salt), h.params.Time, h.params.MemoryKB, h.params.Threads, Size)
	copy(out[:], key)
	zeroBytes(key)
	if h.count != nil {
		h.count.Inc()
	}
	return out
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
