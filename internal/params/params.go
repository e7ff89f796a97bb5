// Package params holds the tunable costs of the key-derivation pipeline.
//
// Only Diff (and the cost policy: hash profile, ops and mem classes) has to
// be supplied again when a repository is opened. Round only bounds the work
// spent on one seed while creating; SeedBytes is implied by the mnemonic.
package params

import (
	"errors"
	"fmt"
	"math"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/securestore"
)

const (
	DefaultDiff      uint64 = 1000
	DefaultRound     uint64 = 10
	DefaultSeedBytes        = 4
	MaxSeedBytes            = 32

	// Unbounded disables the round cap.
	Unbounded uint64 = math.MaxUint64
)

var ErrInvalidParams = errors.New("invalid parameters")

type Params struct {
	Diff      uint64
	Round     uint64
	SeedBytes int
	OpsLimit  securestore.OpsLimit
	MemLimit  securestore.MemLimit
	Hash      kdf.Params
}

func Default() Params {
	return Params{
		Diff:      DefaultDiff,
		Round:     DefaultRound,
		SeedBytes: DefaultSeedBytes,
		OpsLimit:  securestore.OpsSensitive,
		MemLimit:  securestore.MemSensitive,
		Hash:      kdf.DefaultParams,
	}
}

func (p Params) Validate() error {
	if p.Diff == 0 {
		return fmt.Errorf("%w: difficulty must be at least 1", ErrInvalidParams)
	}
	if p.SeedBytes < 1 || p.SeedBytes > MaxSeedBytes {
		return fmt.Errorf("%w: seed bytes must be within 1..%d, got %d", ErrInvalidParams, MaxSeedBytes, p.SeedBytes)
	}
	if !p.OpsLimit.Valid() {
		return fmt.Errorf("%w: unknown ops limit class", ErrInvalidParams)
	}
	if !p.MemLimit.Valid() {
		return fmt.Errorf("%w: unknown mem limit class", ErrInvalidParams)
	}
	if err := p.Hash.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// RecoveryNotices lists the overrides that must be repeated to open a
// repository created with p.
func (p Params) RecoveryNotices() []string {
	def := Default()
	var out []string
	if p.Diff != def.Diff {
		out = append(out, fmt.Sprintf("In order to open your password repository you will need to use --diff %d flag.", p.Diff))
	}
	if p.OpsLimit != def.OpsLimit {
		out = append(out, fmt.Sprintf("In order to open your password repository you will need to use --ops-limit %s flag.", p.OpsLimit))
	}
	if p.MemLimit != def.MemLimit {
		out = append(out, fmt.Sprintf("In order to open your password repository you will need to use --mem-limit %s flag.", p.MemLimit))
	}
	if p.Hash != def.Hash {
		out = append(out, fmt.Sprintf("In order to open your password repository you will need the same hash profile (%s) in your config file.", p.Hash))
	}
	return out
}

// RoundLabel renders the round cap for humans.
func RoundLabel(round uint64) string {
	if round == Unbounded {
		return "unbounded"
	}
	return fmt.Sprintf("%d", round)
}
