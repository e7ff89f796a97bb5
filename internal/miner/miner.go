// Package miner searches for a salt whose hash falls below a difficulty
// target. The search is a deterministic hash chain seeded by the password and
// the mnemonic seed, so the same inputs always mine the same salt.
package miner

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/params"
	"nv/go-nv/internal/platform/metrics"

	"github.com/holiman/uint256"
)

// ISaltSeed is the salt of the pre-seed hash. Changing it changes every key.
const ISaltSeed = "c13b2d1bd9a5920c3697ac7c992c029bbb6240ebddb8f86e44a504f7c7dbfab1"

var ErrGaveUp = errors.New("miner reached round cap")

var maxUint256 = new(uint256.Int).SetAllOne()

// Reporter observes mining progress.
type Reporter interface {
	Start(round uint64)
	Step()
	Done(found bool)
}

// Miner runs the salt search with a fixed hasher.
type Miner struct {
	hasher kdf.Hasher
	report Reporter
	stats  *metrics.Registry
}

// New returns a Miner hashing with h.
func New(h kdf.Hasher) *Miner {
	return &Miner{hasher: h}
}

// WithReporter returns a copy of m that reports progress to r.
func (m *Miner) WithReporter(r Reporter) *Miner {
	out := *m
	out.report = r
	return &out
}

// WithMetrics returns a copy of m that counts trials in r.
func (m *Miner) WithMetrics(r *metrics.Registry) *Miner {
	out := *m
	out.stats = r
	return &out
}

// Target returns floor(2^256-1 / diff).
func Target(diff uint64) (*uint256.Int, error) {
	if diff == 0 {
		return nil, fmt.Errorf("%w: difficulty must be at least 1", params.ErrInvalidParams)
	}
	return new(uint256.Int).Div(maxUint256, uint256.NewInt(diff)), nil
}

// Satisfies reports whether the hex encoded salt is strictly below the
// target for diff.
func Satisfies(salt string, diff uint64) bool {
	target, err := Target(diff)
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(salt)
	if err != nil || len(raw) != kdf.Size {
		return false
	}
	return new(uint256.Int).SetBytes(raw).Lt(target)
}

// Mine returns the hex encoded salt for (password, seed) at difficulty diff.
// It gives up with ErrGaveUp after round candidates; params.Unbounded never
// gives up. A round of zero gives up without hashing.
func (m *Miner) Mine(ctx context.Context, password string, seed []byte, diff, round uint64) (string, error) {
	target, err := Target(diff)
	if err != nil {
		return "", err
	}
	if len(seed) == 0 {
		return "", fmt.Errorf("%w: empty seed", params.ErrInvalidParams)
	}
	if round == 0 {
		m.gaveUp()
		return "", ErrGaveUp
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ephemeral := m.hasher.Hash(hex.EncodeToString(seed), ISaltSeed)
	current := m.hasher.Hash(password, hex.EncodeToString(ephemeral[:]))
	nonce := new(uint256.Int).SetBytes(current[:])
	candidate := new(uint256.Int)

	if m.report != nil {
		m.report.Start(round)
	}
	for iter := uint64(0); ; {
		if err := ctx.Err(); err != nil {
			m.done(false)
			return "", err
		}
		chained := m.hasher.Hash(renderNonce(nonce), hex.EncodeToString(current[:]))
		nonceHex := hex.EncodeToString(chained[:])
		h := m.hasher.Hash(nonceHex, reverse(nonceHex))
		if m.stats != nil {
			m.stats.MinerTrials.Inc()
		}

		if candidate.SetBytes(h[:]).Lt(target) {
			if m.stats != nil {
				m.stats.MinerHits.Inc()
			}
			m.done(true)
			return hex.EncodeToString(h[:]), nil
		}

		iter++
		nonce.AddUint64(nonce, 1)
		current = h
		if m.report != nil {
			m.report.Step()
		}
		// With round == params.Unbounded this is unreachable in practice.
		if iter == round {
			m.gaveUp()
			m.done(false)
			return "", ErrGaveUp
		}
	}
}

func (m *Miner) gaveUp() {
	if m.stats != nil {
		m.stats.MinerGiveUps.Inc()
	}
}

func (m *Miner) done(found bool) {
	if m.report != nil {
		m.report.Done(found)
	}
}

// renderNonce is part of the derivation: unsigned decimal, no separators.
// Changing it makes every existing repository unrecoverable.
func renderNonce(n *uint256.Int) string {
	return n.Dec()
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
