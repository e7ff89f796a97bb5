package seed

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/miner"
	"nv/go-nv/internal/mnemonic"
	"nv/go-nv/internal/params"
	"nv/go-nv/internal/platform/metrics"
	"nv/go-nv/internal/platform/random"
)

var ErrMnemonicRequired = errors.New("mnemonic is required")

// Minted is the outcome of a create ceremony.
type Minted struct {
	Mnemonic string
	Seed     []byte
	Key      string
}

// Pipeline mints and recovers derived keys for one parameter set.
type Pipeline struct {
	params params.Params
	hasher kdf.Hasher
	miner  *miner.Miner
	rand   random.Source
	stats  *metrics.Registry
	logger *slog.Logger
}

// Deps are the collaborators of a Pipeline. Nil fields get defaults.
type Deps struct {
	Hasher  kdf.Hasher
	Miner   *miner.Miner
	Random  random.Source
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// NewPipeline validates p and fills missing deps with production defaults.
func NewPipeline(p params.Params, deps Deps) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if deps.Hasher == nil {
		var (
			h   kdf.Hasher
			err error
		)
		if deps.Metrics != nil {
			h, err = kdf.NewCounting(p.Hash, deps.Metrics.Hashes)
		} else {
			h, err = kdf.New(p.Hash)
		}
		if err != nil {
			return nil, err
		}
		deps.Hasher = h
	}
	if deps.Miner == nil {
		deps.Miner = miner.New(deps.Hasher).WithMetrics(deps.Metrics)
	}
	if deps.Random == nil {
		deps.Random = random.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		params: p,
		hasher: deps.Hasher,
		miner:  deps.Miner,
		rand:   deps.Random,
		stats:  deps.Metrics,
		logger: deps.Logger,
	}, nil
}

func (p *Pipeline) Params() params.Params { return p.params }

// Mint draws seeds until one mines under the round cap, then derives the key.
func (p *Pipeline) Mint(ctx context.Context, password string) (Minted, error) {
	start := time.Now()
	attempts := 0
	for {
		seedBytes, err := p.rand.Bytes(p.params.SeedBytes)
		if err != nil {
			return Minted{}, err
		}
		attempts++
		salt, err := p.miner.Mine(ctx, password, seedBytes, p.params.Diff, p.params.Round)
		if errors.Is(err, miner.ErrGaveUp) {
			continue
		}
		if err != nil {
			return Minted{}, err
		}
		p.logger.Debug("seed mined", "attempts", attempts, "round", params.RoundLabel(p.params.Round), "elapsed", time.Since(start))
		p.ceremony("create")
		return Minted{
			Mnemonic: mnemonic.Encode(seedBytes),
			Seed:     seedBytes,
			Key:      p.derive(password, salt),
		}, nil
	}
}

// Recover re-derives the key for a known seed. The round cap does not apply.
func (p *Pipeline) Recover(ctx context.Context, password string, seedBytes []byte) (string, error) {
	if len(seedBytes) == 0 {
		return "", ErrMnemonicRequired
	}
	start := time.Now()
	salt, err := p.miner.Mine(ctx, password, seedBytes, p.params.Diff, params.Unbounded)
	if err != nil {
		return "", fmt.Errorf("recover key: %w", err)
	}
	p.logger.Debug("hash computed", "round", params.RoundLabel(params.Unbounded), "elapsed", time.Since(start))
	p.ceremony("recover")
	return p.derive(password, salt), nil
}

// RecoverMnemonic decodes m and recovers the key for its seed.
func (p *Pipeline) RecoverMnemonic(ctx context.Context, password, m string) (string, error) {
	seedBytes, err := mnemonic.Decode(m)
	if err != nil {
		return "", err
	}
	return p.Recover(ctx, password, seedBytes)
}

func (p *Pipeline) derive(password, salt string) string {
	key := p.hasher.Hash(password, salt)
	return hex.EncodeToString(key[:])
}

func (p *Pipeline) ceremony(kind string) {
	if p.stats != nil {
		p.stats.Ceremonies.WithLabelValues(kind).Inc()
	}
}
