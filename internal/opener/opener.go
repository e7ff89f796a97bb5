// Package opener turns a password and a mnemonic into an open repository.
//
// The flow is PROMPT -> DERIVE -> OPEN, with a read-only fallback when the
// repository is locked by another process. In open mode failures go back to
// the password prompt; in create mode they end the attempt.
package opener

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"nv/go-nv/internal/mnemonic"
	"nv/go-nv/internal/platform/ratelimiter"
	"nv/go-nv/internal/securestore"
	"nv/go-nv/internal/seed"
	"nv/go-nv/internal/vault"
)

const (
	PasswordLabel    = "Password: "
	ConfirmLabel     = "Confirm password: "
	NewPasswordLabel = "New password: "
	MnemonicLabel    = "Mnemonic: "

	SlowDownNotice = "Too many failed attempts, waiting before the next one."
)

// Prompter is the terminal side of the opener.
type Prompter interface {
	seed.UI
	Secret(label string) (string, error)
	Line(label string) (string, error)
}

// Store opens repositories; *vault.Env satisfies it.
type Store interface {
	Open(uri, secret string, opts vault.Options) (*vault.Repo, error)
}

type Request struct {
	URI      string
	Create   bool
	Force    bool
	ReadOnly bool
}

type Config struct {
	Cipher             securestore.Cipher
	DisableCompression bool
	// Throttle paces re-prompts after failed attempts, keyed by repository.
	Throttle *ratelimiter.MapLimiter
	Logger   *slog.Logger
}

type Opener struct {
	pipeline *seed.Pipeline
	store    Store
	ui       Prompter
	cipher   securestore.Cipher
	compress bool
	throttle *ratelimiter.MapLimiter
	logger   *slog.Logger
}

func New(p *seed.Pipeline, store Store, ui Prompter, cfg Config) *Opener {
	if cfg.Cipher == "" {
		cfg.Cipher = securestore.DefaultCipher
	}
	if cfg.Throttle == nil {
		cfg.Throttle = ratelimiter.New(1, 3, 10*time.Minute)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Opener{
		pipeline: p,
		store:    store,
		ui:       ui,
		cipher:   cfg.Cipher,
		compress: !cfg.DisableCompression,
		throttle: cfg.Throttle,
		logger:   cfg.Logger,
	}
}

// Open runs the open or create flow until a repository is open, the user
// aborts, or a failure that re-prompting cannot fix occurs.
func (o *Opener) Open(ctx context.Context, req Request) (*Session, error) {
	dir, err := vault.ParseURI(req.URI)
	if err != nil {
		return nil, err
	}
	if req.Create {
		exists, err := vault.Exists(req.URI)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &ExistsError{Path: dir}
		}
		if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingError{Path: dir}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		password, err := o.askPassword(PasswordLabel, req.Create)
		if err != nil {
			return nil, err
		}
		key, err := o.derive(ctx, password, req.Create)
		if err != nil {
			if KindOf(err) == AbortByUser {
				return nil, err
			}
			o.ui.Notify(fmt.Sprintf("Key derivation failed: %v", err))
			if err := o.backoff(ctx, dir); err != nil {
				return nil, err
			}
			continue
		}

		session, err := o.open(req, key)
		if err == nil {
			o.logger.Info("repository opened", "repo", dir, "read_only", session.ReadOnly(), "create", req.Create)
			return session, nil
		}
		if req.Create || !retryable(err) {
			return nil, err
		}
		o.logger.Debug("open failed", "repo", dir, "kind", KindOf(err).String())
		if errors.Is(err, vault.ErrWrongPassword) {
			o.ui.Notify("Wrong password or mnemonic.")
		} else {
			o.ui.Notify(fmt.Sprintf("Failed to open repository: %v", err))
		}
		if err := o.backoff(ctx, dir); err != nil {
			return nil, err
		}
	}
}

// backoff lets a failed attempt through while the burst lasts, then paces
// the next prompt.
func (o *Opener) backoff(ctx context.Context, dir string) error {
	if o.throttle.Allow(dir, time.Now()) {
		return nil
	}
	o.ui.Notify(SlowDownNotice)
	return o.throttle.Wait(ctx, dir)
}

func (o *Opener) askPassword(label string, confirm bool) (string, error) {
	for {
		password, err := o.ui.Secret(label)
		if err != nil {
			return "", err
		}
		if password == "" {
			o.ui.Notify("Password must not be empty.")
			continue
		}
		if !confirm {
			return password, nil
		}
		again, err := o.ui.Secret(ConfirmLabel)
		if err != nil {
			return "", err
		}
		if again != password {
			o.ui.Notify("Passwords do not match.")
			continue
		}
		return password, nil
	}
}

func (o *Opener) derive(ctx context.Context, password string, create bool) (string, error) {
	if create {
		minted, err := o.pipeline.Ceremony(ctx, password, o.ui)
		if err != nil {
			return "", err
		}
		return minted.Key, nil
	}
	for {
		phrase, err := o.ui.Secret(MnemonicLabel)
		if err != nil {
			return "", err
		}
		key, err := o.pipeline.RecoverMnemonic(ctx, password, phrase)
		if errors.Is(err, mnemonic.ErrInvalidMnemonic) {
			o.ui.Notify(fmt.Sprintf("Invalid mnemonic: %v", err))
			continue
		}
		return key, err
	}
}

func (o *Opener) options(req Request) vault.Options {
	p := o.pipeline.Params()
	opts := vault.DefaultOptions()
	opts.Create = req.Create
	opts.Force = req.Force
	opts.ReadOnly = req.ReadOnly
	opts.Compress = o.compress
	opts.Cipher = o.cipher
	opts.OpsLimit = p.OpsLimit
	opts.MemLimit = p.MemLimit
	return opts
}

func (o *Opener) open(req Request, key string) (*Session, error) {
	opts := o.options(req)
	repo, err := o.store.Open(req.URI, key, opts)
	if errors.Is(err, vault.ErrAlreadyOpened) {
		o.ui.Notify("Repository is already opened by another process, opening it read-only.")
		opts.ReadOnly = true
		opts.Force = true
		repo, err = o.store.Open(req.URI, key, opts)
	}
	if err != nil {
		return nil, err
	}
	return NewSession(repo, req.URI, key), nil
}

// Rotate issues a new mnemonic for newPassword and re-keys the repository.
// The stored contents are untouched.
func (o *Opener) Rotate(ctx context.Context, s *Session, newPassword string) error {
	if s.ReadOnly() {
		return vault.ErrReadOnly
	}
	minted, err := o.pipeline.Ceremony(ctx, newPassword, o.ui)
	if err != nil {
		return err
	}
	p := o.pipeline.Params()
	err = s.withKey(func(old string) error {
		return s.Repo.ResetPassword(old, minted.Key, p.OpsLimit, p.MemLimit)
	})
	if err != nil {
		return err
	}
	s.setKey(minted.Key)
	o.logger.Info("repository re-keyed", "repo", s.URI)
	return nil
}

// ChangePassword prompts for a new password and rotates.
func (o *Opener) ChangePassword(ctx context.Context, s *Session) error {
	if s.ReadOnly() {
		return vault.ErrReadOnly
	}
	password, err := o.askPassword(NewPasswordLabel, true)
	if err != nil {
		return err
	}
	return o.Rotate(ctx, s, password)
}
