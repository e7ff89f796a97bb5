// Package vault is the encrypted repository nv keeps secrets in. A
// repository is a directory holding a passphrase-wrapped volume key and one
// sealed snapshot of the node tree.
package vault

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"nv/go-nv/internal/securestore"

	"github.com/awnumar/memguard"
)

const uriScheme = "file://"

var (
	ErrAlreadyOpened  = errors.New("repository is already opened")
	ErrWrongPassword  = errors.New("wrong password")
	ErrNotFound       = errors.New("not found")
	ErrExists         = errors.New("already exists")
	ErrCorrupted      = errors.New("repository is corrupted")
	ErrReadOnly       = errors.New("repository is opened read-only")
	ErrNotEnv         = errors.New("vault environment is not initialized")
	ErrInvalidURI     = errors.New("invalid repository uri")
	ErrInvalidOptions = errors.New("invalid open options")
	ErrNotDir         = errors.New("not a directory")
	ErrIsDir          = errors.New("is a directory")
	ErrInvalidPath    = errors.New("invalid path")
	ErrClosed         = errors.New("repository is closed")
)

// Options control how a repository is opened.
type Options struct {
	Create   bool
	Force    bool
	ReadOnly bool
	Compress bool
	Cipher   securestore.Cipher
	OpsLimit securestore.OpsLimit
	MemLimit securestore.MemLimit
}

// DefaultOptions are the options the opener starts from.
func DefaultOptions() Options {
	return Options{
		Compress: true,
		Cipher:   securestore.DefaultCipher,
		OpsLimit: securestore.OpsSensitive,
		MemLimit: securestore.MemSensitive,
	}
}

// Env must exist before any repository is opened. Closing it closes every
// repository opened through it and purges protected memory.
type Env struct {
	mu     sync.Mutex
	closed bool
	repos  map[*Repo]struct{}
}

func InitEnv() *Env {
	return &Env{repos: make(map[*Repo]struct{})}
}

func (e *Env) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	repos := make([]*Repo, 0, len(e.repos))
	for r := range e.repos {
		repos = append(repos, r)
	}
	e.closed = true
	e.mu.Unlock()

	for _, r := range repos {
		_ = r.Close()
	}
	memguard.Purge()
}

func (e *Env) register(r *Repo) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrNotEnv
	}
	e.repos[r] = struct{}{}
	return nil
}

func (e *Env) forget(r *Repo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.repos, r)
}

func (e *Env) ready() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && e.repos != nil
}

// ParseURI returns the directory a file:// uri points at.
func ParseURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", fmt.Errorf("%w: %q (only %s is supported)", ErrInvalidURI, uri, uriScheme)
	}
	dir := strings.TrimPrefix(uri, uriScheme)
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidURI)
	}
	return dir, nil
}
