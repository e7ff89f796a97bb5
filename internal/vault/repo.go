package vault

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nv/go-nv/internal/securestore"
	"nv/go-nv/pkg/models"

	"github.com/awnumar/memguard"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

const (
	formatVersion = 1
	volumeFile    = "volume.json"
	indexFile     = "index.enc"
	lockFile      = ".lock"
)

type volume struct {
	Version    int                      `json:"version"`
	VolumeID   string                   `json:"volume_id"`
	Cipher     securestore.Cipher       `json:"cipher"`
	Compressed bool                     `json:"compressed"`
	CreatedAt  time.Time                `json:"created_at"`
	Key        *securestore.KeyEnvelope `json:"key"`
}

// Repo is an open repository. It is safe for concurrent use, but nv keeps a
// single handle per process.
type Repo struct {
	mu       sync.RWMutex
	env      *Env
	dir      string
	meta     volume
	key      *memguard.Enclave
	nodes    map[string]node
	readOnly bool
	lock     *flock.Flock
	closed   bool
}

// Open opens (or with opts.Create, creates) the repository at uri. secret
// is the derived key handed over by the opener.
func (e *Env) Open(uri, secret string, opts Options) (*Repo, error) {
	if !e.ready() {
		return nil, ErrNotEnv
	}
	if opts.Create && opts.ReadOnly {
		return nil, fmt.Errorf("%w: cannot create a read-only repository", ErrInvalidOptions)
	}
	if opts.Cipher == "" {
		opts.Cipher = securestore.DefaultCipher
	}
	dir, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	exists, err := volumeExists(dir)
	if err != nil {
		return nil, err
	}
	switch {
	case opts.Create && exists:
		return nil, fmt.Errorf("%w: repository %s", ErrExists, dir)
	case !opts.Create && !exists:
		return nil, fmt.Errorf("%w: repository %s", ErrNotFound, dir)
	}
	if opts.Create {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	r := &Repo{env: e, dir: dir, readOnly: opts.ReadOnly}
	if !opts.ReadOnly && !opts.Force {
		fl := flock.New(filepath.Join(dir, lockFile))
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock repository: %w", err)
		}
		if !locked {
			return nil, ErrAlreadyOpened
		}
		r.lock = fl
	}

	if opts.Create {
		err = r.create(secret, opts)
	} else {
		err = r.load(secret)
	}
	if err != nil {
		r.unlock()
		return nil, err
	}
	if err := e.register(r); err != nil {
		r.unlock()
		return nil, err
	}
	return r, nil
}

// Exists reports whether uri points at a created repository.
func Exists(uri string) (bool, error) {
	dir, err := ParseURI(uri)
	if err != nil {
		return false, err
	}
	return volumeExists(dir)
}

func volumeExists(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, volumeFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (r *Repo) create(secret string, opts Options) error {
	volumeKey, err := securestore.NewKey()
	if err != nil {
		return err
	}
	wrapped, err := securestore.WrapKey(secret, volumeKey, opts.OpsLimit, opts.MemLimit)
	if err != nil {
		securestore.Zero(volumeKey)
		return err
	}
	r.meta = volume{
		Version:    formatVersion,
		VolumeID:   uuid.NewString(),
		Cipher:     opts.Cipher,
		Compressed: opts.Compress,
		CreatedAt:  time.Now().UTC(),
		Key:        wrapped,
	}
	r.key = memguard.NewEnclave(volumeKey)
	r.nodes = newTree(r.meta.CreatedAt)
	// The index goes first: volume.json marks the repository as existing.
	if err := r.persistLocked(r.nodes); err != nil {
		return err
	}
	return securestore.WriteJSONAtomic(filepath.Join(r.dir, volumeFile), r.meta)
}

func (r *Repo) load(secret string) error {
	raw, err := os.ReadFile(filepath.Join(r.dir, volumeFile))
	if err != nil {
		return err
	}
	var meta volume
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if meta.Version != formatVersion || meta.Key == nil {
		return fmt.Errorf("%w: unsupported volume format %d", ErrCorrupted, meta.Version)
	}
	volumeKey, err := securestore.UnwrapKey(secret, meta.Key)
	if err != nil {
		if errors.Is(err, securestore.ErrAuthFailed) {
			return ErrWrongPassword
		}
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	r.meta = meta
	r.key = memguard.NewEnclave(volumeKey)
	nodes, err := r.readIndex()
	if err != nil {
		return err
	}
	r.nodes = nodes
	return nil
}

// Close releases the lock and drops the decrypted tree. It is idempotent.
func (r *Repo) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.nodes = nil
	r.key = nil
	err := r.unlock()
	r.mu.Unlock()
	r.env.forget(r)
	return err
}

func (r *Repo) unlock() error {
	if r.lock == nil {
		return nil
	}
	err := r.lock.Unlock()
	r.lock = nil
	return err
}

func (r *Repo) ReadOnly() bool { return r.readOnly }

// Info describes the repository.
func (r *Repo) Info() (models.RepoInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return models.RepoInfo{}, ErrClosed
	}
	return models.RepoInfo{
		FormatVersion: r.meta.Version,
		VolumeID:      r.meta.VolumeID,
		Fingerprint:   Fingerprint(r.meta.VolumeID),
		Cipher:        string(r.meta.Cipher),
		ReadOnly:      r.readOnly,
		Compressed:    r.meta.Compressed,
		CreatedAt:     r.meta.CreatedAt,
		Path:          r.dir,
	}, nil
}

// Fingerprint is a short printable id of a volume.
func Fingerprint(volumeID string) string {
	h := sha256.Sum256([]byte(volumeID))
	return "nv1" + base58.Encode(h[:16])
}

// ResetPassword re-wraps the volume key under newSecret. The tree is
// untouched, so everything stored stays readable.
func (r *Repo) ResetPassword(oldSecret, newSecret string, ops securestore.OpsLimit, mem securestore.MemLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	volumeKey, err := securestore.UnwrapKey(oldSecret, r.meta.Key)
	if err != nil {
		if errors.Is(err, securestore.ErrAuthFailed) {
			return ErrWrongPassword
		}
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	defer securestore.Zero(volumeKey)
	wrapped, err := securestore.WrapKey(newSecret, volumeKey, ops, mem)
	if err != nil {
		return err
	}
	next := r.meta
	next.Key = wrapped
	if err := securestore.WriteJSONAtomic(filepath.Join(r.dir, volumeFile), next); err != nil {
		return err
	}
	r.meta = next
	return nil
}

func (r *Repo) writableLocked() error {
	if r.closed {
		return ErrClosed
	}
	if r.readOnly {
		return ErrReadOnly
	}
	return nil
}
