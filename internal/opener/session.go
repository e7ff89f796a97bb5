package opener

import (
	"sync"

	"nv/go-nv/internal/vault"

	"github.com/awnumar/memguard"
)

// Session is an open repository plus the derived key that opened it.
type Session struct {
	Repo *vault.Repo
	URI  string

	mu  sync.Mutex
	key *memguard.Enclave
}

// NewSession wraps an already opened repository.
func NewSession(repo *vault.Repo, uri, key string) *Session {
	s := &Session{Repo: repo, URI: uri}
	s.setKey(key)
	return s
}

func (s *Session) ReadOnly() bool { return s.Repo.ReadOnly() }

func (s *Session) setKey(key string) {
	// NewEnclave wipes the buffer it is given.
	enclave := memguard.NewEnclave([]byte(key))
	s.mu.Lock()
	s.key = enclave
	s.mu.Unlock()
}

func (s *Session) withKey(fn func(key string) error) error {
	s.mu.Lock()
	enclave := s.key
	s.mu.Unlock()
	if enclave == nil {
		return vault.ErrClosed
	}
	buf, err := enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.String())
}

func (s *Session) Close() error {
	s.mu.Lock()
	s.key = nil
	s.mu.Unlock()
	return s.Repo.Close()
}
