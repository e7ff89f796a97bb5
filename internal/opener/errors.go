package opener

import (
	"context"
	"errors"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/miner"
	"nv/go-nv/internal/mnemonic"
	"nv/go-nv/internal/params"
	"nv/go-nv/internal/prompt"
	"nv/go-nv/internal/vault"
)

// Kind classifies failures for the shell.
type Kind int

const (
	Unknown Kind = iota
	AbortByUser
	BadMnemonic
	WrongPassword
	StoreBusy
	StoreFatal
	MiningGaveUp
	Parameter
)

var kindNames = map[Kind]string{
	Unknown:       "unknown",
	AbortByUser:   "abort-by-user",
	BadMnemonic:   "bad-mnemonic",
	WrongPassword: "wrong-password",
	StoreBusy:     "store-busy",
	StoreFatal:    "store-fatal",
	MiningGaveUp:  "mining-gave-up",
	Parameter:     "parameter",
}

func (k Kind) String() string { return kindNames[k] }

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, prompt.ErrAbort), errors.Is(err, context.Canceled):
		return AbortByUser
	case errors.Is(err, mnemonic.ErrInvalidMnemonic):
		return BadMnemonic
	case errors.Is(err, vault.ErrWrongPassword):
		return WrongPassword
	case errors.Is(err, vault.ErrAlreadyOpened):
		return StoreBusy
	case errors.Is(err, miner.ErrGaveUp):
		return MiningGaveUp
	case errors.Is(err, params.ErrInvalidParams), errors.Is(err, kdf.ErrInvalidParams):
		return Parameter
	case errors.Is(err, vault.ErrCorrupted), errors.Is(err, vault.ErrNotFound),
		errors.Is(err, vault.ErrExists), errors.Is(err, vault.ErrReadOnly),
		errors.Is(err, vault.ErrNotEnv), errors.Is(err, vault.ErrInvalidURI),
		errors.Is(err, vault.ErrInvalidOptions), errors.Is(err, ErrRepositoryMissing):
		return StoreFatal
	default:
		return Unknown
	}
}

// retryable reports whether an open-mode failure goes back to the password
// prompt instead of ending the session.
func retryable(err error) bool {
	switch KindOf(err) {
	case WrongPassword, Unknown:
		return true
	default:
		return false
	}
}
