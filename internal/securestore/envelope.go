package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "NVENC1\n"
	KeySize         = chacha20poly1305.KeySize
)

var (
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore envelope is invalid")
	ErrLegacyData = errors.New("securestore legacy plaintext data")
)

// Envelope is data sealed under a raw key.
type Envelope struct {
	Version    uint32 `json:"version"`
	Cipher     Cipher `json:"cipher"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyEnvelope is a key wrapped under a passphrase.
type KeyEnvelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// NewKey returns a fresh random key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func Seal(c Cipher, key, plaintext, ad []byte) (*Envelope, error) {
	aead, err := newAEAD(c, key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Envelope{
		Version:    envelopeVersion,
		Cipher:     c,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, ad),
	}, nil
}

func Open(key []byte, env *Envelope, ad []byte) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion {
		return nil, ErrInvalid
	}
	aead, err := newAEAD(env.Cipher, key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrInvalid
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Encrypt seals plaintext and renders it as a prefixed file payload.
func Encrypt(c Cipher, key, plaintext, ad []byte) ([]byte, error) {
	env, err := Seal(c, key, plaintext, ad)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func Decrypt(key, data, ad []byte) ([]byte, error) {
	if !strings.HasPrefix(string(data), filePrefix) {
		return nil, ErrLegacyData
	}
	data = data[len(filePrefix):]
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalid
	}
	return Open(key, &env, ad)
}

// WrapKey seals key under a key-encryption key derived from passphrase with
// the given cost classes.
func WrapKey(passphrase string, key []byte, ops OpsLimit, mem MemLimit) (*KeyEnvelope, error) {
	if !ops.Valid() || !mem.Valid() {
		return nil, fmt.Errorf("%w: unknown cost class", ErrInvalid)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	env := &KeyEnvelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     ops.Passes(),
		KDFMemoryKB: mem.KiB(),
		KDFThreads:  1,
		Salt:        salt,
	}
	kek := deriveKey(passphrase, env)
	defer zeroBytes(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	env.Nonce = nonce
	env.Ciphertext = aead.Seal(nil, nonce, key, []byte(env.KDF))
	return env, nil
}

func UnwrapKey(passphrase string, env *KeyEnvelope) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion || env.KDF != "argon2id" {
		return nil, ErrInvalid
	}
	if env.KDFTime == 0 || env.KDFThreads == 0 || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalid
	}
	kek := deriveKey(passphrase, env)
	defer zeroBytes(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	key, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(env.KDF))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return key, nil
}

func newAEAD(c Cipher, key []byte) (cipher.AEAD, error) {
	switch c {
	case CipherXChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("%w: unsupported cipher %q", ErrInvalid, c)
	}
}

func deriveKey(passphrase string, env *KeyEnvelope) []byte {
	return argon2.IDKey([]byte(passphrase), env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Zero overwrites b with zeros.
func Zero(b []byte) { zeroBytes(b) }
