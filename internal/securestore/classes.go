package securestore

import (
	"fmt"
	"strings"
)

// Cipher names the AEAD a volume is sealed with.
type Cipher string

const (
	CipherXChaCha20Poly1305 Cipher = "xchacha20poly1305"
	CipherAES256GCM         Cipher = "aes256gcm"
)

// DefaultCipher is the strongest cipher offered.
const DefaultCipher = CipherXChaCha20Poly1305

// ParseCipher accepts a cipher name or its short alias. Empty means DefaultCipher.
func ParseCipher(s string) (Cipher, error) {
	switch Cipher(strings.ToLower(strings.TrimSpace(s))) {
	case CipherXChaCha20Poly1305, "xchacha", "":
		return CipherXChaCha20Poly1305, nil
	case CipherAES256GCM, "aes":
		return CipherAES256GCM, nil
	default:
		return "", fmt.Errorf("unknown cipher %q", s)
	}
}

// OpsLimit is the time-cost class of the key-encryption KDF.
type OpsLimit int

// MemLimit is the memory-cost class of the key-encryption KDF.
type MemLimit int

const (
	OpsInteractive OpsLimit = iota + 1
	OpsModerate
	OpsSensitive
)

const (
	MemInteractive MemLimit = iota + 1
	MemModerate
	MemSensitive
)

var classNames = map[int]string{1: "interactive", 2: "moderate", 3: "sensitive"}

func (o OpsLimit) Valid() bool { return o >= OpsInteractive && o <= OpsSensitive }

func (o OpsLimit) Passes() uint32 {
	switch o {
	case OpsInteractive:
		return 2
	case OpsModerate:
		return 3
	case OpsSensitive:
		return 4
	}
	return 0
}

func (o OpsLimit) String() string { return classNames[int(o)] }

func (m MemLimit) Valid() bool { return m >= MemInteractive && m <= MemSensitive }

// KiB returns the Argon2 memory size for the class.
func (m MemLimit) KiB() uint32 {
	switch m {
	case MemInteractive:
		return 64 * 1024
	case MemModerate:
		return 256 * 1024
	case MemSensitive:
		return 1024 * 1024
	}
	return 0
}

func (m MemLimit) String() string { return classNames[int(m)] }

func ParseOpsLimit(s string) (OpsLimit, error) {
	n, err := parseClass(s)
	return OpsLimit(n), err
}

func ParseMemLimit(s string) (MemLimit, error) {
	n, err := parseClass(s)
	return MemLimit(n), err
}

func parseClass(s string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for n, name := range classNames {
		if name == want {
			return n, nil
		}
	}
	return 0, fmt.Errorf("unknown cost class %q (want interactive, moderate or sensitive)", s)
}
