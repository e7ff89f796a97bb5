package random

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	printableMin = 33
	printableMax = 126
)

// Source draws seed bytes and generated passwords.
type Source interface {
	Bytes(n int) ([]byte, error)
	Password(n int) ([]byte, error)
}

type readerSource struct {
	r io.Reader
}

// New returns a Source backed by the operating system CSPRNG.
func New() Source {
	return readerSource{r: rand.Reader}
}

// FromReader returns a Source drawing from r. Intended for tests.
func FromReader(r io.Reader) Source {
	return readerSource{r: r}
}

func (s readerSource) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("random: negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, fmt.Errorf("random: entropy source failed: %w", err)
	}
	return buf, nil
}

// Password rejection-samples n bytes into the printable ASCII range 33..126.
func (s readerSource) Password(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("random: negative length %d", n)
	}
	out := make([]byte, 0, n)
	var one [1]byte
	for len(out) < n {
		if _, err := io.ReadFull(s.r, one[:]); err != nil {
			return nil, fmt.Errorf("random: entropy source failed: %w", err)
		}
		if c := one[0]; c >= printableMin && c <= printableMax {
			out = append(out, c)
		}
	}
	return out, nil
}
