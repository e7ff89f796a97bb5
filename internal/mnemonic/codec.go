// Package mnemonic renders short seeds as hyphen-joined words from the
// BIP-39 English word list and parses them back.
//
// Bytes are consumed in little-endian groups of four. A full group becomes
// three words (33 bits carry 32, so the last word index stays below 1024).
// A trailing group of one or two bytes becomes one or two words. A trailing
// group of three bytes becomes three words whose last index lies in
// 1024..1027, which is what distinguishes it from a full group. Every byte
// sequence therefore has exactly one rendering and every rendering decodes
// to exactly one byte sequence.
package mnemonic

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tyler-smith/go-bip39/wordlists"
)

const (
	Separator = "-"

	radix        = 2048
	shortMarker  = 1024
	shortMarkers = 4
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

var (
	words     = wordlists.English
	wordIndex = buildIndex(words)
)

// WordError reports a word that is not part of the dictionary.
type WordError struct {
	Position int
	Word     string
}

func (e *WordError) Error() string {
	return fmt.Sprintf("unknown word %q at position %d", e.Word, e.Position+1)
}

func (e *WordError) Unwrap() error { return ErrInvalidMnemonic }

func buildIndex(list []string) map[string]int {
	out := make(map[string]int, len(list))
	for i, w := range list {
		out[w] = i
	}
	return out
}

// WordsRequired returns the number of words Encode produces for n bytes.
func WordsRequired(n int) int {
	if n <= 0 {
		return 0
	}
	full, rem := n/4, n%4
	return full*3 + rem
}

// Encode renders b as hyphen-joined words.
func Encode(b []byte) string {
	out := make([]string, 0, WordsRequired(len(b)))
	for len(b) >= 4 {
		v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24
		out = append(out, words[v%radix], words[(v/radix)%radix], words[v/(radix*radix)])
		b = b[4:]
	}
	switch len(b) {
	case 1:
		out = append(out, words[b[0]])
	case 2:
		v := uint64(b[0]) | uint64(b[1])<<8
		out = append(out, words[v%radix], words[v/radix])
	case 3:
		v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16
		out = append(out, words[v%radix], words[(v/radix)%radix], words[shortMarker+v/(radix*radix)])
	}
	return strings.Join(out, Separator)
}

// Decode parses a mnemonic produced by Encode. Input is normalized first, so
// space separated and mixed-case renderings are accepted.
func Decode(s string) ([]byte, error) {
	normalized := Normalize(s)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidMnemonic)
	}
	parts := strings.Split(normalized, Separator)
	idx := make([]uint64, len(parts))
	for i, w := range parts {
		n, ok := wordIndex[w]
		if !ok {
			return nil, &WordError{Position: i, Word: w}
		}
		idx[i] = uint64(n)
	}

	out := make([]byte, 0, len(idx)/3*4+3)
	for pos := 0; len(idx) >= 3; pos += 3 {
		last := len(idx) == 3
		v := idx[0] + idx[1]*radix
		switch {
		case idx[2] < shortMarker:
			v += idx[2] * radix * radix
			out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		case idx[2] < shortMarker+shortMarkers && last:
			v += (idx[2] - shortMarker) * radix * radix
			out = append(out, byte(v), byte(v>>8), byte(v>>16))
		default:
			return nil, fmt.Errorf("%w: word %d out of range", ErrInvalidMnemonic, pos+3)
		}
		idx = idx[3:]
	}
	switch len(idx) {
	case 1:
		if idx[0] > 0xff {
			return nil, fmt.Errorf("%w: trailing word out of range", ErrInvalidMnemonic)
		}
		out = append(out, byte(idx[0]))
	case 2:
		v := idx[0] + idx[1]*radix
		if v > 0xffff {
			return nil, fmt.Errorf("%w: trailing words out of range", ErrInvalidMnemonic)
		}
		out = append(out, byte(v), byte(v>>8))
	}
	return out, nil
}

// Normalize lower-cases s and collapses every whitespace run into the
// separator.
func Normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || string(r) == Separator
	})
	return strings.Join(fields, Separator)
}

// Display renders a mnemonic with spaces for the user.
func Display(m string) string {
	return strings.ReplaceAll(Normalize(m), Separator, " ")
}
