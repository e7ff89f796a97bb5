// Package prompt talks to the user on the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var ErrAbort = errors.New("aborted by user")

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	warnColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
)

// Terminal reads answers line by line. When the input is a terminal,
// secrets are read without echo.
type Terminal struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// NewTerminal wraps a terminal, usually os.Stdin and os.Stderr.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	fd := int(in.Fd())
	return &Terminal{
		in:     bufio.NewReader(in),
		out:    out,
		fd:     fd,
		isTerm: term.IsTerminal(fd),
	}
}

// New returns a Terminal over plain streams. Secrets are read like lines.
func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, fd: -1}
}

func (t *Terminal) Out() io.Writer { return t.out }

func (t *Terminal) label(text string) {
	_, _ = promptColor.Fprint(t.out, text)
}

// Line reads one line. End of input aborts.
func (t *Terminal) Line(label string) (string, error) {
	t.label(label)
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintln(t.out)
			return "", ErrAbort
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Secret reads a line without echoing it.
func (t *Terminal) Secret(label string) (string, error) {
	if !t.isTerm {
		return t.Line(label)
	}
	t.label(label)
	raw, err := term.ReadPassword(t.fd)
	_, _ = fmt.Fprintln(t.out)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrAbort
		}
		return "", err
	}
	secret := string(raw)
	for i := range raw {
		raw[i] = 0
	}
	return secret, nil
}

// Confirm asks a yes/no question. Anything but yes means no.
func (t *Terminal) Confirm(question string) (bool, error) {
	answer, err := t.Line(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (t *Terminal) Notify(line string) {
	_, _ = fmt.Fprintln(t.out, line)
}

func (t *Terminal) Warn(line string) {
	_, _ = warnColor.Fprintln(t.out, line)
}

func (t *Terminal) Error(line string) {
	_, _ = errorColor.Fprintln(t.out, line)
}

// Clear wipes the visible screen.
func (t *Terminal) Clear() {
	_, _ = fmt.Fprint(t.out, "\033[H\033[2J\033[3J")
}
