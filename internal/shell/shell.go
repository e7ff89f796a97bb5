// Package shell is the interactive command loop over an open repository.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"nv/go-nv/internal/opener"
	"nv/go-nv/internal/platform/metrics"
	"nv/go-nv/internal/platform/random"
	"nv/go-nv/internal/prompt"

	"github.com/fatih/color"
)

var (
	ErrAbort          = prompt.ErrAbort
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
)

// Terminal is everything the shell needs from the user's terminal.
type Terminal interface {
	opener.Prompter
	Warn(line string)
	Error(line string)
	Clear()
	Out() io.Writer
}

// Rotator re-keys a session; *opener.Opener satisfies it.
type Rotator interface {
	ChangePassword(ctx context.Context, s *opener.Session) error
}

type Config struct {
	Clipboard Clipboard
	Editor    Editor
	Random    random.Source
	Metrics   *metrics.Registry
	Debug     bool
	Logger    *slog.Logger
}

type command struct {
	name  string
	usage string
	help  string
	write bool
	run   func(ctx context.Context, s *Shell, args []string) error
}

// Shell owns the session; commands borrow the repository for one call.
type Shell struct {
	session  *opener.Session
	ui       Terminal
	rotator  Rotator
	cfg      Config
	cwd      string
	commands map[string]command
}

func New(session *opener.Session, ui Terminal, rotator Rotator, cfg Config) *Shell {
	if cfg.Clipboard == nil {
		cfg.Clipboard = SystemClipboard()
	}
	if cfg.Editor == nil {
		cfg.Editor = ExternalEditor("")
	}
	if cfg.Random == nil {
		cfg.Random = random.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Shell{
		session:  session,
		ui:       ui,
		rotator:  rotator,
		cfg:      cfg,
		cwd:      "/",
		commands: make(map[string]command),
	}
	readOnly := session.ReadOnly()
	for _, c := range builtins() {
		if c.write && readOnly {
			continue
		}
		s.commands[c.name] = c
	}
	return s
}

// Commands lists the command names available in this session.
func (s *Shell) Commands() []string {
	out := make([]string, 0, len(s.commands))
	for name := range s.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Shell) Cwd() string { return s.cwd }

// Exec runs one command line. quit is set by close and exit.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := fields[0], fields[1:]
	switch name {
	case "close", "exit":
		return true, nil
	}
	c, ok := s.commands[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	s.cfg.Logger.Debug("command", "name", name, "args", len(args))
	return false, c.run(ctx, s, args)
}

// Run reads commands until close, exit or end of input.
func (s *Shell) Run(ctx context.Context) error {
	label := color.GreenString("✔") + " " + color.New(color.Bold).Sprint("nv") + " › "
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.ui.Line(label)
		if errors.Is(err, ErrAbort) {
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := s.Exec(ctx, line)
		if quit {
			return nil
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrAbort):
			s.ui.Notify("Aborted.")
		case errors.Is(err, context.Canceled):
			return err
		default:
			s.ui.Error("Error: " + err.Error())
		}
	}
}

func (s *Shell) resolve(args []string, i int, fallback string) string {
	target := fallback
	if i < len(args) {
		target = args[i]
	}
	return resolvePath(s.cwd, target)
}

func requireArgs(c string, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s", ErrUsage, c)
	}
	return nil
}
