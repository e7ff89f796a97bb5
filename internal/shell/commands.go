package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nv/go-nv/internal/vault"
	"nv/go-nv/pkg/models"
)

const defaultGenLength = 32

var resolvePath = models.ResolvePath

func builtins() []command {
	return []command{
		{name: "cat", usage: "cat <path>", help: "Print a secret.", run: catCmd},
		{name: "cd", usage: "cd [path]", help: "Change the current directory.", run: cdCmd},
		{name: "ls", usage: "ls [path]", help: "List a directory.", run: lsCmd},
		{name: "pwd", usage: "pwd", help: "Print the current directory.", run: pwdCmd},
		{name: "cp", usage: "cp <path>", help: "Copy a secret to the clipboard.", run: cpCmd},
		{name: "info", usage: "info", help: "Show repository information.", run: infoCmd},
		{name: "clear", usage: "clear", help: "Clear the screen.", run: clearCmd},
		{name: "help", usage: "help", help: "List commands.", run: helpCmd},
		{name: "set", usage: "set <path>", help: "Store a secret typed at a hidden prompt.", write: true, run: setCmd},
		{name: "setcp", usage: "setcp <path>", help: "Store the clipboard contents and clear the clipboard.", write: true, run: setcpCmd},
		{name: "gen", usage: "gen <path> [length]", help: "Generate, store and copy a random password.", write: true, run: genCmd},
		{name: "mkdir", usage: "mkdir <path>", help: "Create a directory and its parents.", write: true, run: mkdirCmd},
		{name: "rm", usage: "rm <path>", help: "Remove a secret or a directory tree.", write: true, run: rmCmd},
		{name: "vi", usage: "vi <path>", help: "Edit a secret in $EDITOR.", write: true, run: viCmd},
		{name: "changepwd", usage: "changepwd", help: "Change the password and issue a new mnemonic.", write: true, run: changepwdCmd},
	}
}

func pwdCmd(_ context.Context, s *Shell, _ []string) error {
	s.ui.Notify(s.cwd)
	return nil
}

func cdCmd(_ context.Context, s *Shell, args []string) error {
	p := s.resolve(args, 0, "/")
	isDir, err := s.session.Repo.IsDir(p)
	if err != nil {
		return err
	}
	if !isDir {
		return fmt.Errorf("%w: %s", vault.ErrNotDir, p)
	}
	s.cwd = p
	return nil
}

func catCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("cat <path>", args, 1); err != nil {
		return err
	}
	data, err := s.session.Repo.ReadFile(s.resolve(args, 0, ""))
	if err != nil {
		return err
	}
	s.ui.Notify(string(data))
	return nil
}

func cpCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("cp <path>", args, 1); err != nil {
		return err
	}
	data, err := s.session.Repo.ReadFile(s.resolve(args, 0, ""))
	if err != nil {
		return err
	}
	return s.cfg.Clipboard.WriteAll(string(data))
}

func lsCmd(_ context.Context, s *Shell, args []string) error {
	entries, err := s.session.Repo.ReadDir(s.resolve(args, 0, "."))
	if err != nil {
		return err
	}
	return renderListing(s.ui.Out(), entries)
}

func infoCmd(_ context.Context, s *Shell, _ []string) error {
	info, err := s.session.Repo.Info()
	if err != nil {
		return err
	}
	renderInfo(s.ui.Out(), info)
	if s.cfg.Debug {
		samples, err := s.cfg.Metrics.Snapshot()
		if err != nil {
			return err
		}
		renderMetrics(s.ui.Out(), samples)
	}
	return nil
}

func clearCmd(_ context.Context, s *Shell, _ []string) error {
	s.ui.Clear()
	return nil
}

func helpCmd(_ context.Context, s *Shell, _ []string) error {
	var visible []command
	for _, c := range builtins() {
		if _, ok := s.commands[c.name]; ok {
			visible = append(visible, c)
		}
	}
	renderHelp(s.ui.Out(), visible)
	return nil
}

func setCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("set <path>", args, 1); err != nil {
		return err
	}
	p := s.resolve(args, 0, "")
	secret, err := s.ui.Secret("Secret: ")
	if err != nil {
		return err
	}
	return s.session.Repo.WriteFile(p, []byte(secret))
}

func setcpCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("setcp <path>", args, 1); err != nil {
		return err
	}
	p := s.resolve(args, 0, "")
	secret, err := s.cfg.Clipboard.ReadAll()
	if err != nil {
		return fmt.Errorf("read clipboard: %w", err)
	}
	if err := s.cfg.Clipboard.WriteAll(""); err != nil {
		return fmt.Errorf("clear clipboard: %w", err)
	}
	return s.session.Repo.WriteFile(p, []byte(secret))
}

func genCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("gen <path> [length]", args, 1); err != nil {
		return err
	}
	p := s.resolve(args, 0, "")
	length := defaultGenLength
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: gen <path> [length]: bad length %q", ErrUsage, args[1])
		}
		length = n
	}
	if s.session.Repo.PathExists(p) {
		return fmt.Errorf("%w: %s", vault.ErrExists, p)
	}
	password, err := s.cfg.Random.Password(length)
	if err != nil {
		return err
	}
	if err := s.session.Repo.WriteFile(p, password); err != nil {
		return err
	}
	return s.cfg.Clipboard.WriteAll(string(password))
}

func mkdirCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("mkdir <path>", args, 1); err != nil {
		return err
	}
	return s.session.Repo.CreateDirAll(s.resolve(args, 0, ""))
}

func rmCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("rm <path>", args, 1); err != nil {
		return err
	}
	p := s.resolve(args, 0, "")
	md, err := s.session.Repo.Metadata(p)
	if err != nil {
		return err
	}
	question := fmt.Sprintf("Delete file %s?", p)
	if md.IsDir() {
		question = fmt.Sprintf("Delete directory %s with all files?", p)
	}
	ok, err := s.ui.Confirm(question)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if md.IsDir() {
		if err := s.session.Repo.RemoveDirAll(p); err != nil {
			return err
		}
		if s.cwd == p || strings.HasPrefix(s.cwd, p+"/") {
			s.cwd = "/"
		}
		return nil
	}
	return s.session.Repo.RemoveFile(p)
}

func viCmd(_ context.Context, s *Shell, args []string) error {
	if err := requireArgs("vi <path>", args, 1); err != nil {
		return err
	}
	ok, err := s.ui.Confirm("Insecure access that leaks secrets to your file system, continue?")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	p := s.resolve(args, 0, "")
	content, err := s.session.Repo.ReadFile(p)
	if err != nil && !errors.Is(err, vault.ErrNotFound) {
		return err
	}
	changed, err := s.cfg.Editor.Edit(content)
	if err != nil {
		return err
	}
	return s.session.Repo.WriteFile(p, changed)
}

func changepwdCmd(ctx context.Context, s *Shell, _ []string) error {
	if s.rotator == nil {
		return fmt.Errorf("%w: changepwd", ErrUnknownCommand)
	}
	if err := s.rotator.ChangePassword(ctx, s.session); err != nil {
		return err
	}
	s.ui.Notify("Password changed. Use the new password and mnemonic from now on.")
	return nil
}
