package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const defaultEditor = "vi"

// Editor lets the user change a secret in place.
type Editor interface {
	Edit(content []byte) ([]byte, error)
}

type externalEditor struct {
	command string
}

// ExternalEditor runs command on a private temp file. An empty command
// falls back to $EDITOR, then vi.
func ExternalEditor(command string) Editor {
	return externalEditor{command: command}
}

func (e externalEditor) Edit(content []byte) ([]byte, error) {
	command := e.command
	if command == "" {
		command = os.Getenv("EDITOR")
	}
	if strings.TrimSpace(command) == "" {
		command = defaultEditor
	}
	tmp, err := os.CreateTemp("", "nv-*.txt")
	if err != nil {
		return nil, err
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	parts := strings.Fields(command)
	cmd := exec.Command(parts[0], append(parts[1:], name)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("editor %s: %w", parts[0], err)
	}
	edited, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	_ = os.WriteFile(name, make([]byte, len(edited)), 0o600)
	return edited, nil
}
