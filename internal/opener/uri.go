package opener

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"nv/go-nv/internal/vault"

	"github.com/mitchellh/go-homedir"
)

const (
	DefaultNamespace = "default"
	DefaultURI       = "file://$HOME/.local/nv/$NAMESPACE"
)

var ErrRepositoryMissing = errors.New("repository does not exist")

// MissingError is returned when opening a repository that was never created.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("Repository %s doesn't exist. Use --create to create a repository.", e.Path)
}

func (e *MissingError) Is(target error) bool { return target == ErrRepositoryMissing }

// ExistsError is returned when --create names a repository that already
// holds a volume. It is raised before any prompt, so no mnemonic is minted
// for a repository that cannot be created.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("Repository %s already exists. Open it without --create.", e.Path)
}

func (e *ExistsError) Is(target error) bool { return target == vault.ErrExists }

// NormalizeURI expands $NAMESPACE, $HOME and a leading ~ in a file:// uri.
// An empty uri selects DefaultURI.
func NormalizeURI(raw, namespace string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultURI
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if strings.ContainsAny(namespace, `/\`) || namespace == "." || namespace == ".." {
		return "", fmt.Errorf("%w: bad namespace %q", vault.ErrInvalidURI, namespace)
	}
	dir, err := vault.ParseURI(raw)
	if err != nil {
		return "", err
	}
	dir = strings.ReplaceAll(dir, "$NAMESPACE", namespace)
	if strings.Contains(dir, "$HOME") {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("%w: %v", vault.ErrInvalidURI, err)
		}
		dir = strings.ReplaceAll(dir, "$HOME", home)
	}
	dir, err = homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", vault.ErrInvalidURI, err)
	}
	return "file://" + filepath.Clean(dir), nil
}
