package models

import (
	"path"
	"strings"
	"time"
)

const (
	NodeKindFile = "file"
	NodeKindDir  = "dir"
)

// NodeMetadata describes one entry of a repository tree.
type NodeMetadata struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Version  uint64    `json:"version"`
}

func (m NodeMetadata) IsDir() bool { return m.Kind == NodeKindDir }

// RepoInfo is what `info` prints about an open repository.
type RepoInfo struct {
	FormatVersion int       `json:"format_version"`
	VolumeID      string    `json:"volume_id"`
	Fingerprint   string    `json:"fingerprint"`
	Cipher        string    `json:"cipher"`
	ReadOnly      bool      `json:"read_only"`
	Compressed    bool      `json:"compressed"`
	CreatedAt     time.Time `json:"created_at"`
	Path          string    `json:"path"`
}

// NormalizePath cleans a repository path into its absolute slash form.
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	return path.Clean("/" + raw)
}

// ResolvePath resolves target against the working directory cwd.
func ResolvePath(cwd, target string) string {
	target = strings.TrimSpace(target)
	if strings.HasPrefix(target, "/") {
		return NormalizePath(target)
	}
	return NormalizePath(path.Join(NormalizePath(cwd), target))
}
