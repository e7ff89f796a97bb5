package vault

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"nv/go-nv/pkg/models"
)

func metadata(p string, n node) models.NodeMetadata {
	kind := models.NodeKindFile
	if n.Dir {
		kind = models.NodeKindDir
	}
	name := path.Base(p)
	return models.NodeMetadata{
		Path:     p,
		Name:     name,
		Kind:     kind,
		Size:     int64(len(n.Data)),
		Created:  n.Created,
		Modified: n.Modified,
		Version:  n.Version,
	}
}

func (r *Repo) readableLocked() error {
	if r.closed {
		return ErrClosed
	}
	return nil
}

// ReadDir lists the direct children of a directory sorted by name.
func (r *Repo) ReadDir(p string) ([]models.NodeMetadata, error) {
	p = models.NormalizePath(p)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.readableLocked(); err != nil {
		return nil, err
	}
	n, ok := r.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if !n.Dir {
		return nil, fmt.Errorf("%w: %s", ErrNotDir, p)
	}
	var out []models.NodeMetadata
	for child, cn := range r.nodes {
		if child != "/" && path.Dir(child) == p {
			out = append(out, metadata(child, cn))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Repo) Metadata(p string) (models.NodeMetadata, error) {
	p = models.NormalizePath(p)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.readableLocked(); err != nil {
		return models.NodeMetadata{}, err
	}
	n, ok := r.nodes[p]
	if !ok {
		return models.NodeMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return metadata(p, n), nil
}

func (r *Repo) IsDir(p string) (bool, error) {
	md, err := r.Metadata(p)
	if err != nil {
		return false, err
	}
	return md.IsDir(), nil
}

func (r *Repo) PathExists(p string) bool {
	_, err := r.Metadata(p)
	return err == nil
}

func (r *Repo) ReadFile(p string) ([]byte, error) {
	p = models.NormalizePath(p)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.readableLocked(); err != nil {
		return nil, err
	}
	n, ok := r.nodes[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if n.Dir {
		return nil, fmt.Errorf("%w: %s", ErrIsDir, p)
	}
	return append([]byte(nil), n.Data...), nil
}

// CreateDirAll creates p and any missing parents.
func (r *Repo) CreateDirAll(p string) error {
	p = models.NormalizePath(p)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	next := cloneTree(r.nodes)
	now := time.Now().UTC()
	changed := false
	cur := "/"
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if part == "" {
			continue
		}
		cur = path.Join(cur, part)
		n, ok := next[cur]
		if ok {
			if !n.Dir {
				return fmt.Errorf("%w: %s", ErrNotDir, cur)
			}
			continue
		}
		next[cur] = node{Dir: true, Created: now, Modified: now, Version: 1}
		changed = true
	}
	if !changed {
		return nil
	}
	return r.commitLocked(next)
}

// WriteFile creates or overwrites the file at p. The parent must be an
// existing directory. Overwrites bump the version.
func (r *Repo) WriteFile(p string, data []byte) error {
	p = models.NormalizePath(p)
	if p == "/" {
		return fmt.Errorf("%w: %s", ErrIsDir, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	parent, ok := r.nodes[path.Dir(p)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path.Dir(p))
	}
	if !parent.Dir {
		return fmt.Errorf("%w: %s", ErrNotDir, path.Dir(p))
	}
	now := time.Now().UTC()
	n, exists := r.nodes[p]
	if exists && n.Dir {
		return fmt.Errorf("%w: %s", ErrIsDir, p)
	}
	if exists {
		n.Version++
	} else {
		n = node{Created: now, Version: 1}
	}
	n.Data = append([]byte(nil), data...)
	n.Modified = now
	next := cloneTree(r.nodes)
	next[p] = n
	return r.commitLocked(next)
}

func (r *Repo) RemoveFile(p string) error {
	p = models.NormalizePath(p)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	n, ok := r.nodes[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if n.Dir {
		return fmt.Errorf("%w: %s", ErrIsDir, p)
	}
	next := cloneTree(r.nodes)
	delete(next, p)
	return r.commitLocked(next)
}

// RemoveDirAll removes a directory and everything below it. The root
// cannot be removed.
func (r *Repo) RemoveDirAll(p string) error {
	p = models.NormalizePath(p)
	if p == "/" {
		return fmt.Errorf("%w: cannot remove root", ErrInvalidPath)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	n, ok := r.nodes[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if !n.Dir {
		return fmt.Errorf("%w: %s", ErrNotDir, p)
	}
	next := cloneTree(r.nodes)
	prefix := p + "/"
	for k := range next {
		if k == p || strings.HasPrefix(k, prefix) {
			delete(next, k)
		}
	}
	return r.commitLocked(next)
}

func (r *Repo) commitLocked(next map[string]node) error {
	if err := r.persistLocked(next); err != nil {
		return err
	}
	r.nodes = next
	return nil
}
