package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nv/go-nv/internal/securestore"

	"github.com/klauspost/compress/zstd"
)

type node struct {
	Dir      bool      `json:"dir"`
	Data     []byte    `json:"data,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Version  uint64    `json:"version"`
}

type snapshot struct {
	Nodes map[string]node `json:"nodes"`
}

func newTree(now time.Time) map[string]node {
	return map[string]node{
		"/": {Dir: true, Created: now, Modified: now, Version: 1},
	}
}

func cloneTree(in map[string]node) map[string]node {
	out := make(map[string]node, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (r *Repo) indexAD() []byte {
	return []byte("nv-index:" + r.meta.VolumeID)
}

// persistLocked seals nodes into index.enc. Callers swap r.nodes only after
// it succeeds.
func (r *Repo) persistLocked(nodes map[string]node) error {
	payload, err := json.Marshal(snapshot{Nodes: nodes})
	if err != nil {
		return err
	}
	if r.meta.Compressed {
		payload, err = compress(payload)
		if err != nil {
			return err
		}
	}
	buf, err := r.key.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return securestore.WriteEncryptedFile(filepath.Join(r.dir, indexFile), r.meta.Cipher, buf.Bytes(), payload, r.indexAD())
}

func (r *Repo) readIndex() (map[string]node, error) {
	buf, err := r.key.Open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	payload, err := securestore.ReadDecryptedFile(filepath.Join(r.dir, indexFile), buf.Bytes(), r.indexAD())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: missing %s", ErrCorrupted, indexFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if r.meta.Compressed {
		payload, err = decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}
	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	root, ok := snap.Nodes["/"]
	if !ok || !root.Dir {
		return nil, fmt.Errorf("%w: missing root", ErrCorrupted)
	}
	return snap.Nodes, nil
}

func compress(in []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(in, nil), nil
}

func decompress(in []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(in, nil)
}
