package securestore

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ReadDecryptedFile reads and decrypts file content with key.
func ReadDecryptedFile(path string, key, ad []byte) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decrypt(key, raw, ad)
}

// WriteEncryptedFile seals payload and replaces path atomically.
func WriteEncryptedFile(path string, c Cipher, key, payload, ad []byte) error {
	encrypted, err := Encrypt(c, key, payload, ad)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, encrypted)
}

// WriteJSONAtomic marshals v and replaces path atomically.
func WriteJSONAtomic(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, payload)
}

// WriteFileAtomic writes data to a private temp file next to path and renames
// it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
