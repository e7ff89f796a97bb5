package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nv/go-nv/internal/securestore"
	"nv/go-nv/internal/testutil/fsperm"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.OpsLimit = securestore.OpsInteractive
	opts.MemLimit = securestore.MemInteractive
	return opts
}

func createRepo(t *testing.T, env *Env, secret string) (*Repo, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "repo")
	opts := testOptions()
	opts.Create = true
	repo, err := env.Open("file://"+dir, secret, opts)
	if err != nil {
		t.Fatalf("create repo failed: %v", err)
	}
	return repo, "file://" + dir
}

func newEnv(t *testing.T) *Env {
	t.Helper()
	env := InitEnv()
	t.Cleanup(env.Close)
	return env
}

func TestCreateWriteReopen(t *testing.T) {
	env := newEnv(t)
	repo, uri := createRepo(t, env, "secret-1")
	fsperm.AssertPrivateDirPerm(t, strings.TrimPrefix(uri, "file://"))

	if err := repo.CreateDirAll("/mail/work"); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := repo.WriteFile("/mail/work/imap", []byte("pw-1")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := repo.WriteFile("/mail/work/imap", []byte("pw-2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	dir := strings.TrimPrefix(uri, "file://")
	fsperm.AssertPrivateFilePerm(t, filepath.Join(dir, volumeFile))
	fsperm.AssertPrivateFilePerm(t, filepath.Join(dir, indexFile))

	repo, err := env.Open(uri, "secret-1", testOptions())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer repo.Close()
	data, err := repo.ReadFile("mail/work/imap")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "pw-2" {
		t.Fatalf("unexpected content %q", data)
	}
	md, err := repo.Metadata("/mail/work/imap")
	if err != nil {
		t.Fatalf("metadata failed: %v", err)
	}
	if md.Version != 2 || md.Size != 4 || md.IsDir() {
		t.Fatalf("unexpected metadata %+v", md)
	}
	entries, err := repo.ReadDir("/mail")
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "work" || !entries[0].IsDir() {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestOpenWithWrongSecret(t *testing.T) {
	env := newEnv(t)
	repo, uri := createRepo(t, env, "right")
	_ = repo.Close()
	if _, err := env.Open(uri, "wrong", testOptions()); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestSecondWriterIsRejectedAndReadOnlyFallbackWorks(t *testing.T) {
	env := newEnv(t)
	repo, uri := createRepo(t, env, "s")
	defer repo.Close()
	if err := repo.WriteFile("/a", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := env.Open(uri, "s", testOptions()); !errors.Is(err, ErrAlreadyOpened) {
		t.Fatalf("expected ErrAlreadyOpened, got %v", err)
	}
	opts := testOptions()
	opts.ReadOnly = true
	opts.Force = true
	ro, err := env.Open(uri, "s", opts)
	if err != nil {
		t.Fatalf("read-only open failed: %v", err)
	}
	defer ro.Close()
	if !ro.ReadOnly() {
		t.Fatal("expected read-only handle")
	}
	data, err := ro.ReadFile("/a")
	if err != nil || string(data) != "x" {
		t.Fatalf("read-only read failed: %q %v", data, err)
	}
	if err := ro.WriteFile("/b", []byte("y")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := ro.ResetPassword("s", "t", securestore.OpsInteractive, securestore.MemInteractive); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly for reset, got %v", err)
	}
}

func TestCloseReleasesLock(t *testing.T) {
	env := newEnv(t)
	repo, uri := createRepo(t, env, "s")
	if err := repo.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	again, err := env.Open(uri, "s", testOptions())
	if err != nil {
		t.Fatalf("open after close failed: %v", err)
	}
	_ = again.Close()
	if _, err := repo.ReadDir("/"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCreateAndOpenExistence(t *testing.T) {
	env := newEnv(t)
	repo, uri := createRepo(t, env, "s")
	_ = repo.Close()
	opts := testOptions()
	opts.Create = true
	if _, err := env.Open(uri, "s", opts); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	missing := "file://" + filepath.Join(t.TempDir(), "missing")
	if _, err := env.Open(missing, "s", testOptions()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	opts.ReadOnly = true
	if _, err := env.Open(missing, "s", opts); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestResetPasswordKeepsContents(t *testing.T) {
	env := newEnv(t)
	repo, uri := createRepo(t, env, "old")
	if err := repo.WriteFile("/s", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := repo.ResetPassword("nope", "new", securestore.OpsInteractive, securestore.MemInteractive); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := repo.ResetPassword("old", "new", securestore.OpsInteractive, securestore.MemInteractive); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	_ = repo.Close()

	if _, err := env.Open(uri, "old", testOptions()); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("old secret must stop working, got %v", err)
	}
	repo, err := env.Open(uri, "new", testOptions())
	if err != nil {
		t.Fatalf("open with new secret failed: %v", err)
	}
	defer repo.Close()
	data, err := repo.ReadFile("/s")
	if err != nil || string(data) != "x" {
		t.Fatalf("contents lost after reset: %q %v", data, err)
	}
}

func TestTamperedIndexIsCorrupted(t *testing.T) {
	env := newEnv(t)
	repo, uri := createRepo(t, env, "s")
	_ = repo.Close()
	index := filepath.Join(strings.TrimPrefix(uri, "file://"), indexFile)
	raw, err := os.ReadFile(index)
	if err != nil {
		t.Fatalf("read index failed: %v", err)
	}
	raw[len(raw)-5] ^= 0x01
	if err := os.WriteFile(index, raw, 0o600); err != nil {
		t.Fatalf("write index failed: %v", err)
	}
	if _, err := env.Open(uri, "s", testOptions()); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("expected ErrCorrupted, got %v", err)
	}
}

func TestTreeOperations(t *testing.T) {
	env := newEnv(t)
	repo, _ := createRepo(t, env, "s")
	defer repo.Close()

	if err := repo.WriteFile("/missing/x", []byte("1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing parent, got %v", err)
	}
	if err := repo.WriteFile("/f", []byte("1")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := repo.CreateDirAll("/f/sub"); !errors.Is(err, ErrNotDir) {
		t.Fatalf("expected ErrNotDir, got %v", err)
	}
	if err := repo.CreateDirAll("/d/e"); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := repo.WriteFile("/d", []byte("1")); !errors.Is(err, ErrIsDir) {
		t.Fatalf("expected ErrIsDir, got %v", err)
	}
	if err := repo.RemoveFile("/d"); !errors.Is(err, ErrIsDir) {
		t.Fatalf("expected ErrIsDir, got %v", err)
	}
	if err := repo.RemoveDirAll("/"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if err := repo.WriteFile("/d/e/g", []byte("1")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := repo.RemoveDirAll("/d"); err != nil {
		t.Fatalf("rmdir failed: %v", err)
	}
	if repo.PathExists("/d/e/g") || repo.PathExists("/d") {
		t.Fatal("subtree must be removed")
	}
	if err := repo.RemoveFile("/f"); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	entries, err := repo.ReadDir("/")
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty root, got %+v", entries)
	}
	if isDir, err := repo.IsDir("/"); err != nil || !isDir {
		t.Fatalf("root must be a directory: %v %v", isDir, err)
	}
}

func TestUncompressedAESRepository(t *testing.T) {
	env := newEnv(t)
	dir := filepath.Join(t.TempDir(), "aes")
	opts := testOptions()
	opts.Create = true
	opts.Compress = false
	opts.Cipher = securestore.CipherAES256GCM
	repo, err := env.Open("file://"+dir, "s", opts)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.WriteFile("/k", []byte("v")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := repo.Info()
	if err != nil {
		t.Fatalf("info failed: %v", err)
	}
	if info.Compressed || info.Cipher != string(securestore.CipherAES256GCM) {
		t.Fatalf("unexpected info %+v", info)
	}
	if !strings.HasPrefix(info.Fingerprint, "nv1") || info.Fingerprint != Fingerprint(info.VolumeID) {
		t.Fatalf("unexpected fingerprint %q", info.Fingerprint)
	}
	_ = repo.Close()

	repo, err = env.Open("file://"+dir, "s", testOptions())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer repo.Close()
	if data, err := repo.ReadFile("/k"); err != nil || string(data) != "v" {
		t.Fatalf("unexpected content %q %v", data, err)
	}
}

func TestEnvAndURIValidation(t *testing.T) {
	if _, err := ParseURI("/tmp/x"); !errors.Is(err, ErrInvalidURI) {
		t.Fatalf("expected ErrInvalidURI, got %v", err)
	}
	if _, err := ParseURI("file://"); !errors.Is(err, ErrInvalidURI) {
		t.Fatalf("expected ErrInvalidURI for empty path, got %v", err)
	}
	var nilEnv *Env
	if _, err := nilEnv.Open("file:///tmp/x", "s", testOptions()); !errors.Is(err, ErrNotEnv) {
		t.Fatalf("expected ErrNotEnv, got %v", err)
	}
	env := InitEnv()
	env.Close()
	if _, err := env.Open("file:///tmp/x", "s", testOptions()); !errors.Is(err, ErrNotEnv) {
		t.Fatalf("expected ErrNotEnv after close, got %v", err)
	}
}
