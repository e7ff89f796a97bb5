package params

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/securestore"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateRejectsBadParams(t *testing.T) {
	mutations := []func(*Params){
		func(p *Params) { p.Diff = 0 },
		func(p *Params) { p.SeedBytes = 0 },
		func(p *Params) { p.SeedBytes = MaxSeedBytes + 1 },
		func(p *Params) { p.OpsLimit = 0 },
		func(p *Params) { p.MemLimit = 9 },
		func(p *Params) { p.Hash = kdf.Params{} },
	}
	for i, mutate := range mutations {
		p := Default()
		mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("case %d: expected ErrInvalidParams, got %v", i, err)
		}
	}
}

func TestRecoveryNoticesOnlyForRecoveryRelevantOverrides(t *testing.T) {
	p := Default()
	p.Round = 5000
	p.SeedBytes = 2
	if notices := p.RecoveryNotices(); len(notices) != 0 {
		t.Fatalf("round and seed bytes must not require notices, got %v", notices)
	}

	p.Diff = 42
	p.MemLimit = securestore.MemInteractive
	notices := p.RecoveryNotices()
	if len(notices) != 2 {
		t.Fatalf("expected 2 notices, got %v", notices)
	}
	if !strings.Contains(notices[0], "--diff 42") {
		t.Fatalf("unexpected diff notice %q", notices[0])
	}
	if !strings.Contains(notices[1], "--mem-limit interactive") {
		t.Fatalf("unexpected mem notice %q", notices[1])
	}
}

func TestLoadAndMergeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
kdf:
  diff: 77
  seedBytes: 3
  opsLimit: moderate
  hash:
    time: 2
    memoryKB: 128
    threads: 1
repo:
  namespace: work
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Repo.Namespace != "work" {
		t.Fatalf("unexpected namespace %q", cfg.Repo.Namespace)
	}
	p := Default()
	if err := Merge(&p, cfg.KDF); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if p.Diff != 77 || p.SeedBytes != 3 || p.Round != DefaultRound {
		t.Fatalf("unexpected merged params: %+v", p)
	}
	if p.OpsLimit != securestore.OpsModerate || p.MemLimit != securestore.MemSensitive {
		t.Fatalf("unexpected classes: %v %v", p.OpsLimit, p.MemLimit)
	}
	if p.Hash != (kdf.Params{Time: 2, MemoryKB: 128, Threads: 1}) {
		t.Fatalf("unexpected hash params: %+v", p.Hash)
	}
}

func TestLoadExplicitMissingConfigFails(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestMergeRejectsUnknownClass(t *testing.T) {
	p := Default()
	if err := Merge(&p, KDFConfig{MemLimit: "huge"}); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}
