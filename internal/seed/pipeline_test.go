package seed

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/mnemonic"
	"nv/go-nv/internal/params"
	"nv/go-nv/internal/platform/metrics"
	"nv/go-nv/internal/platform/random"
	"nv/go-nv/internal/securestore"
)

func testParams() params.Params {
	p := params.Default()
	p.Diff = 4
	p.Round = 3
	p.SeedBytes = 2
	p.Hash = kdf.Params{Time: 1, MemoryKB: 64, Threads: 1}
	return p
}

func newTestPipeline(t *testing.T, p params.Params, seed int64) (*Pipeline, *metrics.Registry) {
	t.Helper()
	reg := metrics.New()
	pipe, err := NewPipeline(p, Deps{
		Random:  random.FromReader(rand.New(rand.NewSource(seed))),
		Metrics: reg,
	})
	if err != nil {
		t.Fatalf("new pipeline failed: %v", err)
	}
	return pipe, reg
}

func TestMintThenRecoverReproducesKey(t *testing.T) {
	pipe, _ := newTestPipeline(t, testParams(), 1)
	minted, err := pipe.Mint(context.Background(), "hunter2")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if len(minted.Seed) != 2 || len(minted.Key) != 2*kdf.Size {
		t.Fatalf("unexpected minted shape: %+v", minted)
	}

	// A different round cap at recovery must not matter.
	p := testParams()
	p.Round = 1
	other, _ := newTestPipeline(t, p, 99)
	key, err := other.RecoverMnemonic(context.Background(), "hunter2", mnemonic.Display(minted.Mnemonic))
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if key != minted.Key {
		t.Fatalf("recovered key mismatch: %s != %s", key, minted.Key)
	}
}

func TestRecoverWithWrongInputsYieldsDifferentKey(t *testing.T) {
	pipe, _ := newTestPipeline(t, testParams(), 2)
	minted, err := pipe.Mint(context.Background(), "pw")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	wrongSeed := append([]byte(nil), minted.Seed...)
	wrongSeed[0] ^= 0x01
	key, err := pipe.Recover(context.Background(), "pw", wrongSeed)
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if key == minted.Key {
		t.Fatal("wrong mnemonic must not reproduce the key")
	}

	key, err = pipe.Recover(context.Background(), "pW", minted.Seed)
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if key == minted.Key {
		t.Fatal("wrong password must not reproduce the key")
	}
}

func TestRecoverRejectsBadMnemonic(t *testing.T) {
	pipe, _ := newTestPipeline(t, testParams(), 4)
	if _, err := pipe.RecoverMnemonic(context.Background(), "pw", "abandon qwerty"); !errors.Is(err, mnemonic.ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
	if _, err := pipe.Recover(context.Background(), "pw", nil); !errors.Is(err, ErrMnemonicRequired) {
		t.Fatalf("expected ErrMnemonicRequired, got %v", err)
	}
}

func TestNewPipelineValidatesParams(t *testing.T) {
	p := testParams()
	p.Diff = 0
	if _, err := NewPipeline(p, Deps{}); !errors.Is(err, params.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestMintPropagatesCancellation(t *testing.T) {
	pipe, _ := newTestPipeline(t, testParams(), 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pipe.Mint(ctx, "pw"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type scriptedUI struct {
	answers []bool
	lines   []string
}

func (u *scriptedUI) Confirm(question string) (bool, error) {
	u.lines = append(u.lines, "? "+question)
	if len(u.answers) == 0 {
		return false, errors.New("no more answers")
	}
	a := u.answers[0]
	u.answers = u.answers[1:]
	return a, nil
}

func (u *scriptedUI) Notify(line string) { u.lines = append(u.lines, line) }

func TestCeremonyDiscardsUntilKept(t *testing.T) {
	p := testParams()
	p.MemLimit = securestore.MemInteractive
	pipe, reg := newTestPipeline(t, p, 6)
	ui := &scriptedUI{answers: []bool{false, false, false, true}}

	minted, err := pipe.Ceremony(context.Background(), "pw", ui)
	if err != nil {
		t.Fatalf("ceremony failed: %v", err)
	}
	shown := 0
	notes := 0
	lastShown := ""
	for i, line := range ui.lines {
		if strings.HasPrefix(line, "Mnemonic: ") {
			shown++
			lastShown = strings.TrimPrefix(line, "Mnemonic: ")
		}
		if line == LongerSeedNote {
			notes++
			if shown != 2 {
				t.Fatalf("note must follow the second discard, line %d after %d mnemonics", i, shown)
			}
		}
	}
	if shown != 4 || notes != 1 {
		t.Fatalf("expected 4 mnemonics and 1 note, got %d and %d: %v", shown, notes, ui.lines)
	}
	if mnemonic.Normalize(lastShown) != minted.Mnemonic {
		t.Fatalf("kept mnemonic %q is not the last shown %q", minted.Mnemonic, lastShown)
	}

	tail := strings.Join(ui.lines, "\n")
	if !strings.Contains(tail, SaveAdvice) || !strings.Contains(tail, "--diff 4") || !strings.Contains(tail, "--mem-limit interactive") {
		t.Fatalf("missing advice or notices: %v", ui.lines)
	}

	samples, err := reg.Snapshot()
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	for _, s := range samples {
		if s.Name == "nv_seed_ceremonies_total" && s.Labels["kind"] == "create" && s.Value != 4 {
			t.Fatalf("expected 4 create ceremonies, got %v", s.Value)
		}
	}
}

func TestCeremonyPropagatesPromptError(t *testing.T) {
	pipe, _ := newTestPipeline(t, testParams(), 7)
	if _, err := pipe.Ceremony(context.Background(), "pw", &scriptedUI{}); err == nil {
		t.Fatal("expected prompt error")
	}
}

func TestRecoverKnownAnswer(t *testing.T) {
	const want = "96c020fbf2ac6fbd1caa6021c7c813eccf4c8a7bd24610e6ec9fd24252ce108a"
	pipe, _ := newTestPipeline(t, testParams(), 1)

	if got := mnemonic.Encode([]byte{1, 2, 3, 4}); got != "dizzy-army-acoustic" {
		t.Fatalf("unexpected mnemonic: %s", got)
	}
	key, err := pipe.RecoverMnemonic(context.Background(), "correct horse battery staple", "dizzy army acoustic")
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if key != want {
		t.Fatalf("derived key drifted: got %s want %s", key, want)
	}
	raw, err := pipe.Recover(context.Background(), "correct horse battery staple", []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("recover bytes failed: %v", err)
	}
	if raw != want {
		t.Fatalf("recover from bytes disagrees: %s", raw)
	}
}

func TestDebugLogCarriesRoundCap(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pipe, err := NewPipeline(testParams(), Deps{
		Random: random.FromReader(rand.New(rand.NewSource(7))),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("new pipeline failed: %v", err)
	}
	minted, err := pipe.Mint(context.Background(), "hunter2")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if !strings.Contains(buf.String(), "round=3") {
		t.Fatalf("mint log missing round cap: %s", buf.String())
	}
	buf.Reset()
	if _, err := pipe.Recover(context.Background(), "hunter2", minted.Seed); err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if !strings.Contains(buf.String(), "round=unbounded") {
		t.Fatalf("recover log missing round cap: %s", buf.String())
	}
}
