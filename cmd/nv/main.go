package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nv/go-nv/internal/kdf"
	"nv/go-nv/internal/miner"
	"nv/go-nv/internal/opener"
	"nv/go-nv/internal/params"
	"nv/go-nv/internal/platform/metrics"
	"nv/go-nv/internal/platform/privacylog"
	"nv/go-nv/internal/prompt"
	"nv/go-nv/internal/securestore"
	"nv/go-nv/internal/seed"
	"nv/go-nv/internal/shell"
	"nv/go-nv/internal/vault"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const (
	exitOK    = 0
	exitUsage = 1
	exitFatal = 2
)

type cliFlags struct {
	showVersion bool
	repo        string
	suri        bool
	namespace   string
	create      bool
	force       bool
	readOnly    bool
	debug       bool
	diff        uint64
	round       uint64
	seedBytes   int
	opsLimit    string
	memLimit    string
	cipher      string
	configPath  string
	set         map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, errOut io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("nv", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")
	fs.StringVar(&f.repo, "repo", "", "Repository URI (default "+opener.DefaultURI+")")
	fs.BoolVar(&f.suri, "suri", false, "Ask for the repository URI at a hidden prompt")
	fs.StringVar(&f.namespace, "namespace", opener.DefaultNamespace, "Namespace substituted into the default URI")
	fs.BoolVar(&f.create, "create", false, "Create a new repository")
	fs.BoolVar(&f.force, "force", false, "Open without taking the repository lock")
	fs.BoolVar(&f.readOnly, "read", false, "Open the repository read-only")
	fs.BoolVar(&f.debug, "debug", false, "Verbose logs and KDF metrics in info")
	fs.Uint64Var(&f.diff, "diff", params.DefaultDiff, "Mining difficulty")
	fs.Uint64Var(&f.round, "round", params.DefaultRound, "Trials per seed before a new one is drawn (create only)")
	fs.IntVar(&f.seedBytes, "seed-bytes", params.DefaultSeedBytes, "Seed length in bytes (create only)")
	fs.StringVar(&f.opsLimit, "ops-limit", "", "Volume key ops limit: interactive | moderate | sensitive")
	fs.StringVar(&f.memLimit, "mem-limit", "", "Volume key mem limit: interactive | moderate | sensitive")
	fs.StringVar(&f.cipher, "cipher", "", "Cipher for a new repository: xchacha20poly1305 | aes256gcm")
	fs.StringVar(&f.configPath, "config", "", "Path to config.yaml (optional)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// resolveParams layers defaults, the config file and explicitly set flags.
func resolveParams(f cliFlags, file params.FileConfig) (params.Params, error) {
	p := params.Default()
	if err := params.Merge(&p, file.KDF); err != nil {
		return p, err
	}
	var over params.KDFConfig
	if f.set["diff"] {
		over.Diff = &f.diff
	}
	if f.set["round"] {
		over.Round = &f.round
	}
	if f.set["seed-bytes"] {
		over.SeedBytes = &f.seedBytes
	}
	over.OpsLimit = f.opsLimit
	over.MemLimit = f.memLimit
	if err := params.Merge(&p, over); err != nil {
		return p, err
	}
	return p, p.Validate()
}

// resolveCipher picks the flag, then the config file. Neither means the default.
func resolveCipher(f cliFlags, file params.FileConfig) (securestore.Cipher, error) {
	raw := file.Repo.Cipher
	if f.cipher != "" {
		raw = f.cipher
	}
	return securestore.ParseCipher(raw)
}

func resolveURI(f cliFlags, file params.FileConfig, ui *prompt.Terminal) (string, error) {
	namespace := f.namespace
	if !f.set["namespace"] && file.Repo.Namespace != "" {
		namespace = file.Repo.Namespace
	}
	raw := file.Repo.URI
	if f.repo != "" {
		raw = f.repo
	}
	if f.suri {
		hidden, err := ui.Secret("Repository URI: ")
		if err != nil {
			return "", err
		}
		raw = hidden
	}
	return opener.NormalizeURI(raw, namespace)
}

func newLogger(out io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(privacylog.WrapHandler(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
}

func run(ctx context.Context, args []string, in *os.File, out io.Writer) int {
	f, err := parseFlags(args, out)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}
	if f.showVersion {
		fmt.Fprintf(out, "nv version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return exitOK
	}
	logger := newLogger(out, f.debug)

	file, err := params.LoadFromPath(f.configPath)
	if err != nil {
		fmt.Fprintf(out, "Failed to load config: %v\n", err)
		return exitUsage
	}
	p, err := resolveParams(f, file)
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}
	cipher, err := resolveCipher(f, file)
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}

	ui := prompt.NewTerminal(in, out)
	uri, err := resolveURI(f, file, ui)
	if err != nil {
		return report(ui, err)
	}

	stats := metrics.New()
	hasher, err := kdf.NewCounting(p.Hash, stats.Hashes)
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}
	m := miner.New(hasher).WithReporter(prompt.NewProgress(out)).WithMetrics(stats)
	pipeline, err := seed.NewPipeline(p, seed.Deps{Hasher: hasher, Miner: m, Metrics: stats, Logger: logger})
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}

	env := vault.InitEnv()
	defer env.Close()

	op := opener.New(pipeline, env, ui, opener.Config{Cipher: cipher, Logger: logger})
	session, err := op.Open(ctx, opener.Request{URI: uri, Create: f.create, Force: f.force, ReadOnly: f.readOnly})
	if err != nil {
		return report(ui, err)
	}
	defer session.Close()
	if session.ReadOnly() {
		ui.Warn("Read-only mode.")
	}

	sh := shell.New(session, ui, op, shell.Config{Metrics: stats, Debug: f.debug, Logger: logger})
	if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return report(ui, err)
	}
	return exitOK
}

func report(ui *prompt.Terminal, err error) int {
	var exists *opener.ExistsError
	switch kind := opener.KindOf(err); {
	case kind == opener.AbortByUser:
		return exitOK
	case errors.Is(err, opener.ErrRepositoryMissing), errors.As(err, &exists):
		ui.Error(err.Error())
		return exitUsage
	case kind == opener.Parameter, errors.Is(err, vault.ErrInvalidURI):
		ui.Error(err.Error())
		return exitUsage
	default:
		ui.Error("Error: " + err.Error())
		return exitFatal
	}
}
