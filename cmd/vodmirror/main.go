package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/mohaanymo/vodmirror"
	"github.com/mohaanymo/vodmirror/internal/config"
	"github.com/mohaanymo/vodmirror/internal/httpclient"
	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/mirror"
	"github.com/mohaanymo/vodmirror/internal/tui"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	cfg, jobPath := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("vodmirror %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if jobPath != "" {
		job, err := config.LoadJob(jobPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.ApplyJob(job)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (*config.Config, string) {
	cfg := config.New()

	var headers headerFlags
	var jobPath string

	flag.StringVar(&cfg.URL, "url", "", "")
	flag.StringVar(&cfg.URL, "u", "", "")
	flag.StringVar(&cfg.Format, "format", "", "")
	flag.StringVar(&cfg.Format, "f", "", "")
	flag.StringVar(&cfg.Output, "output", "", "")
	flag.StringVar(&cfg.Output, "o", "", "")
	flag.Var(&headers, "header", "")
	flag.Var(&headers, "H", "")
	flag.StringVar(&cfg.AuthHeader, "auth-header", "", "")
	flag.IntVar(&cfg.Threads, "threads", config.DefaultThreads, "")
	flag.IntVar(&cfg.Threads, "n", config.DefaultThreads, "")
	flag.Float64Var(&cfg.RPS, "rps", config.DefaultRPS, "")
	flag.Int64Var(&cfg.MaxBandwidth, "max-bandwidth", 0, "")
	flag.IntVar(&cfg.RetryAttempts, "retries", config.DefaultRetryAttempts, "")
	flag.DurationVar(&cfg.RetryDelay, "retry-delay", config.DefaultRetryDelay, "")
	flag.DurationVar(&cfg.Timeout, "timeout", 0, "")
	flag.DurationVar(&cfg.DeadlineMargin, "deadline-margin", config.DefaultDeadlineMargin, "")
	flag.StringVar(&jobPath, "job", "", "")
	flag.BoolVar(&cfg.ResolveOnly, "resolve-only", false, "")
	flag.BoolVar(&cfg.NoProgress, "no-progress", false, "")
	flag.StringVar(&cfg.Signing, "signing", config.DefaultSigning, "")
	flag.StringVar(&cfg.SigningRegion, "signing-region", "", "")
	flag.StringVar(&cfg.LogLevel, "log-level", config.DefaultLogLevel, "")
	flag.StringVar(&cfg.LogFormat, "log-format", config.DefaultLogFormat, "")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "")

	flag.Usage = printUsage
	flag.Parse()

	// Parse headers
	for _, h := range headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			cfg.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cfg, jobPath
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `vodmirror - resolve and mirror DASH/HLS video-on-demand assets

Usage: vodmirror [options] -u <URL> -o <destination>

Options:
  -u, --url <URL>             Master manifest URL (mpd or m3u8) [required]
  -f, --format <fmt>          Force format: dash, hls (default: detect)
  -o, --output <dest>         Local directory or s3://bucket/path [required unless --resolve-only]
  -H, --header <header>       Custom header (repeatable)
      --auth-header <json>    CDN authorization headers as a JSON object
  -n, --threads <num>         Concurrent copies (default: 5, max: 20)
      --rps <num>             Max resources queued per second (default: 1000, 0: unlimited)
      --max-bandwidth <bps>   Download speed limit in bytes per second
      --retries <num>         Attempts per request (default: 3)
      --retry-delay <dur>     Pause between attempts (default: 2s)
      --timeout <dur>         Overall deadline, e.g. 15m (default: none)
      --deadline-margin <dur> Stop queueing this long before the deadline (default: 2m)
      --job <file>            Read source and destination from a YAML or JSON job file
      --resolve-only          Print the resolved resource set as JSON and exit
      --signing <mode>        SigV4 signing: auto, on, off (default: auto)
      --signing-region <r>    Region used with --signing on
      --no-progress           Disable TUI progress
      --log-level <level>     debug, info, warn, error (default: info)
      --log-format <fmt>      console or json (default: console)
      --version               Show version

Examples:
  vodmirror -u https://example.com/out/v1/index.m3u8 --resolve-only
  vodmirror -u https://example.com/out/v1/index.mpd -o s3://my-bucket/asset-1
  vodmirror --job job.json -n 10
`)
}

func run(ctx context.Context, cfg *config.Config) error {
	useTUI := !cfg.NoProgress && !cfg.ResolveOnly && isatty.IsTerminal(os.Stderr.Fd())

	// While the TUI owns the terminal, log lines are held back and printed
	// after it exits.
	var logOut io.Writer = os.Stderr
	held := &lockedBuffer{}
	if useTUI {
		logOut = held
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, logOut)
	defer held.WriteTo(os.Stderr)

	r, err := newResolver(cfg, log)
	if err != nil {
		return err
	}

	asset, err := r.Resolve(ctx, cfg.URL)
	if err != nil {
		return err
	}

	if cfg.ResolveOnly {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(asset)
	}

	dest, err := config.ParseDestination(cfg.Output)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, dest)
	if err != nil {
		return err
	}

	opts := mirror.Options{
		Path:           dest.Path,
		Threads:        cfg.Threads,
		RPS:            cfg.RPS,
		DeadlineMargin: cfg.DeadlineMargin,
	}

	var result *mirror.Result
	if !useTUI {
		result, err = r.Mirror(ctx, asset, store, opts)
		if err != nil {
			return err
		}
		return printResult(result)
	}

	// Run with TUI
	progress := make(chan mirror.ProgressUpdate, 100)
	opts.Progress = progress
	model := tui.NewModel(asset, dest.String(), progress)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithOutput(os.Stderr))

	mirrorCtx, stop := context.WithCancel(ctx)
	defer stop()

	var mirrorErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, mirrorErr = r.Mirror(mirrorCtx, asset, store, opts)
		if mirrorErr != nil {
			p.Send(tui.ErrorMsg{Err: mirrorErr})
		} else {
			p.Send(tui.DoneMsg{Result: result})
		}
	}()

	_, tuiErr := p.Run()
	// Quitting the TUI early cancels the copy; what was stored so far is
	// picked up by the next run.
	stop()
	<-done

	if tuiErr != nil {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}
	if mirrorErr != nil {
		return mirrorErr
	}
	return printResult(result)
}

func newResolver(cfg *config.Config, log logger.Logger) (*vodmirror.Resolver, error) {
	mode, err := httpclient.ParseSigningMode(cfg.Signing)
	if err != nil {
		return nil, err
	}

	httpCfg := vodmirror.DefaultHTTPConfig()
	httpCfg.MaxBandwidth = cfg.MaxBandwidth
	if cfg.Threads > httpCfg.MaxConnsPerHost {
		httpCfg.MaxConnsPerHost = cfg.Threads
	}

	return vodmirror.New(
		vodmirror.WithHTTPConfig(httpCfg),
		vodmirror.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		vodmirror.WithSigning(vodmirror.SigningConfig{Mode: mode, Region: cfg.SigningRegion}),
		vodmirror.WithHeaders(cfg.Headers),
		vodmirror.WithFormat(cfg.Format),
		vodmirror.WithLogger(log),
	)
}

func newStore(ctx context.Context, dest config.Destination) (mirror.Store, error) {
	switch dest.Kind {
	case config.DestinationS3:
		s, err := mirror.NewS3StoreFromEnv(ctx, dest.Bucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return mirror.NewFileStore(dest.Root), nil
	}
}

func printResult(res *mirror.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Status != mirror.StatusComplete {
		fmt.Fprintf(os.Stderr, "\n! %s: %.2f%% copied, run again to resume\n", res.Status, res.Percentage)
		return nil
	}
	fmt.Fprintf(os.Stderr, "\n✓ Master manifest: %s\n", res.MasterLocation)
	return nil
}

// lockedBuffer is an io.Writer safe for concurrent loggers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.WriteTo(w)
}

// headerFlags implements flag.Value for repeatable header flags
type headerFlags []string

func (h *headerFlags) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerFlags) Set(value string) error {
	*h = append(*h, value)
	return nil
}
