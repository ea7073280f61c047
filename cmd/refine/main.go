// Package main is the refine CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/refine/internal/bigram"
	"github.com/hyperjump/refine/internal/cli"
	"github.com/hyperjump/refine/internal/config"
	"github.com/hyperjump/refine/internal/extract"
	"github.com/hyperjump/refine/internal/feedback"
	"github.com/hyperjump/refine/internal/fetcher"
	"github.com/hyperjump/refine/internal/indexer"
	"github.com/hyperjump/refine/internal/keyword"
	"github.com/hyperjump/refine/internal/provider"
	"github.com/hyperjump/refine/internal/rocchio"
	"github.com/hyperjump/refine/internal/server"
	"github.com/hyperjump/refine/internal/storage"
	"github.com/hyperjump/refine/internal/text"
	"github.com/hyperjump/refine/internal/watcher"
	"github.com/hyperjump/refine/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/refine/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file yields the built-in defaults.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "run":
		runFeedback()
	case "serve":
		runServe()
	case "bigrams":
		runBigrams()
	case "history":
		runHistory()
	case "version", "--version", "-v":
		fmt.Printf("refine version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the positional arguments
// to the front so that flag.Parse() sees them. Go's flag package stops at the first
// non-flag argument, so "refine run KEY CX 0.9 milky way -debug" would otherwise
// leave -debug in the query.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// runArgs are the positional arguments of the run subcommand.
type runArgs struct {
	APIKey          string
	EngineID        string
	TargetPrecision float64
	Query           string
}

// parseRunArgs validates <api-key> <engine-id> <precision> <query...>.
func parseRunArgs(args []string) (*runArgs, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("expected <api-key> <engine-id> <precision> <query...>, got %d argument(s)", len(args))
	}
	precision, err := config.ParsePrecision(args[2])
	if err != nil {
		return nil, err
	}
	query := strings.Trim(buildQuery(args[3:]), `"`)
	if strings.TrimSpace(query) == "" {
		return nil, config.ErrEmptyQuery
	}
	return &runArgs{
		APIKey:          args[0],
		EngineID:        args[1],
		TargetPrecision: precision,
		Query:           query,
	}, nil
}

// runFlags are overrides shared by the run subcommand.
type runFlags struct {
	endpoint   string
	maxTerms   int
	maxRounds  int
	textSource string
	corpus     string
}

// applyRunFlags copies explicitly set flags and positional values onto cfg.
func applyRunFlags(cfg *config.Config, fs *flag.FlagSet, f *runFlags, a *runArgs) {
	cfg.Search.APIKey = a.APIKey
	cfg.Search.EngineID = a.EngineID
	cfg.Feedback.TargetPrecision = a.TargetPrecision
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "endpoint":
			cfg.Search.Endpoint = f.endpoint
		case "max-terms":
			cfg.Feedback.MaxNewTerms = f.maxTerms
		case "max-rounds":
			cfg.Feedback.MaxRounds = f.maxRounds
		case "text-source":
			cfg.Fetch.TextSource = f.textSource
		case "bigrams":
			cfg.Bigram.CorpusPath = f.corpus
		}
	})
}

func printRunUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: refine run [flags] <api-key> <engine-id> <precision> <query...>\n\n")
	fmt.Fprintf(fs.Output(), "Precision is the target in (0, 1]. The query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  refine run $KEY $CX 0.9 milky way
  refine run -text-source snippet -max-rounds 5 $KEY $CX 0.8 "per se"
  refine run -endpoint http://localhost:8080/customsearch/v1 local local 0.9 galaxy
`)
}

func runFeedback() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, expansion scores, etc.)")
	verbose := fs.Bool("verbose", false, "print the top scored expansion candidates each round")
	f := &runFlags{}
	fs.StringVar(&f.endpoint, "endpoint", "", "search endpoint (default from config, or the Google Custom Search API)")
	fs.IntVar(&f.maxTerms, "max-terms", 2, "new terms added per round")
	fs.IntVar(&f.maxRounds, "max-rounds", 0, "stop after this many rounds (0 = unlimited)")
	fs.StringVar(&f.textSource, "text-source", config.TextSourceFull, "document text: full (fetch pages) or snippet")
	fs.StringVar(&f.corpus, "bigrams", "", "reference corpus file or directory for term ordering")
	fs.Usage = func() { printRunUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	args, err := parseRunArgs(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printRunUsage(fs)
		os.Exit(1)
	}

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyRunFlags(cfg, fs, f, args)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Debug("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("endpoint", cfg.Search.Endpoint),
		zap.Float64("target_precision", cfg.Feedback.TargetPrecision),
		zap.String("text_source", cfg.Fetch.TextSource))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenizer, err := text.NewTokenizer()
	if err != nil {
		logger.Fatal("Failed to create tokenizer", zap.Error(err))
	}

	var store storage.Storage
	if cfg.Storage.JournalOrDefault() || (cfg.Bigram.CorpusPath != "" && cfg.Bigram.CacheOrDefault()) {
		s, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			logger.Warn("storage unavailable, continuing without journal or bigram cache",
				zap.String("path", cfg.Storage.DatabasePath), zap.Error(err))
		} else {
			store = s
			defer store.Close()
		}
	}

	opts := []feedback.ControllerOption{
		feedback.WithLogger(logger),
		feedback.WithExpander(rocchio.NewExpander(
			rocchio.WithWeights(cfg.Feedback.Alpha, cfg.Feedback.Beta, cfg.Feedback.Gamma),
			rocchio.WithMaxNewTerms(cfg.Feedback.MaxNewTerms),
		)),
	}
	if cfg.Bigram.CorpusPath != "" {
		table, err := loadBigrams(ctx, cfg, tokenizer, store, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load bigram corpus: %v\n", err)
			os.Exit(1)
		}
		logger.Debug("bigram table loaded", zap.Int("pairs", table.Len()))
		opts = append(opts, feedback.WithOrderer(table))
	}
	if cfg.Fetch.TextSource == config.TextSourceFull {
		opts = append(opts, feedback.WithFetcher(fetcher.NewFetcher(&cfg.Fetch, fetcher.WithLogger(logger))))
	}
	if store != nil && cfg.Storage.JournalOrDefault() {
		opts = append(opts, feedback.WithJournal(store))
	}
	display := cli.NewDisplay(os.Stdout)
	display.Verbose = *verbose
	opts = append(opts, feedback.WithReporter(display))

	search := provider.NewCustomSearch(&cfg.Search, provider.WithLogger(logger))
	judge := cli.NewPrompt(os.Stdin, os.Stdout)
	controller := feedback.NewController(search, judge, tokenizer, feedback.Config{
		TargetPrecision: cfg.Feedback.TargetPrecision,
		MaxRounds:       cfg.Feedback.MaxRounds,
		TextSource:      cfg.Fetch.TextSource,
	}, opts...)

	outcome, err := controller.Run(ctx, args.Query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nInterrupted.")
		} else {
			fmt.Fprintf(os.Stderr, "\nRun aborted: %v\n", err)
		}
		if outcome != nil {
			fmt.Printf("Final query: %s\n", outcome.FinalQuery)
		}
		os.Exit(1)
	}
	fmt.Println("Goodbye!")
}

func loadBigrams(ctx context.Context, cfg *config.Config, tokenizer *text.Tokenizer, store storage.Storage, logger *zap.Logger) (*bigram.Table, error) {
	opts := []bigram.LoaderOption{bigram.WithLogger(logger)}
	if store != nil && cfg.Bigram.CacheOrDefault() {
		opts = append(opts, bigram.WithCache(store))
	}
	return bigram.NewLoader(tokenizer, extract.NewExtractor(), opts...).Load(ctx, cfg.Bigram.CorpusPath)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (file events, indexing, requests, etc.)")
	port := fs.Int("port", 0, "listen port (default from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Positional arguments are extra corpus directories.
	cfg.Server.Directories = append(cfg.Server.Directories, fs.Args()...)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Strings("directories", cfg.Server.Directories),
		zap.Bool("debug", debugMode))

	if len(cfg.Server.Directories) == 0 {
		fmt.Println("No corpus directories: set server.directories in the config or pass them as arguments.")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kw, err := keyword.NewBleveIndex(cfg.Storage.IndexPath)
	if err != nil {
		logger.Fatal("Failed to open keyword index", zap.Error(err))
	}
	defer kw.Close()

	idx := indexer.NewIndexer(kw, extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Server.Extensions))
	for _, dir := range cfg.Server.Directories {
		n, err := idx.IndexDirectory(ctx, dir)
		if err != nil {
			logger.Fatal("Indexing directory failed", zap.String("dir", dir), zap.Error(err))
		}
		logger.Info("directory indexed", zap.String("dir", dir), zap.Int("changed", n))
	}

	if cfg.Server.WatchOrDefault() {
		w := watcher.NewWatcher(cfg.Server.Directories, idx, watcher.WithLogger(logger))
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("watcher stopped", zap.Error(err))
			}
		}()
	}

	srv := server.NewServer(kw, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runBigrams() {
	fs := flag.NewFlagSet("bigrams", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	top := fs.Int("top", 20, "number of most frequent pairs to print (-1 = all)")
	noCache := fs.Bool("no-cache", false, "rebuild without reading or writing the sqlite cache")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 && fs.NArg() != 3 {
		fmt.Println("Usage: refine bigrams [flags] <corpus-path> [first second]")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Bigram.CorpusPath = fs.Arg(0)
	if *noCache {
		disabled := false
		cfg.Bigram.Cache = &disabled
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tokenizer, err := text.NewTokenizer()
	if err != nil {
		logger.Fatal("Failed to create tokenizer", zap.Error(err))
	}
	var store storage.Storage
	if cfg.Bigram.CacheOrDefault() {
		s, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			logger.Warn("bigram cache unavailable", zap.Error(err))
		} else {
			store = s
			defer store.Close()
		}
	}

	start := time.Now()
	table, err := loadBigrams(context.Background(), cfg, tokenizer, store, logger)
	if err != nil {
		fmt.Printf("Failed to load bigrams: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d distinct pairs loaded in %s\n", table.Len(), time.Since(start).Round(time.Millisecond))

	if fs.NArg() == 3 {
		first, second := strings.ToLower(fs.Arg(1)), strings.ToLower(fs.Arg(2))
		fmt.Printf("%s %s: %d\n", first, second, table.Count(first, second))
		fmt.Printf("%s %s: %d\n", second, first, table.Count(second, first))
		fmt.Printf("order: %s\n", strings.Join(table.Order([]string{first, second}), " "))
		return
	}
	for _, pc := range table.Top(*top) {
		fmt.Printf("%8d  %s %s\n", pc.Count, pc.First, pc.Second)
	}
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of sessions to list")
	offset := fs.Int("offset", 0, "number of sessions to skip")
	session := fs.String("session", "", "show the rounds of one session")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *session != "" {
		rounds, err := store.GetRounds(ctx, *session)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read session: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteRounds(os.Stdout, rounds, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	sessions, err := store.ListSessions(ctx, *offset, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSessions(os.Stdout, sessions, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`refine - Interactive query refinement with relevance feedback

Usage:
  refine run [flags] <api-key> <engine-id> <precision> <query...>   Run the feedback loop
  refine serve [flags] [directory...]                               Serve a local corpus as a search API
  refine bigrams [flags] <corpus-path> [first second]               Build and inspect the bigram table
  refine history [flags]                                            List recorded sessions
  refine version                                                    Show version
  refine help                                                       Show this help

Run Flags:
  --config string       Config file path (default: /usr/local/etc/refine/config.yaml)
  --debug               Enable debug logging
  --endpoint string     Search endpoint (default: Google Custom Search API)
  --max-terms int       New terms added per round (default: 2)
  --max-rounds int      Stop after this many rounds (default: 0, unlimited)
  --text-source string  full (fetch result pages) or snippet (default: full)
  --bigrams string      Reference corpus for ordering new terms
  --verbose             Print the top scored candidates each round

Serve Flags:
  --config string    Config file path
  --debug            Enable debug logging
  --port int         Listen port (default from config: 8080)

Bigrams Flags:
  --top int          Pairs to print (default: 20)
  --no-cache         Rebuild without the sqlite cache

History Flags:
  --limit int        Sessions to list (default: 20)
  --offset int       Sessions to skip
  --session string   Show the rounds of one session
  --output string    Output format: text or json (default: text)

Examples:
  refine run $GOOGLE_API_KEY $ENGINE_ID 0.9 per se
  refine serve ~/Documents/corpus
  refine run -endpoint http://localhost:8080/customsearch/v1 -text-source snippet local local 0.8 galaxy
  refine bigrams ~/corpus/wiki milky way
  refine history --output json`)
}
