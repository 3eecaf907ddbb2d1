package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/kurtb/curator/pkg/catalog"
	"github.com/kurtb/curator/pkg/config"
	"github.com/kurtb/curator/pkg/dedup"
	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/exploder"
	"github.com/kurtb/curator/pkg/feedback"
	"github.com/kurtb/curator/pkg/ledger"
	"github.com/kurtb/curator/pkg/llm"
	"github.com/kurtb/curator/pkg/pipeline"
	"github.com/kurtb/curator/pkg/router"
	"github.com/kurtb/curator/pkg/scorer"
)

// Opts with all CLI options
type Opts struct {
	Config  string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"configuration file"`
	Debug   bool   `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool   `short:"V" long:"version" description:"show version info"`
	NoColor bool   `long:"no-color" env:"NO_COLOR" description:"disable color output"`

	RunCmd       RunCommand       `command:"run" description:"execute one curation run"`
	WriteCmd     WriteCommand     `command:"write" description:"write accepted items to the catalog"`
	DecideCmd    DecideCommand    `command:"decide" description:"record a review decision on an item"`
	ProposalsCmd ProposalsCommand `command:"proposals" description:"print rule proposals mined from feedback"`
	StatsCmd     StatsCommand     `command:"stats" description:"print ledger and feedback stats"`
	CleanupCmd   CleanupCommand   `command:"cleanup" description:"delete old rejected and skipped items"`
}

var revision = "unknown"

var opts Opts

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		setupLog(opts.Debug)
		log.Printf("[INFO] curator version %s", revision)
		return command.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if opts.Version {
			fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// mainCtx returns a context cancelled on termination signals
func mainCtx() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()
	return ctx, cancel
}

// openLedger loads config and opens the run ledger, shared by all commands
func openLedger() (*config.Config, *ledger.Store, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := ledger.New(ledger.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return cfg, store, nil
}

// RunCommand executes one full curation run over an inbox export
type RunCommand struct {
	Input   string `long:"input" env:"INPUT" required:"true" description:"inbox export file (json)"`
	Catalog string `long:"catalog" env:"CATALOG" default:"catalog.json" description:"catalog snapshot file (json)"`
}

// Execute runs the pipeline
func (c *RunCommand) Execute(_ []string) error {
	ctx, cancel := mainCtx()
	defer cancel()

	cfg, store, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] ledger close failed: %v", err)
		}
	}()

	provider, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("create model backend: %w", err)
	}

	catStore, err := catalog.NewFileStore(c.Catalog)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	cache := dedup.NewCache(cfg.Dedup.CacheFile, cfg.Dedup.CacheMaxAge)
	index := dedup.NewIndex(catStore, cache)

	// preload so the exploder pre-filter sees existing entries; routing
	// rebuilds fresh inside the pipeline regardless
	if err := index.Load(ctx); err != nil {
		return fmt.Errorf("load dedup index: %w", err)
	}

	proc := feedback.New(store, cfg.Feedback)
	examples, err := proc.FormatExamples(ctx, nil, cfg.Scoring.FeedbackExamples)
	if err != nil {
		return fmt.Errorf("format feedback examples: %w", err)
	}
	if examples != "" {
		log.Printf("[INFO] injecting feedback examples into the scoring prompt")
	}

	params := pipeline.Params{
		Inbox:  &fileInbox{path: c.Input},
		Scorer: scorer.New(provider, cfg.Scoring, cfg.LLM, examples),
		Dedup:  index,
		Router: router.New(index, cfg.Dedup.Threshold),
		Ledger: store,
	}
	if cfg.Exploder.Enabled {
		params.Exploder = exploder.New(provider, cfg.Exploder, index, cfg.Dedup.Threshold)
	}

	res, err := pipeline.New(params).Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	fmt.Printf("run %d: %d extracted, %d scored, %d proposed, %d skipped\n",
		res.RunID, res.ItemsExtracted, res.ItemsScored, res.ItemsProposed, res.ItemsSkipped)
	return nil
}

// WriteCommand writes accepted items of a run back to the catalog
type WriteCommand struct {
	RunID   int64  `long:"run-id" description:"run to write, defaults to the latest"`
	Catalog string `long:"catalog" env:"CATALOG" default:"catalog.json" description:"catalog snapshot file (json)"`
}

// Execute performs the write-back
func (c *WriteCommand) Execute(_ []string) error {
	ctx, cancel := mainCtx()
	defer cancel()

	cfg, store, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] ledger close failed: %v", err)
		}
	}()

	runID := c.RunID
	if runID == 0 {
		latest, err := store.LatestRun(ctx)
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("no runs in the ledger")
		}
		runID = latest.ID
	}

	catStore, err := catalog.NewFileStore(c.Catalog)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	cache := dedup.NewCache(cfg.Dedup.CacheFile, cfg.Dedup.CacheMaxAge)
	index := dedup.NewIndex(catStore, cache)
	if err := index.Load(ctx); err != nil {
		return fmt.Errorf("load dedup index: %w", err)
	}

	writer := catalog.NewWriter(catStore, store, index)
	res, err := writer.WriteBatch(ctx, runID)
	if err != nil {
		return err
	}

	// new entries exist now, a cached index is stale
	index.Invalidate()

	fmt.Printf("run %d: %d created, %d updated, %d failed\n", runID, res.Created, res.Updated, res.Failed)
	for _, e := range res.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	return nil
}

// DecideCommand records an accept/reject decision on one item
type DecideCommand struct {
	ItemID   int64  `long:"item" required:"true" description:"item id"`
	Decision string `long:"decision" required:"true" choice:"accepted" choice:"rejected" description:"review decision"`
	Reason   string `long:"reason" description:"optional override explanation"`
}

// Execute stores the decision and its feedback row
func (c *DecideCommand) Execute(_ []string) error {
	ctx, cancel := mainCtx()
	defer cancel()

	_, store, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] ledger close failed: %v", err)
		}
	}()

	if err := store.SetDecision(ctx, c.ItemID, domain.Decision(c.Decision), c.Reason); err != nil {
		return err
	}
	fmt.Printf("item %d: %s\n", c.ItemID, c.Decision)
	return nil
}

// ProposalsCommand prints rule proposals mined from review feedback
type ProposalsCommand struct{}

// Execute prints the proposals
func (c *ProposalsCommand) Execute(_ []string) error {
	ctx, cancel := mainCtx()
	defer cancel()

	cfg, store, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] ledger close failed: %v", err)
		}
	}()

	proc := feedback.New(store, cfg.Feedback)
	proposals, err := proc.GetRuleProposals(ctx)
	if err != nil {
		return err
	}

	if len(proposals) == 0 {
		fmt.Println("no rule proposals, not enough consistent feedback yet")
		return nil
	}
	for i, p := range proposals {
		fmt.Printf("%d. [%s] %s\n", i+1, p.Type, p.Proposal)
		fmt.Printf("   evidence: %d overrides, e.g. %v\n", p.EvidenceCount, p.Examples)
	}
	return nil
}

// StatsCommand prints ledger and feedback stats
type StatsCommand struct{}

// Execute prints the stats
func (c *StatsCommand) Execute(_ []string) error {
	ctx, cancel := mainCtx()
	defer cancel()

	cfg, store, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] ledger close failed: %v", err)
		}
	}()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("runs: %d\nitems: %d\nproposed: %d\nskipped: %d\nreviewed: %d\naccepted: %d\nrejected: %d\nfeedback: %d\n",
		stats.TotalRuns, stats.TotalItems, stats.Proposed, stats.Skipped,
		stats.Reviewed, stats.Accepted, stats.Rejected, stats.FeedbackEntries)

	proc := feedback.New(store, cfg.Feedback)
	fstats, err := proc.GetStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("overrides: %d\npatterns: %d\nproposals: %d\n",
		fstats.TotalOverrides, fstats.PatternsDetected, fstats.RuleProposals)
	return nil
}

// CleanupCommand deletes old rejected and skipped items, feedback history stays
type CleanupCommand struct {
	Days int `long:"days" default:"30" description:"delete items older than this many days"`
}

// Execute performs the cleanup
func (c *CleanupCommand) Execute(_ []string) error {
	ctx, cancel := mainCtx()
	defer cancel()

	_, store, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] ledger close failed: %v", err)
		}
	}()

	n, err := store.CleanupOldItems(ctx, c.Days)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d items\n", n)
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !opts.NoColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
