package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/paulschiretz/pgl-copy/pkg/buildinfo"
	"github.com/paulschiretz/pgl-copy/pkg/config"
	"github.com/paulschiretz/pgl-copy/pkg/ignore"
	"github.com/paulschiretz/pgl-copy/pkg/pathcompress"
	"github.com/paulschiretz/pgl-copy/pkg/pathcopy"
	"github.com/paulschiretz/pgl-copy/pkg/plog"
	"github.com/paulschiretz/pgl-copy/pkg/preflight"
	"github.com/paulschiretz/pgl-copy/pkg/util"
)

// progressInterval is how often the running counters are logged during the
// copy phase.
const progressInterval = 2 * time.Second

// action defines a special command to execute instead of a copy.
type action int

const (
	actionRunCopy action = iota // The default action is to run a copy.
	actionShowVersion
	actionInitConfig
)

// init is called before main. We use it to set up a custom, more descriptive
// help message for the command-line flags.
func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s (version %s):\n", buildinfo.Name, buildinfo.Version)
		fmt.Fprintf(flag.CommandLine.Output(), "A parallel one-shot directory tree copier.\n\n")
		flag.PrintDefaults()
	}
}

// parseFlagConfig defines and parses command-line flags, and returns the set
// of flags the user explicitly provided so they can be merged over the
// loaded configuration.
func parseFlagConfig() (action, map[string]any, error) {
	// --- Flag Design Philosophy ---
	// Flags are exposed for options that are useful to override for a single
	// run. Options that define the long-term behavior of a copy job (ignore
	// names, archive policy) are better set in pgl-copy.config.json so that
	// repeated runs behave predictably.

	srcFlag := flag.String("source", "", "Source directory to copy from")
	targetFlag := flag.String("target", "", "Destination directory to copy into")
	logLevelFlag := flag.String("log-level", "", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	workersFlag := flag.Int("workers", 0, "Number of copy worker goroutines. 0 selects the host CPU count.")
	largeFileThresholdFlag := flag.Int("large-file-threshold-mb", 0, "Files above this size in MB use the streaming copy path.")
	bufferSizeKBFlag := flag.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for streaming copies.")
	retryCountFlag := flag.Int("retry-count", 0, "Number of retries for failed file copies.")
	retryWaitFlag := flag.Int("retry-wait", 0, "Seconds to wait between retries.")
	ignoreFileFlag := flag.String("ignore-file", "", "Path to an ignore pattern file. Defaults to "+ignore.IgnoreFileName+" in the source directory.")
	archiveFlag := flag.Bool("archive", false, "Pack the copied tree into a compressed archive after the copy.")
	archiveFormatFlag := flag.String("archive-format", "", "Archive format: 'tar.gz' or 'tar.zst'.")
	initFlag := flag.Bool("init", false, "Generate a default "+config.ConfigFileName+" file in the source directory and exit.")
	versionFlag := flag.Bool("version", false, "Print the application version and exit.")
	flag.Parse()

	usedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)
	addIfUsed := func(name string, value any) {
		if usedFlags[name] {
			flagMap[name] = value
		}
	}

	addIfUsed("source", *srcFlag)
	addIfUsed("target", *targetFlag)
	addIfUsed("log-level", *logLevelFlag)
	addIfUsed("workers", *workersFlag)
	addIfUsed("large-file-threshold-mb", *largeFileThresholdFlag)
	addIfUsed("buffer-size-kb", *bufferSizeKBFlag)
	addIfUsed("retry-count", *retryCountFlag)
	addIfUsed("retry-wait", *retryWaitFlag)
	addIfUsed("ignore-file", *ignoreFileFlag)
	addIfUsed("archive", *archiveFlag)

	if usedFlags["archive-format"] {
		format, err := pathcompress.ParseFormat(*archiveFormatFlag)
		if err != nil {
			return actionRunCopy, nil, err
		}
		flagMap["archive-format"] = format
	}

	if *versionFlag {
		return actionShowVersion, flagMap, nil
	}
	if *initFlag {
		return actionInitConfig, flagMap, nil
	}
	return actionRunCopy, flagMap, nil
}

// mergeConfigWithFlags overlays explicitly provided flag values onto the
// loaded configuration.
func mergeConfigWithFlags(cfg config.Config, flagMap map[string]any) config.Config {
	if v, ok := flagMap["source"]; ok {
		cfg.Source = v.(string)
	}
	if v, ok := flagMap["target"]; ok {
		cfg.Target = v.(string)
	}
	if v, ok := flagMap["log-level"]; ok {
		cfg.LogLevel = v.(string)
	}
	if v, ok := flagMap["workers"]; ok {
		cfg.Perf.Workers = v.(int)
	}
	if v, ok := flagMap["large-file-threshold-mb"]; ok {
		cfg.Perf.LargeFileThresholdMB = v.(int)
	}
	if v, ok := flagMap["buffer-size-kb"]; ok {
		cfg.Perf.BufferSizeKB = v.(int)
	}
	if v, ok := flagMap["retry-count"]; ok {
		cfg.Perf.RetryCount = v.(int)
	}
	if v, ok := flagMap["retry-wait"]; ok {
		cfg.Perf.RetryWaitSeconds = v.(int)
	}
	if v, ok := flagMap["archive"]; ok {
		cfg.Archive.Enabled = v.(bool)
	}
	if v, ok := flagMap["archive-format"]; ok {
		cfg.Archive.Format = v.(pathcompress.Format).String()
	}
	return cfg
}

// runInit handles the logic for the 'init' action.
func runInit(flagMap map[string]any) error {
	sourceDir, ok := flagMap["source"].(string)
	if !ok || sourceDir == "" {
		return fmt.Errorf("the -source flag is required for the init operation")
	}
	sourceDir, err := util.ExpandPath(sourceDir)
	if err != nil {
		return fmt.Errorf("could not expand source path: %w", err)
	}
	return config.Generate(config.NewDefault(), sourceDir)
}

// buildIgnorePredicate loads the pattern file and compiles the final
// predicate for the run. The configuration file and the ignore file are
// always excluded so a copy never duplicates its own control files.
func buildIgnorePredicate(cfg config.Config, flagMap map[string]any) (ignore.Predicate, error) {
	ignoreFilePath := filepath.Join(cfg.Source, ignore.IgnoreFileName)
	if v, ok := flagMap["ignore-file"]; ok && v.(string) != "" {
		ignoreFilePath = v.(string)
	}

	filePatterns, err := ignore.LoadPatterns(ignoreFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore patterns from %s: %w", ignoreFilePath, err)
	}

	patterns := util.MergeAndDeduplicate(cfg.Ignore.Patterns, filePatterns)
	patterns = util.MergeAndDeduplicate(patterns, []string{config.ConfigFileName, ignore.IgnoreFileName})
	return ignore.Compile(cfg.Ignore.Names, patterns), nil
}

// runCopy handles the main copy action.
func runCopy(ctx context.Context, flagMap map[string]any) error {
	sourceDir, _ := flagMap["source"].(string)
	if sourceDir == "" {
		return fmt.Errorf("the -source flag is required to run a copy")
	}

	loadedConfig, err := config.Load(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration from source: %w", err)
	}

	cfg := mergeConfigWithFlags(loadedConfig, flagMap)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if level, err := plog.ParseLevel(cfg.LogLevel); err == nil {
		plog.SetLevel(level)
	} else {
		return err
	}

	// Preflight: fail with a clear message before any worker touches the
	// destination.
	if err := preflight.CheckSourceAccessible(cfg.Source); err != nil {
		return err
	}
	if err := preflight.CheckNotNested(cfg.Source, cfg.Target); err != nil {
		return err
	}
	if err := preflight.CheckTargetAccessible(cfg.Target); err != nil {
		return err
	}
	if err := preflight.CheckTargetWritable(cfg.Target); err != nil {
		return err
	}
	required := preflight.MeasureTreeSize(cfg.Source)
	if err := preflight.CheckFreeSpace(cfg.Target, required); err != nil {
		return err
	}
	plog.Info("Preflight checks passed", "source", cfg.Source, "target", cfg.Target, "sourceSize", util.ByteCountIEC(required))

	shouldIgnore, err := buildIgnorePredicate(cfg, flagMap)
	if err != nil {
		return err
	}

	runner, err := pathcopy.NewRunner(pathcopy.Plan{
		AbsSourcePath:      cfg.Source,
		AbsTargetPath:      cfg.Target,
		ShouldIgnore:       shouldIgnore,
		Workers:            cfg.Perf.Workers,
		LargeFileThreshold: cfg.LargeFileThreshold(),
		BufferSize:         cfg.BufferSize(),
		RetryCount:         cfg.Perf.RetryCount,
		RetryWait:          cfg.RetryWait(),
	})
	if err != nil {
		return err
	}

	// Log progress on a ticker while the run is in flight. Snapshots never
	// block the workers.
	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				snap := runner.Progress().Snapshot()
				plog.Info("Progress", "state", runner.State(), "copied", snap.Copied, "skipped", snap.Skipped, "total", snap.Total)
			}
		}
	}()

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	stopProgress()

	plog.Info("Copy finished",
		"total", summary.TotalFiles,
		"copied", summary.CopiedCount,
		"skipped", summary.SkippedCount,
		"duration", summary.Elapsed.Round(time.Millisecond))
	for _, detail := range summary.SkippedDetails {
		plog.Warn("Skipped file", "path", detail.RelPathKey, "reason", detail.Reason)
	}

	if cfg.Archive.Enabled && summary.Complete() {
		format, err := pathcompress.ParseFormat(cfg.Archive.Format)
		if err != nil {
			return err
		}
		archivePath := cfg.Target + format.Extension()
		if err := pathcompress.Compress(ctx, format, cfg.Target, archivePath); err != nil {
			return fmt.Errorf("failed to archive copied tree: %w", err)
		}
		plog.Info("Archive written", "path", archivePath)
	} else if cfg.Archive.Enabled {
		plog.Warn("Skipping archive step for a degraded run")
	}

	if !summary.Complete() {
		return fmt.Errorf("copy halted early: %d of %d files unprocessed",
			summary.TotalFiles-summary.CopiedCount-summary.SkippedCount, summary.TotalFiles)
	}
	return nil
}

// run encapsulates the main application logic and returns an error if
// something goes wrong, allowing the main function to handle exit codes.
func run(ctx context.Context) error {
	plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())

	action, flagMap, err := parseFlagConfig()
	if err != nil {
		return err
	}

	switch action {
	case actionShowVersion:
		fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
		return nil
	case actionInitConfig:
		return runInit(flagMap)
	case actionRunCopy:
		return runCopy(ctx, flagMap)
	default:
		return fmt.Errorf("internal error: unknown action %d", action)
	}
}

func main() {
	// Set up a context that is canceled when an interrupt signal is received.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx); err != nil {
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
