package main

import (
	"fmt"
	"time"

	"github.com/nao1215/sitesift/internal/config"
	"github.com/spf13/cobra"
)

// addCrawlFlags registers the flags of the crawl stage.
func addCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("seeds", "s", "", "Seed file: one URL per line, or a CSV/TSV table with a URL column")
	f.String("seed-column", config.DefaultSeedColumn, "Header of the URL column in tabular seed files")
	f.StringP("locale", "l", config.DefaultLocale, "Only crawl subpages of this locale (empty: every same-site page)")
	f.String("strategy", config.DefaultStrategy, "Fetch strategy: http or browser (headless Chrome)")
	f.String("browser-bin", "", "Chrome binary for the browser strategy")
	f.String("browser-url", "", "Use a running Chrome (ws://... or http://host:9222) instead of launching one")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	f.Duration("delay", config.DefaultCrawlDelay, "Minimum interval between requests to the same host")
	f.IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of pages fetched in one run (0: default)")
	f.Duration("max-duration", 0, "Stop crawling after this long and keep what was fetched (0: no limit)")
	f.IntP("workers", "w", config.DefaultWorkers, "Number of seeds crawled at once")
	f.Int("retries", config.DefaultFetchRetries, "Retries for throttled fetches (429/503)")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent sent with crawl requests")
	f.Bool("insecure", false, "Skip TLS certificate verification while crawling")
	f.Bool("respect-robots", false, "Skip URLs disallowed by robots.txt")
	f.Bool("resume", false, "Keep seeds already present in the crawl output and crawl the rest")
	f.Duration("skip-recent", 0, "Skip seeds archived within this duration")
}

// addCleanFlags registers the flags of the clean stage.
func addCleanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("similarity", config.DefaultSimilarityThreshold, "Jaccard similarity at which two subpages of a seed are near-duplicates")
	f.String("dedup-scope", config.DefaultDedupScope, "Exact-duplicate scope: global or domain")
	f.Int("min-words", config.DefaultMinWords, "Drop subpages with fewer words")
}

// addKeywordFlags registers the keyword source flags.
func addKeywordFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("keywords", "k", "", "Keyword file with \"Group keyword_with_underscores\" lines")
	f.String("keyword-format", "", "Keyword line order: group-first (default) or term-first")
}

// addFilterFlags registers the flags of the relevance filter.
func addFilterFlags(cmd *cobra.Command) {
	addKeywordFlags(cmd)
	f := cmd.Flags()
	f.String("target-lang", config.DefaultTargetLanguage, "Language of the sentences to keep (ISO 639-1)")
	f.String("fallback-lang", config.DefaultFallbackLanguage, "Language assumed when detection fails")
	f.Bool("stem", false, "Reduce kept sentences to Snowball word stems")
	f.Float64("min-confidence", 0, "Treat language guesses below this confidence (0-1) as undetected")
}

// addTranslateFlags registers the flags of the translation stage.
func addTranslateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", config.DefaultTranslateBackend, "Translation backend: libre or deepl")
	f.String("translate-url", config.DefaultTranslateURL, "Translation backend URL (DeepL picks its endpoint from the key)")
	f.String("source-lang", config.DefaultSourceLanguage, "Language translated from")
	f.String("dest-lang", config.DefaultDestLanguage, "Language translated to")
	f.Int("chunk-size", config.DefaultChunkSize, "Maximum characters per translation request")
	f.Int("cooldown-every", config.DefaultCooldownEvery, "Pause after this many chunks (0: never)")
	f.Duration("cooldown", config.DefaultCooldown, "Length of the pause")
	f.Duration("backoff-base", config.DefaultBackoffBase, "First wait after a rate-limit response")
	f.Duration("backoff-cap", config.DefaultBackoffCap, "Longest wait between rate-limit retries")
	f.Float64("backoff-jitter", 0, "Random spread of each wait, as a fraction in [0,1]")
	f.String("checkpoint", config.DefaultCheckpointPath(), "Translation checkpoint file")
}

// addInputFlags registers the flags of stages that read a crawl result.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "Crawl result JSON to read (- for stdin)")
	f.String("from-run", "", "Read the pages archived by this run instead of --input")
}

// addOutputFlags registers the result and summary flags.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output", "o", "", "Write the result JSON to this file (default: stdout)")
	addReportFlags(cmd)
}

// addReportFlags registers the summary flags.
func addReportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("report", "", "Write the summary to this file (default: stderr)")
	f.BoolP("markdown", "m", false, "Write the summary as Markdown (mutually exclusive with --json)")
	f.BoolP("json", "j", false, "Write the summary as JSON (mutually exclusive with --markdown)")
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")
}

// flagReader copies flags into a Config. Flags the command does not define,
// and flags the user did not set, leave the Config untouched, so values from
// the config file and the environment survive.
type flagReader struct {
	cmd *cobra.Command
	err error
}

func (r *flagReader) set(name string) bool {
	if r.err != nil {
		return false
	}
	f := r.cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func (r *flagReader) fail(name string, err error) {
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("flag --%s: %w", name, err)
	}
}

func (r *flagReader) str(name string, dst *string) {
	if r.set(name) {
		v, err := r.cmd.Flags().GetString(name)
		r.fail(name, err)
		*dst = v
	}
}

func (r *flagReader) boolean(name string, dst *bool) {
	if r.set(name) {
		v, err := r.cmd.Flags().GetBool(name)
		r.fail(name, err)
		*dst = v
	}
}

func (r *flagReader) integer(name string, dst *int) {
	if r.set(name) {
		v, err := r.cmd.Flags().GetInt(name)
		r.fail(name, err)
		*dst = v
	}
}

func (r *flagReader) float(name string, dst *float64) {
	if r.set(name) {
		v, err := r.cmd.Flags().GetFloat64(name)
		r.fail(name, err)
		*dst = v
	}
}

func (r *flagReader) duration(name string, dst *time.Duration) {
	if r.set(name) {
		v, err := r.cmd.Flags().GetDuration(name)
		r.fail(name, err)
		*dst = v
	}
}

// flagString returns the value of a string flag, or "" when the command
// does not define it.
func flagString(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return v
}

// flagBool returns the value of a bool flag, or false when the command does
// not define it.
func flagBool(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil {
		return false
	}
	v, err := cmd.Flags().GetBool(name)
	return err == nil && v
}

// buildConfig creates a Config from defaults, the .sitesift file, the
// environment and finally the command's flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.ConfigFilePath = flagString(cmd, "config")

	// An explicit config path must exist; a missing default file is fine.
	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		cf, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cf.Apply(cfg)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	var envFiles []string
	if f := flagString(cmd, "env-file"); f != "" {
		envFiles = append(envFiles, f)
	}
	if err := config.LoadEnv(cfg, envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	r := &flagReader{cmd: cmd}
	r.boolean("verbose", &cfg.Verbose)

	r.str("seeds", &cfg.SeedFile)
	r.str("seed-column", &cfg.SeedColumn)
	r.str("locale", &cfg.Locale)
	r.str("strategy", &cfg.Strategy)
	r.str("browser-bin", &cfg.BrowserBin)
	r.str("browser-url", &cfg.BrowserURL)
	r.duration("timeout", &cfg.Timeout)
	r.duration("delay", &cfg.CrawlDelay)
	r.integer("max-pages", &cfg.MaxPages)
	r.duration("max-duration", &cfg.MaxDuration)
	r.integer("workers", &cfg.Workers)
	r.integer("retries", &cfg.FetchRetries)
	r.str("user-agent", &cfg.UserAgent)
	r.boolean("insecure", &cfg.InsecureTLS)
	r.boolean("respect-robots", &cfg.RespectRobots)
	r.boolean("resume", &cfg.Resume)
	r.duration("skip-recent", &cfg.SkipRecent)
	r.str("crawl-output", &cfg.CrawlOutputPath)

	r.float("similarity", &cfg.SimilarityThreshold)
	r.str("dedup-scope", &cfg.DedupScope)
	r.integer("min-words", &cfg.MinWords)

	r.str("keywords", &cfg.KeywordFile)
	r.str("keyword-format", &cfg.KeywordFormat)
	r.str("target-lang", &cfg.TargetLanguage)
	r.str("fallback-lang", &cfg.FallbackLanguage)
	r.boolean("stem", &cfg.Stem)
	r.float("min-confidence", &cfg.MinLanguageConfidence)

	r.str("backend", &cfg.TranslateBackend)
	r.str("translate-url", &cfg.TranslateURL)
	r.str("source-lang", &cfg.SourceLanguage)
	r.str("dest-lang", &cfg.DestLanguage)
	r.integer("chunk-size", &cfg.ChunkSize)
	r.integer("cooldown-every", &cfg.CooldownEvery)
	r.duration("cooldown", &cfg.Cooldown)
	r.duration("backoff-base", &cfg.BackoffBase)
	r.duration("backoff-cap", &cfg.BackoffCap)
	r.float("backoff-jitter", &cfg.BackoffJitter)
	r.str("checkpoint", &cfg.CheckpointPath)

	r.str("input", &cfg.InputPath)
	r.str("output", &cfg.OutputPath)
	r.str("report", &cfg.ReportFile)
	r.boolean("markdown", &cfg.MarkdownReport)
	r.boolean("json", &cfg.JSONReport)
	if r.err != nil {
		return nil, r.err
	}

	cfg.SaveToDB = !flagBool(cmd, "no-db")
	cfg.DBDir = flagString(cmd, "db-dir")
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Seeds = args
	return cfg, nil
}
