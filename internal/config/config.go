package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory paths and the config file name.
	AppName = "sitesift"

	// DefaultTimeout bounds one page fetch or one translation request.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the minimum interval between two requests to the
	// same host. Company sites are small and often shared-hosted, so the
	// crawler stays slow.
	DefaultCrawlDelay = 12 * time.Second

	// DefaultMaxPages caps the pages fetched in one crawl run.
	DefaultMaxPages = 5000

	// DefaultWorkers is the number of seeds crawled at once. One worker keeps
	// the crawl strictly sequential.
	DefaultWorkers = 1

	// DefaultFetchRetries is how many times a throttled fetch (429/503) is
	// retried before the page is recorded as empty.
	DefaultFetchRetries = 2

	// DefaultUserAgent is a browser-like User-Agent. Several company sites
	// reject obvious bot agents outright.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultLocale selects subpages whose path or host carries this locale.
	DefaultLocale = "fi"

	// DefaultStrategy fetches pages with a plain HTTP client.
	DefaultStrategy = StrategyHTTP

	// DefaultSeedColumn is the header of the URL column in tabular seed files.
	DefaultSeedColumn = "URL"

	// DefaultSimilarityThreshold is the Jaccard similarity at or above which
	// two subpages of one seed count as near-duplicates.
	DefaultSimilarityThreshold = 0.80

	// DefaultDedupScope is the scope of exact-duplicate removal.
	DefaultDedupScope = DedupGlobal

	// DefaultMinWords drops pages with fewer normalized words.
	DefaultMinWords = 5

	// DefaultTargetLanguage is the language kept by the relevance filter.
	DefaultTargetLanguage = "fi"

	// DefaultFallbackLanguage is assumed when detection fails.
	DefaultFallbackLanguage = "fi"

	// DefaultTranslateBackend is the LibreTranslate-compatible JSON API.
	DefaultTranslateBackend = BackendLibre

	// DefaultTranslateURL is a local LibreTranslate instance.
	DefaultTranslateURL = "http://127.0.0.1:5000"

	// DefaultSourceLanguage and DefaultDestLanguage are the translation pair.
	DefaultSourceLanguage = "fi"
	DefaultDestLanguage   = "en"

	// DefaultChunkSize is the maximum number of characters sent per request.
	DefaultChunkSize = 4500

	// DefaultCooldownEvery is the number of chunks translated between two
	// cool-down pauses (requests-per-minute budget).
	DefaultCooldownEvery = 50

	// DefaultCooldown is the pause after every DefaultCooldownEvery chunks.
	DefaultCooldown = 60 * time.Second

	// DefaultBackoffBase is the first wait after a rate-limit response.
	DefaultBackoffBase = 30 * time.Second

	// DefaultBackoffCap bounds the wait between rate-limit retries.
	DefaultBackoffCap = time.Hour

	// DefaultBackoffMultiplier grows the wait after each consecutive
	// rate-limit response.
	DefaultBackoffMultiplier = 2.0
)

// Fetch strategies.
const (
	// StrategyHTTP uses a plain HTTP client. Fast, but page scripts do not run.
	StrategyHTTP = "http"
	// StrategyBrowser renders pages in headless Chrome and waits for the
	// network to go idle.
	StrategyBrowser = "browser"
)

// Exact-duplicate scopes.
const (
	// DedupGlobal drops a page whose text already appeared under any seed.
	DedupGlobal = "global"
	// DedupDomain drops a page only when its text appeared under the same seed.
	DedupDomain = "domain"
)

// Translation backends.
const (
	// BackendLibre speaks the LibreTranslate /translate JSON API.
	BackendLibre = "libre"
	// BackendDeepL speaks the DeepL v2 API.
	BackendDeepL = "deepl"
)

// DefaultErrorPhrases mark soft error pages that return 200. They match as
// substrings, so a bare "404" would also hit phone numbers like 0404.
var DefaultErrorPhrases = []string{
	"page not found",
	"error 404",
	"404 not found",
	"virhe 404",
	"service unavailable",
	"sivua ei löytynyt",
	"sivua ei löydy",
	"access denied",
	"internal server error",
}

// DefaultBoilerplatePhrases are removed from every page before deduplication.
var DefaultBoilerplatePhrases = []string{
	"all rights reserved",
	"kaikki oikeudet pidätetään",
	"accept cookies",
	"hyväksy evästeet",
	"skip to content",
	"siirry sisältöön",
}

// Config holds every option of a sitesift run. It is filled from defaults,
// the .sitesift file, the environment and CLI flags, then passed down
// explicitly; no package reads global state.
type Config struct {
	// Seeds are raw seed URLs given on the command line.
	Seeds []string

	// SeedFile is a seed list: one URL per line, or a CSV/TSV table.
	SeedFile string

	// SeedColumn is the URL column header in tabular seed files.
	SeedColumn string

	// InputPath is the CrawlResult JSON read by clean, filter and translate.
	InputPath string

	// OutputPath is where the stage writes its CrawlResult JSON.
	// Empty means stdout.
	OutputPath string

	// CheckpointPath is the translation checkpoint file.
	CheckpointPath string

	// Resume keeps subpages already present in CrawlOutputPath and does not fetch
	// them again.
	Resume bool

	// Locale restricts discovered subpages (path contains /<locale>/, path
	// ends with /<locale>, or host contains .<locale>). Empty accepts every
	// same-host link.
	Locale string

	// Strategy is StrategyHTTP or StrategyBrowser.
	Strategy string

	// BrowserBin is an optional Chrome binary for StrategyBrowser. When empty
	// the launcher downloads or finds one.
	BrowserBin string

	// BrowserURL connects the browser strategy to a running Chrome
	// (DevTools ws:// URL or http://host:port) instead of launching one.
	BrowserURL string

	// Timeout bounds one fetch or translation request.
	Timeout time.Duration

	// CrawlDelay is the minimum interval between requests to one host.
	CrawlDelay time.Duration

	// MaxPages caps the pages fetched in one run. Zero means DefaultMaxPages.
	MaxPages int

	// MaxDuration is the elapsed-time budget of a crawl. Zero disables it.
	MaxDuration time.Duration

	// Workers is the number of seeds crawled concurrently.
	Workers int

	// FetchRetries is how often a throttled fetch is retried.
	FetchRetries int

	// UserAgent is sent with every crawl request.
	UserAgent string

	// InsecureTLS disables certificate verification for crawling only.
	// Translation requests always verify certificates.
	InsecureTLS bool

	// MaxBodySize is the maximum response body size read.
	MaxBodySize int64

	// RespectRobots skips URLs disallowed by the host's robots.txt.
	RespectRobots bool

	// SimilarityThreshold is the near-duplicate Jaccard threshold in [0,1].
	SimilarityThreshold float64

	// DedupScope is DedupGlobal or DedupDomain.
	DedupScope string

	// MinWords drops pages with fewer normalized words.
	MinWords int

	// ErrorPhrases mark soft error pages (case-insensitive substrings).
	ErrorPhrases []string

	// BoilerplatePhrases are removed as whole words, case-insensitively.
	BoilerplatePhrases []string

	// KeywordFile lists "Group keyword_with_underscores" lines.
	KeywordFile string

	// TargetLanguage is the ISO 639-1 language kept by the relevance filter.
	TargetLanguage string

	// FallbackLanguage is used when language detection fails.
	FallbackLanguage string

	// Stem reduces retained sentences to word stems.
	Stem bool

	// MinLanguageConfidence rejects language guesses below this confidence,
	// so the fallback language applies. Zero accepts every guess.
	MinLanguageConfidence float64

	// TranslateBackend is BackendLibre or BackendDeepL.
	TranslateBackend string

	// TranslateURL is the backend base URL.
	TranslateURL string

	// TranslateAPIKey authenticates with the backend. It is read from the
	// environment and never from the config file.
	TranslateAPIKey string

	// SourceLanguage and DestLanguage are the translation pair.
	SourceLanguage string
	DestLanguage   string

	// ChunkSize is the maximum characters per translation request.
	ChunkSize int

	// CooldownEvery is the number of chunks between cool-down pauses.
	CooldownEvery int

	// Cooldown is the pause length.
	Cooldown time.Duration

	// BackoffBase and BackoffCap bound the rate-limit backoff.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// BackoffJitter adds up to this fraction of random delay to each backoff.
	BackoffJitter float64

	// DBDir is the directory holding the crawl archive. Empty disables it.
	DBDir string

	// SaveToDB records fetched pages and runs in the archive.
	SaveToDB bool

	// ReportFile receives the run summary. Empty means stderr.
	ReportFile string

	// MarkdownReport writes the summary as Markdown.
	MarkdownReport bool

	// JSONReport writes the summary as JSON.
	JSONReport bool

	// CrawlOutputPath receives the raw crawl result after every seed, so an
	// interrupted crawl can resume from it. Empty disables the flush.
	CrawlOutputPath string

	// SkipRecent skips seeds archived within this duration. Zero disables it.
	SkipRecent time.Duration

	// KeywordFormat is the column order of KeywordFile lines.
	KeywordFormat string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit .sitesift path.
	ConfigFilePath string

	// SiteConfigs holds the parsed .sitesift file.
	SiteConfigs *File
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		SeedColumn:          DefaultSeedColumn,
		CheckpointPath:      DefaultCheckpointPath(),
		Locale:              DefaultLocale,
		Strategy:            DefaultStrategy,
		Timeout:             DefaultTimeout,
		CrawlDelay:          DefaultCrawlDelay,
		MaxPages:            DefaultMaxPages,
		Workers:             DefaultWorkers,
		FetchRetries:        DefaultFetchRetries,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		SimilarityThreshold: DefaultSimilarityThreshold,
		DedupScope:          DefaultDedupScope,
		MinWords:            DefaultMinWords,
		ErrorPhrases:        slices.Clone(DefaultErrorPhrases),
		BoilerplatePhrases:  slices.Clone(DefaultBoilerplatePhrases),
		TargetLanguage:      DefaultTargetLanguage,
		FallbackLanguage:    DefaultFallbackLanguage,
		TranslateBackend:    DefaultTranslateBackend,
		TranslateURL:        DefaultTranslateURL,
		SourceLanguage:      DefaultSourceLanguage,
		DestLanguage:        DefaultDestLanguage,
		ChunkSize:           DefaultChunkSize,
		CooldownEvery:       DefaultCooldownEvery,
		Cooldown:            DefaultCooldown,
		BackoffBase:         DefaultBackoffBase,
		BackoffCap:          DefaultBackoffCap,
	}
}

// XDGDataDir returns the data directory (~/.local/share/sitesift on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory (~/.config/sitesift on Linux).
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the cache directory (~/.cache/sitesift on Linux).
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DefaultCheckpointPath is the translation checkpoint under the cache dir.
func DefaultCheckpointPath() string {
	return filepath.Join(XDGCacheDir(), "checkpoint.json")
}

// Validate checks the options shared by every stage and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDuration < 0 {
		return ErrInvalidMaxDuration
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.FetchRetries < 0 {
		return ErrInvalidFetchRetries
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Strategy != StrategyHTTP && c.Strategy != StrategyBrowser {
		return ErrInvalidStrategy
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return ErrInvalidThreshold
	}
	if c.DedupScope != DedupGlobal && c.DedupScope != DedupDomain {
		return ErrInvalidDedupScope
	}
	if c.MinWords < 0 {
		return ErrInvalidMinWords
	}
	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}
	if c.Resume && c.CrawlOutputPath == "" {
		return ErrResumeWithoutOutput
	}
	if c.TargetLanguage == "" || c.FallbackLanguage == "" {
		return ErrInvalidLanguage
	}
	if c.MinLanguageConfidence < 0 || c.MinLanguageConfidence > 1 {
		return ErrInvalidMinConfidence
	}
	if c.BrowserURL != "" && !validBrowserURL(c.BrowserURL) {
		return ErrInvalidBrowserURL
	}
	return nil
}

func validBrowserURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
		return true
	}
	return false
}

// ValidateCrawl additionally requires at least one seed.
func (c *Config) ValidateCrawl() error {
	if len(c.Seeds) == 0 && c.SeedFile == "" {
		return ErrNoSeeds
	}
	return c.Validate()
}

// ValidateTranslate additionally checks the translation options.
func (c *Config) ValidateTranslate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.TranslateBackend != BackendLibre && c.TranslateBackend != BackendDeepL {
		return ErrInvalidBackend
	}
	if c.TranslateBackend == BackendDeepL && c.TranslateAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.TranslateURL == "" {
		return ErrMissingTranslateURL
	}
	if c.CheckpointPath == "" {
		return ErrMissingCheckpoint
	}
	if c.SourceLanguage == "" || c.DestLanguage == "" {
		return ErrInvalidLanguage
	}
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.CooldownEvery < 0 || c.Cooldown < 0 {
		return ErrInvalidCooldown
	}
	if c.BackoffBase <= 0 || c.BackoffCap < c.BackoffBase {
		return ErrInvalidBackoff
	}
	if c.BackoffJitter < 0 || c.BackoffJitter > 1 {
		return ErrInvalidBackoff
	}
	return nil
}
