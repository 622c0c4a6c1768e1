package config

import "errors"

// Validation errors returned by Config.Validate, ValidateCrawl and
// ValidateTranslate. Callers match them with errors.Is.
var (
	// ErrNoSeeds is returned when neither seed arguments nor --seeds is given.
	ErrNoSeeds = errors.New("no seeds specified: pass seed URLs or use --seeds")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxDuration is returned when the time budget is negative.
	ErrInvalidMaxDuration = errors.New("invalid max duration: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidFetchRetries is returned when the retry count is negative.
	ErrInvalidFetchRetries = errors.New("invalid fetch retries: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body cap is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidStrategy is returned for an unknown fetch strategy.
	ErrInvalidStrategy = errors.New("invalid strategy: must be \"http\" or \"browser\"")

	// ErrInvalidThreshold is returned when the similarity threshold is outside [0,1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold: must be between 0 and 1")

	// ErrInvalidDedupScope is returned for an unknown dedup scope.
	ErrInvalidDedupScope = errors.New("invalid dedup scope: must be \"global\" or \"domain\"")

	// ErrInvalidMinWords is returned when the word minimum is negative.
	ErrInvalidMinWords = errors.New("invalid min words: must be non-negative")

	// ErrInvalidSkipRecent is returned when the skip window is negative.
	ErrInvalidSkipRecent = errors.New("invalid skip-recent window: must be non-negative")

	// ErrResumeWithoutOutput is returned when --resume has no crawl output to resume from.
	ErrResumeWithoutOutput = errors.New("resume needs a crawl output file to read and update")

	// ErrInvalidLanguage is returned when a language code is empty.
	ErrInvalidLanguage = errors.New("invalid language: code must not be empty")

	// ErrInvalidMinConfidence is returned when the language confidence is outside [0,1].
	ErrInvalidMinConfidence = errors.New("invalid min confidence: must be between 0 and 1")

	// ErrInvalidBrowserURL is returned when the browser URL is not a ws(s) or http(s) URL.
	ErrInvalidBrowserURL = errors.New("invalid browser URL: must be a ws://, wss://, http:// or https:// URL")

	// ErrInvalidBackend is returned for an unknown translation backend.
	ErrInvalidBackend = errors.New("invalid translation backend: must be \"libre\" or \"deepl\"")

	// ErrMissingAPIKey is returned when DeepL is selected without a key.
	ErrMissingAPIKey = errors.New("missing translation API key: set SITESIFT_TRANSLATE_API_KEY")

	// ErrMissingTranslateURL is returned when the backend URL is empty.
	ErrMissingTranslateURL = errors.New("missing translation backend URL")

	// ErrMissingCheckpoint is returned when no checkpoint path is set.
	ErrMissingCheckpoint = errors.New("missing checkpoint path")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be positive")

	// ErrInvalidCooldown is returned when the cool-down settings are negative.
	ErrInvalidCooldown = errors.New("invalid cool-down: must be non-negative")

	// ErrInvalidBackoff is returned when base, cap or jitter are inconsistent.
	ErrInvalidBackoff = errors.New("invalid backoff: base must be positive, cap >= base, jitter in [0,1]")
)
