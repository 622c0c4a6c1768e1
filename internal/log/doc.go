// Package log builds the slog loggers used across sitesift.
//
// Every logger returned by this package wraps its output handler in a
// SecureHandler. The handler masks values that must never reach a log file:
//   - translation backend credentials (DeepL auth keys, LibreTranslate api_key)
//   - HTTP headers configured per site (Authorization, Cookie)
//   - credentials embedded in URL query strings
//
// Crawled URLs and seed addresses are logged as they are, so a crawl log can
// be replayed against the archive.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("translating", "seed", seed, "auth_key", key) // auth_key is masked
package log
