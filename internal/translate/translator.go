// Package translate machine-translates crawl results chunk by chunk,
// persisting progress after every subpage so an interrupted or failed run
// resumes where it stopped.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/sitesift/internal/backoff"
	"github.com/nao1215/sitesift/internal/model"
)

// Checkpoint stores translation progress.
type Checkpoint interface {
	Load() (*model.CrawlResult, error)
	Save(result *model.CrawlResult) error
}

// Stats summarizes one Run.
type Stats struct {
	// Translated counts subpages translated in this run.
	Translated int
	// Resumed counts subpages taken from the checkpoint.
	Resumed int
	// Skipped counts subpages copied untranslated by the page filter.
	Skipped int
	// Chunks counts successful backend calls.
	Chunks int
	// RateLimited counts 429 answers.
	RateLimited int
	// Cooldowns counts fixed cool-down pauses.
	Cooldowns int
}

// Translator runs a Backend over a crawl result.
type Translator struct {
	backend    Backend
	checkpoint Checkpoint
	source     string
	target     string

	chunkSize       int
	cooldownEvery   int
	cooldown        time.Duration
	policy          backoff.Policy
	sleep           backoff.SleepFunc
	shouldTranslate func(seed, url string) bool

	logger *slog.Logger
	stats  Stats
}

// Option configures a Translator.
type Option func(*Translator)

// WithChunkSize sets the maximum characters per backend call.
func WithChunkSize(n int) Option {
	return func(t *Translator) {
		t.chunkSize = n
	}
}

// WithCooldown pauses for d after every n translated chunks. n <= 0
// disables the pause.
func WithCooldown(n int, d time.Duration) Option {
	return func(t *Translator) {
		t.cooldownEvery = n
		t.cooldown = d
	}
}

// WithBackoff sets the wait schedule for rate-limited chunks.
func WithBackoff(p backoff.Policy) Option {
	return func(t *Translator) {
		t.policy = p
	}
}

// WithSleep replaces the wait function; tests use it to record waits.
func WithSleep(fn backoff.SleepFunc) Option {
	return func(t *Translator) {
		if fn != nil {
			t.sleep = fn
		}
	}
}

// WithPageFilter limits translation to pages for which fn returns true.
// Other pages are copied as they are.
func WithPageFilter(fn func(seed, url string) bool) Option {
	return func(t *Translator) {
		t.shouldTranslate = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Translator from source to target language.
func New(backend Backend, cp Checkpoint, source, target string, opts ...Option) *Translator {
	t := &Translator{
		backend:       backend,
		checkpoint:    cp,
		source:        source,
		target:        target,
		chunkSize:     4500,
		cooldownEvery: 50,
		cooldown:      time.Minute,
		policy:        backoff.DefaultPolicy(),
		sleep:         backoff.Sleep,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Stats returns the counters of the last Run.
func (t *Translator) Stats() Stats {
	return t.stats
}

// Run translates every subpage of input that the checkpoint does not
// already hold with a non-empty text, saving the checkpoint after each
// one. Rate-limited chunks are retried without limit; any other backend
// error ends the run. In every case the returned result holds all
// progress saved so far, so callers can write it out.
func (t *Translator) Run(ctx context.Context, input *model.CrawlResult) (*model.CrawlResult, error) {
	t.stats = Stats{}
	progress, err := t.checkpoint.Load()
	if err != nil {
		return nil, err
	}

	for _, p := range input.Pages() {
		if err := ctx.Err(); err != nil {
			return progress, t.flush(progress, err)
		}
		if done, ok := progress.Get(p.Seed, p.URL); ok && done != "" {
			t.stats.Resumed++
			continue
		}

		text := p.Text
		if t.shouldTranslate == nil || t.shouldTranslate(p.Seed, p.URL) {
			text, err = t.translatePage(ctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return progress, t.flush(progress, ctx.Err())
				}
				t.logger.Error("translation aborted", "seed", p.Seed, "url", p.URL, "error", err)
				return progress, t.flush(progress, err)
			}
			t.stats.Translated++
		} else {
			t.stats.Skipped++
		}

		progress.Set(p.Seed, p.URL, text)
		if err := t.checkpoint.Save(progress); err != nil {
			return progress, err
		}
		t.logger.Debug("subpage committed", "url", p.URL, "chars", len(text))
	}

	t.logger.Info("translation finished",
		"translated", t.stats.Translated,
		"resumed", t.stats.Resumed,
		"chunks", t.stats.Chunks,
		"rate_limited", t.stats.RateLimited,
	)
	return progress, nil
}

// flush saves progress and returns cause, or the save error joined to it.
func (t *Translator) flush(progress *model.CrawlResult, cause error) error {
	if err := t.checkpoint.Save(progress); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// translatePage translates the chunks of one page and joins the results
// with spaces.
func (t *Translator) translatePage(ctx context.Context, p model.PageRef) (string, error) {
	chunks := Chunk(p.Text, t.chunkSize)
	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := t.translateChunk(ctx, chunk)
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d of %s: %w", i+1, len(chunks), p.URL, err)
		}
		translated = append(translated, out)

		t.stats.Chunks++
		if t.cooldownEvery > 0 && t.stats.Chunks%t.cooldownEvery == 0 {
			t.stats.Cooldowns++
			t.logger.Info("cooling down", "chunks", t.stats.Chunks, "wait", t.cooldown)
			if err := t.sleep(ctx, t.cooldown); err != nil {
				return "", err
			}
		}
	}
	return strings.Join(translated, " "), nil
}

// translateChunk calls the backend until it succeeds or fails with
// something other than a rate limit. Waits follow the backoff policy; a
// longer Retry-After from the server wins.
func (t *Translator) translateChunk(ctx context.Context, chunk string) (string, error) {
	waits := t.policy.New()
	for {
		out, err := t.backend.Translate(ctx, chunk, t.source, t.target)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			if errors.Is(err, ErrTranslation) {
				return "", err
			}
			return "", fmt.Errorf("%w: %w", ErrTranslation, err)
		}

		t.stats.RateLimited++
		wait := waits.NextBackOff()
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > wait {
			wait = rl.RetryAfter
		}
		t.logger.Warn("rate limited, backing off", "backend", t.backend.Name(), "wait", wait)
		if err := t.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}
