package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/nao1215/sitesift/internal/backoff"
	"github.com/nao1215/sitesift/internal/checkpoint"
	"github.com/nao1215/sitesift/internal/model"
)

// scriptedBackend answers each call with the next queued error, then
// uppercases the text once the queue is empty.
type scriptedBackend struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	inputs []string
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Translate(_ context.Context, text, _, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.inputs = append(b.inputs, text)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return strings.ToUpper(text), nil
}

// sleepRecorder records waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

// memoryCheckpoint keeps progress in memory and counts saves.
type memoryCheckpoint struct {
	result  *model.CrawlResult
	saves   int
	failErr error
}

func (m *memoryCheckpoint) Load() (*model.CrawlResult, error) {
	if m.result == nil {
		return model.NewCrawlResult(), nil
	}
	return m.result.Clone(), nil
}

func (m *memoryCheckpoint) Save(r *model.CrawlResult) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	m.result = r.Clone()
	return nil
}

func testPolicy() backoff.Policy {
	return backoff.Policy{Base: 30 * time.Second, Multiplier: 2, Cap: time.Hour}
}

func openStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.Open(filepath.Join(t.TempDir(), "checkpoint.json"))
	if err != nil {
		t.Fatalf("failed to open checkpoint: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestChunk(t *testing.T) {
	t.Parallel()

	t.Run("short text is one chunk", func(t *testing.T) {
		t.Parallel()
		got := Chunk("  hello world  ", 100)
		if len(got) != 1 || got[0] != "hello world" {
			t.Errorf("expected [hello world], got %q", got)
		}
	})

	t.Run("empty text yields no chunks", func(t *testing.T) {
		t.Parallel()
		if got := Chunk("   ", 10); len(got) != 0 {
			t.Errorf("expected no chunks, got %q", got)
		}
	})

	t.Run("breaks at last whitespace", func(t *testing.T) {
		t.Parallel()
		got := Chunk("aaa bbb ccc ddd", 8)
		want := []string{"aaa bbb", "ccc ddd"}
		if len(got) != len(want) {
			t.Fatalf("expected %q, got %q", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk %d: expected %q, got %q", i, want[i], got[i])
			}
		}
	})

	t.Run("hard split without whitespace", func(t *testing.T) {
		t.Parallel()
		got := Chunk("abcdefghij", 4)
		want := []string{"abcd", "efgh", "ij"}
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("properties hold", func(t *testing.T) {
		t.Parallel()
		text := "Tervetuloa meidän sivulle. Täällä kerromme yrityksestämme ja palveluistamme " +
			"sekä yhteystiedoistamme. Ääkköset ja pitkät sanat kuten järjestelmäkehittäjäkoulutus " +
			"eivät saa katketa kesken."
		for _, limit := range []int{30, 41, 64, 80} {
			chunks := Chunk(text, limit)
			for _, c := range chunks {
				if n := utf8.RuneCountInString(c); n > limit {
					t.Errorf("limit %d: chunk %q has %d runes", limit, c, n)
				}
			}
			// Every word fits the window, so chunks end on word boundaries.
			if got := strings.Join(chunks, " "); got != text {
				t.Errorf("limit %d: round trip mismatch: %q", limit, got)
			}
		}
	})

	t.Run("hard split keeps content", func(t *testing.T) {
		t.Parallel()
		text := "lyhyt järjestelmäkehittäjäkoulutus loppu"
		chunks := Chunk(text, 10)
		for _, c := range chunks {
			if n := utf8.RuneCountInString(c); n > 10 {
				t.Errorf("chunk %q has %d runes", c, n)
			}
		}
		got := strings.ReplaceAll(strings.Join(chunks, ""), " ", "")
		if want := strings.ReplaceAll(text, " ", ""); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "empty", value: "", want: 0},
		{name: "seconds", value: "120", want: 2 * time.Minute},
		{name: "negative", value: "-5", want: 0},
		{name: "http date", value: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "past date", value: now.Add(-time.Hour).Format(http.TimeFormat), want: 0},
		{name: "garbage", value: "soon", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTranslatorRateLimitBackoff(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{errs: []error{&RateLimitError{}, &RateLimitError{}}}
	rec := &sleepRecorder{}
	store := openStore(t)

	input := model.NewCrawlResult()
	input.Set("https://a.example/", "https://a.example/fi/about", "hyvää päivää")

	tr := New(backend, store, "fi", "en",
		WithBackoff(testPolicy()),
		WithSleep(rec.sleep),
		WithCooldown(0, 0),
	)
	out, err := tr.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Duration{30 * time.Second, 60 * time.Second}
	if len(rec.waits) != len(want) {
		t.Fatalf("expected waits %v, got %v", want, rec.waits)
	}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], rec.waits[i])
		}
	}
	if backend.calls != 3 {
		t.Errorf("expected 3 backend calls, got %d", backend.calls)
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load checkpoint: %v", err)
	}
	if saved.Len() != 1 {
		t.Errorf("expected 1 checkpointed subpage, got %d", saved.Len())
	}
	if got, _ := saved.Get("https://a.example/", "https://a.example/fi/about"); got != "HYVÄÄ PÄIVÄÄ" {
		t.Errorf("expected translated text, got %q", got)
	}
	if got, _ := out.Get("https://a.example/", "https://a.example/fi/about"); got != "HYVÄÄ PÄIVÄÄ" {
		t.Errorf("expected translated output, got %q", got)
	}
	if s := tr.Stats(); s.RateLimited != 2 || s.Translated != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestTranslatorRetryAfterWins(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{errs: []error{
		&RateLimitError{RetryAfter: 5 * time.Minute},
		&RateLimitError{RetryAfter: time.Second},
	}}
	rec := &sleepRecorder{}
	input := model.NewCrawlResult()
	input.Set("s", "u", "text")

	tr := New(backend, &memoryCheckpoint{}, "fi", "en",
		WithBackoff(testPolicy()), WithSleep(rec.sleep), WithCooldown(0, 0))
	if _, err := tr.Run(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{5 * time.Minute, 60 * time.Second}
	for i := range want {
		if i >= len(rec.waits) || rec.waits[i] != want[i] {
			t.Fatalf("expected waits %v, got %v", want, rec.waits)
		}
	}
}

func TestTranslatorBackoffCap(t *testing.T) {
	t.Parallel()

	errs := make([]error, 10)
	for i := range errs {
		errs[i] = &RateLimitError{}
	}
	backend := &scriptedBackend{errs: errs}
	rec := &sleepRecorder{}
	input := model.NewCrawlResult()
	input.Set("s", "u", "text")

	policy := backoff.Policy{Base: time.Minute, Multiplier: 2, Cap: 5 * time.Minute}
	tr := New(backend, &memoryCheckpoint{}, "fi", "en",
		WithBackoff(policy), WithSleep(rec.sleep), WithCooldown(0, 0))
	if _, err := tr.Run(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.waits) != 10 {
		t.Fatalf("expected 10 waits, got %d", len(rec.waits))
	}
	for _, w := range rec.waits {
		if w > 5*time.Minute {
			t.Errorf("wait %v exceeds cap", w)
		}
	}
	if rec.waits[9] != 5*time.Minute {
		t.Errorf("expected capped wait, got %v", rec.waits[9])
	}
}

func TestTranslatorTranslationErrorKeepsProgress(t *testing.T) {
	t.Parallel()

	// Pages are processed in sorted order: u1, u2, u3.
	backend := &scriptedBackend{errs: []error{nil, errors.New("boom")}}
	cp := &memoryCheckpoint{}
	input := model.NewCrawlResult()
	input.Set("s", "u1", "one")
	input.Set("s", "u2", "two")
	input.Set("s", "u3", "three")

	tr := New(backend, cp, "fi", "en", WithSleep((&sleepRecorder{}).sleep), WithCooldown(0, 0))
	out, err := tr.Run(context.Background(), input)
	if !errors.Is(err, ErrTranslation) {
		t.Fatalf("expected ErrTranslation, got %v", err)
	}
	if out == nil || out.Len() != 1 {
		t.Fatalf("expected 1 translated subpage in partial output, got %v", out)
	}
	if got, _ := cp.result.Get("s", "u1"); got != "ONE" {
		t.Errorf("expected checkpointed ONE, got %q", got)
	}
	if cp.result.Has("s", "u2") || cp.result.Has("s", "u3") {
		t.Error("expected failed and remaining subpages to be absent")
	}
	if backend.calls != 2 {
		t.Errorf("expected the run to stop after 2 calls, got %d", backend.calls)
	}
}

func TestTranslatorResumeIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	input := model.NewCrawlResult()
	input.Set("https://a.example/", "https://a.example/fi/1", "yksi kaksi")
	input.Set("https://a.example/", "https://a.example/fi/2", "kolme neljä")
	input.Set("https://b.example/", "https://b.example/fi", "viisi")

	first := &scriptedBackend{}
	out1, err := New(first, store, "fi", "en", WithCooldown(0, 0)).Run(context.Background(), input)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.calls != 3 {
		t.Errorf("expected 3 calls on first run, got %d", first.calls)
	}

	second := &scriptedBackend{}
	tr := New(second, store, "fi", "en", WithCooldown(0, 0))
	out2, err := tr.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.calls != 0 {
		t.Errorf("expected zero backend calls on resume, got %d", second.calls)
	}
	if tr.Stats().Resumed != 3 {
		t.Errorf("expected 3 resumed subpages, got %d", tr.Stats().Resumed)
	}

	a, _ := json.Marshal(out1)
	b, _ := json.Marshal(out2)
	if string(a) != string(b) {
		t.Errorf("expected identical output, got %s and %s", a, b)
	}
}

func TestTranslatorRetriesEmptyCheckpointEntries(t *testing.T) {
	t.Parallel()

	cp := &memoryCheckpoint{result: model.NewCrawlResult()}
	cp.result.Set("s", "done", "DONE")
	cp.result.Set("s", "empty", "")

	input := model.NewCrawlResult()
	input.Set("s", "done", "done")
	input.Set("s", "empty", "retry me")

	backend := &scriptedBackend{}
	out, err := New(backend, cp, "fi", "en", WithCooldown(0, 0)).Run(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls != 1 || backend.inputs[0] != "retry me" {
		t.Errorf("expected only the empty entry to be retried, got %q", backend.inputs)
	}
	if got, _ := out.Get("s", "empty"); got != "RETRY ME" {
		t.Errorf("expected RETRY ME, got %q", got)
	}
}

func TestTranslatorChunksAndCooldown(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{}
	rec := &sleepRecorder{}
	input := model.NewCrawlResult()
	input.Set("s", "u", "aaaa bbbb cccc dddd eeee")

	tr := New(backend, &memoryCheckpoint{}, "fi", "en",
		WithChunkSize(9),
		WithCooldown(2, time.Minute),
		WithSleep(rec.sleep),
	)
	out, err := tr.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls != 3 {
		t.Errorf("expected 3 chunks, got %d: %q", backend.calls, backend.inputs)
	}
	if got, _ := out.Get("s", "u"); got != "AAAA BBBB CCCC DDDD EEEE" {
		t.Errorf("expected joined translation, got %q", got)
	}
	if len(rec.waits) != 1 || rec.waits[0] != time.Minute {
		t.Errorf("expected one cool-down of 1m, got %v", rec.waits)
	}
	if tr.Stats().Cooldowns != 1 {
		t.Errorf("expected 1 cooldown, got %d", tr.Stats().Cooldowns)
	}
}

func TestTranslatorPageFilter(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{}
	input := model.NewCrawlResult()
	input.Set("s", "keep", "translate me")
	input.Set("s", "skip", "leave me")

	tr := New(backend, &memoryCheckpoint{}, "fi", "en", WithCooldown(0, 0),
		WithPageFilter(func(_, url string) bool { return url == "keep" }))
	out, err := tr.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := out.Get("s", "skip"); got != "leave me" {
		t.Errorf("expected untouched text, got %q", got)
	}
	if got, _ := out.Get("s", "keep"); got != "TRANSLATE ME" {
		t.Errorf("expected translated text, got %q", got)
	}
	if tr.Stats().Skipped != 1 {
		t.Errorf("expected 1 skipped page, got %d", tr.Stats().Skipped)
	}
}

func TestTranslatorCancellationFlushes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	backend := &scriptedBackend{errs: []error{nil, &RateLimitError{}}}
	cp := &memoryCheckpoint{}
	input := model.NewCrawlResult()
	input.Set("s", "u1", "one")
	input.Set("s", "u2", "two")

	sleep := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	out, err := New(backend, cp, "fi", "en", WithSleep(sleep), WithCooldown(0, 0)).Run(ctx, input)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 1 || cp.result.Len() != 1 {
		t.Errorf("expected committed subpage to survive, got out=%d checkpoint=%d", out.Len(), cp.result.Len())
	}
}

func TestTranslatorPersistenceError(t *testing.T) {
	t.Parallel()

	saveErr := errors.New("disk full")
	input := model.NewCrawlResult()
	input.Set("s", "u", "text")

	_, err := New(&scriptedBackend{}, &memoryCheckpoint{failErr: saveErr}, "fi", "en", WithCooldown(0, 0)).
		Run(context.Background(), input)
	if !errors.Is(err, saveErr) {
		t.Errorf("expected persistence error, got %v", err)
	}
}

func TestLibreBackend(t *testing.T) {
	t.Parallel()

	t.Run("request shape", func(t *testing.T) {
		t.Parallel()
		var got libreRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/translate" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "hello"})
		}))
		defer srv.Close()

		b := NewLibreBackend(srv.URL, "secret", srv.Client())
		out, err := b.Translate(context.Background(), "hei", "FI", "en")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "hello" {
			t.Errorf("expected hello, got %q", out)
		}
		if got.Q != "hei" || got.Source != "fi" || got.Target != "en" || got.Format != "text" || got.APIKey != "secret" {
			t.Errorf("unexpected request body: %+v", got)
		}
	})

	t.Run("429 is rate limited", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := NewLibreBackend(srv.URL, "", srv.Client()).Translate(context.Background(), "x", "fi", "en")
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		var rl *RateLimitError
		if !errors.As(err, &rl) || rl.RetryAfter != 7*time.Second {
			t.Errorf("expected RetryAfter 7s, got %v", err)
		}
	})

	t.Run("500 is a translation error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "model missing"})
		}))
		defer srv.Close()

		_, err := NewLibreBackend(srv.URL, "", srv.Client()).Translate(context.Background(), "x", "fi", "en")
		if !errors.Is(err, ErrTranslation) || errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrTranslation, got %v", err)
		}
		if !strings.Contains(err.Error(), "model missing") {
			t.Errorf("expected server message in error, got %v", err)
		}
	})
}

func TestDeepLBackend(t *testing.T) {
	t.Parallel()

	t.Run("request shape", func(t *testing.T) {
		t.Parallel()
		var got deeplRequest
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/translate" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			auth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			_, _ = w.Write([]byte(`{"translations":[{"detected_source_language":"FI","text":"Good day"}]}`))
		}))
		defer srv.Close()

		b := NewDeepLBackend(srv.URL, "key:fx", srv.Client())
		out, err := b.Translate(context.Background(), "Hyvää päivää", "fi", "en")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "Good day" {
			t.Errorf("expected Good day, got %q", out)
		}
		if auth != "DeepL-Auth-Key key:fx" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if len(got.Text) != 1 || got.SourceLang != "FI" || got.TargetLang != "EN-GB" {
			t.Errorf("unexpected request body: %+v", got)
		}
	})

	t.Run("456 quota is permanent", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(456)
		}))
		defer srv.Close()

		_, err := NewDeepLBackend(srv.URL, "k", srv.Client()).Translate(context.Background(), "x", "fi", "en")
		if !errors.Is(err, ErrTranslation) || errors.Is(err, ErrRateLimited) {
			t.Errorf("expected permanent ErrTranslation, got %v", err)
		}
	})

	t.Run("endpoint from key", func(t *testing.T) {
		t.Parallel()
		if b := NewDeepLBackend("", "abc:fx", nil); !strings.HasPrefix(b.endpoint, DeepLFreeURL) {
			t.Errorf("expected free endpoint, got %s", b.endpoint)
		}
		if b := NewDeepLBackend("", "abc", nil); !strings.HasPrefix(b.endpoint, DeepLProURL) {
			t.Errorf("expected pro endpoint, got %s", b.endpoint)
		}
	})
}
