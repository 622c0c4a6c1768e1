package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/fi/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Hei " + r.Header.Get("User-Agent") + " " + r.Header.Get("Cookie") + "</body></html>"))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>P\xe4\xe4sivu</p>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})
	mux.HandleFunc("/busy", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 4096)))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/fi/", http.StatusMovedPermanently)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	headers := func(host string) map[string]string {
		if host == strings.TrimPrefix(server.URL, "http://") {
			return map[string]string{"Cookie": "consent=yes"}
		}
		return nil
	}
	f := NewHTTPFetcher(
		WithClient(server.Client()),
		WithUserAgent("sitesift-test"),
		WithHeaders(headers),
		WithMaxBodySize(1024),
	)

	t.Run("returns body and sends headers", func(t *testing.T) {
		t.Parallel()

		resp, err := f.Fetch(context.Background(), server.URL+"/fi/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		body := string(resp.Body)
		if !strings.Contains(body, "sitesift-test") || !strings.Contains(body, "consent=yes") {
			t.Errorf("expected user agent and cookie to be sent, got %q", body)
		}
		if resp.StatusCode != http.StatusOK || resp.Encoding != "utf-8" {
			t.Errorf("expected 200 utf-8, got %d %s", resp.StatusCode, resp.Encoding)
		}
	})

	t.Run("decodes declared charset", func(t *testing.T) {
		t.Parallel()

		resp, err := f.Fetch(context.Background(), server.URL+"/latin1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(resp.Body), "Pääsivu") {
			t.Errorf("expected decoded text, got %q", resp.Body)
		}
		if resp.Encoding != "windows-1252" && resp.Encoding != "iso-8859-1" {
			t.Errorf("expected latin-1 family encoding, got %q", resp.Encoding)
		}
	})

	t.Run("non-2xx is a FetchError", func(t *testing.T) {
		t.Parallel()

		_, err := f.Fetch(context.Background(), server.URL+"/missing")
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fe.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", fe.StatusCode)
		}
		if !errors.Is(err, ErrFetch) {
			t.Error("expected errors.Is(err, ErrFetch)")
		}
		if fe.Throttled() {
			t.Error("404 must not count as throttled")
		}
	})

	t.Run("429 is throttled", func(t *testing.T) {
		t.Parallel()

		_, err := f.Fetch(context.Background(), server.URL+"/busy")
		if !IsThrottled(err) {
			t.Errorf("expected throttled error, got %v", err)
		}
	})

	t.Run("body is capped", func(t *testing.T) {
		t.Parallel()

		resp, err := f.Fetch(context.Background(), server.URL+"/big")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Body) != 1024 {
			t.Errorf("expected 1024 bytes, got %d", len(resp.Body))
		}
	})

	t.Run("reports final URL after redirect", func(t *testing.T) {
		t.Parallel()

		resp, err := f.Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.URL != server.URL+"/fi/" {
			t.Errorf("expected final URL %s/fi/, got %s", server.URL, resp.URL)
		}
	})

	t.Run("network error is a FetchError", func(t *testing.T) {
		t.Parallel()

		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/")
		if !errors.Is(err, ErrFetch) {
			t.Errorf("expected ErrFetch, got %v", err)
		}
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fetch(ctx, server.URL+"/fi/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestFetchErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{name: "status", err: &FetchError{URL: "http://a.fi", StatusCode: 500}, want: "fetch http://a.fi: status 500"},
		{name: "cause", err: &FetchError{URL: "http://a.fi", Err: errors.New("boom")}, want: "fetch http://a.fi: boom"},
		{name: "bare", err: &FetchError{URL: "http://a.fi"}, want: "fetch http://a.fi failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	t.Run("keeps UTF-8 and strips BOM", func(t *testing.T) {
		t.Parallel()
		got := string(DecodeText([]byte("\xef\xbb\xbfURL\thttps://yritys.fi")))
		if got != "URL\thttps://yritys.fi" {
			t.Errorf("unexpected result %q", got)
		}
	})

	t.Run("decodes windows-1252", func(t *testing.T) {
		t.Parallel()
		got := string(DecodeText([]byte("Yritys Oy\tH\xe4meenlinna")))
		if got != "Yritys Oy\tHämeenlinna" {
			t.Errorf("unexpected result %q", got)
		}
	})
}

func TestBrowserFetcherClosed(t *testing.T) {
	t.Parallel()

	f := NewBrowserFetcher(WithIdleTime(0))
	if f.Name() != "browser" {
		t.Errorf("expected name browser, got %s", f.Name())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing an unstarted fetcher failed: %v", err)
	}

	_, err := f.Fetch(context.Background(), "http://example.fi/")
	if !errors.Is(err, ErrBrowserClosed) || !errors.Is(err, ErrFetch) {
		t.Errorf("expected ErrBrowserClosed wrapped in FetchError, got %v", err)
	}
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*BrowserFetcher)(nil)
)
