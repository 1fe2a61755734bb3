package fetch

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = 5 * time.Millisecond
	cfg.RetryMaxDelay = 20 * time.Millisecond
	return cfg
}

func TestNew_FillsDefaults(t *testing.T) {
	client := New(Config{})
	assert.Equal(t, DefaultTimeout, client.config.Timeout)
	assert.Equal(t, DefaultUserAgent, client.config.UserAgent)
	assert.Equal(t, DefaultBreakerThreshold, client.config.BreakerThreshold)
	assert.NotNil(t, client.logger)
}

func TestClient_Get(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>transcript</html>"))
		}))
		defer server.Close()

		doc, err := New(quietConfig()).Get(context.Background(), server.URL)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, doc.StatusCode)
		assert.Equal(t, "<html>transcript</html>", string(doc.Body))
		assert.Equal(t, "text/html", doc.ContentType)
		assert.False(t, doc.Retrieved.IsZero())
	})

	t.Run("sets user agent and accept encoding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "discoursekg-test/1.0", r.Header.Get("User-Agent"))
			encoding := r.Header.Get("Accept-Encoding")
			assert.Contains(t, encoding, "gzip")
			assert.Contains(t, encoding, "br")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := quietConfig()
		cfg.UserAgent = "discoursekg-test/1.0"
		_, err := New(cfg).Get(context.Background(), server.URL)
		require.NoError(t, err)
	})

	t.Run("records final url after redirect", func(t *testing.T) {
		var target *httptest.Server
		target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/old" {
				http.Redirect(w, r, target.URL+"/new", http.StatusMovedPermanently)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer target.Close()

		doc, err := New(quietConfig()).Get(context.Background(), target.URL+"/old")
		require.NoError(t, err)
		assert.Equal(t, target.URL+"/new", doc.FinalURL)
	})

	t.Run("unacceptable status returns StatusError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		_, err := New(quietConfig()).Get(context.Background(), server.URL)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.Code)
	})

	t.Run("custom acceptable status admits 304", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		}))
		defer server.Close()

		cfg := quietConfig()
		cfg.AcceptableStatus = MustParseStatusCodes("200-299,304")
		doc, err := New(cfg).Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotModified, doc.StatusCode)
		assert.Empty(t, doc.Body)
	})
}

func TestClient_Retries(t *testing.T) {
	t.Run("retries on 503 then succeeds", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("recovered"))
		}))
		defer server.Close()

		doc, err := New(quietConfig()).Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "recovered", string(doc.Body))
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("exhausted retries return ErrMaxRetries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cfg := quietConfig()
		cfg.RetryAttempts = 2
		_, err := New(cfg).Get(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrMaxRetries)
	})

	t.Run("does not retry a plain 404", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.NotFound(w, r)
		}))
		defer server.Close()

		_, err := New(quietConfig()).Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cfg := quietConfig()
		cfg.RetryDelay = 5 * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := New(cfg).Get(ctx, server.URL)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_Decompression(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed transcript body"))
		gz.Close()
	}))
	defer server.Close()

	doc, err := New(quietConfig()).Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "compressed transcript body", string(doc.Body))
}

func TestDocument_HTMLReader(t *testing.T) {
	t.Run("decodes legacy charset from header", func(t *testing.T) {
		doc := &Document{
			Body:        []byte("<p>conf\xe9rence</p>"),
			ContentType: "text/html; charset=iso-8859-1",
		}

		reader, err := doc.HTMLReader()
		require.NoError(t, err)
		decoded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "<p>conférence</p>", string(decoded))
	})

	t.Run("passes utf-8 through", func(t *testing.T) {
		doc := &Document{
			Body:        []byte("<p>conférence</p>"),
			ContentType: "text/html; charset=utf-8",
		}

		reader, err := doc.HTMLReader()
		require.NoError(t, err)
		decoded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "<p>conférence</p>", string(decoded))
	})

	t.Run("sniffs meta tag when header is silent", func(t *testing.T) {
		doc := &Document{
			Body: []byte("<html><head><meta charset=\"iso-8859-1\"></head><body>r\xe9sum\xe9</body></html>"),
		}

		reader, err := doc.HTMLReader()
		require.NoError(t, err)
		decoded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Contains(t, string(decoded), "résumé")
	})
}

func TestClient_BodyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	cfg := quietConfig()
	cfg.MaxBodySize = 1024
	_, err := New(cfg).Get(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestClient_BreakerIsolatesHosts(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fine"))
	}))
	defer good.Close()

	cfg := quietConfig()
	cfg.RetryAttempts = 0
	cfg.BreakerThreshold = 2
	cfg.BreakerReset = time.Hour
	client := New(cfg)

	for i := 0; i < 3; i++ {
		client.Get(context.Background(), bad.URL)
	}

	stats := client.BreakerStats()
	badHost := strings.TrimPrefix(bad.URL, "http://")
	require.Contains(t, stats, badHost)
	assert.Equal(t, "open", stats[badHost].State)

	doc, err := client.Get(context.Background(), good.URL)
	require.NoError(t, err, "an open breaker on one host must not affect another")
	assert.Equal(t, "fine", string(doc.Body))
}

func TestClient_StandardClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("via transport"))
	}))
	defer server.Close()

	std := New(quietConfig()).StandardClient()
	resp, err := std.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
