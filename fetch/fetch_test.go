package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openadlib/adlib/models"
)

func testOptions() Options {
	return Options{
		RetryLimit:   3,
		Timeout:      5 * time.Second,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func TestJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"page_name":"acme"}],"paging":{"next":"u2"}}`))
	}))
	defer srv.Close()

	c := NewClient(testOptions())
	defer c.Close()

	res, err := c.JSON(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "u2", res.JSON.Get("paging.next").String())
	assert.Equal(t, "acme", res.JSON.Get("data.0.page_name").String())
}

func TestJSONSendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	opts := testOptions()
	opts.Referer = "https://example.com/results"
	opts.Headers = map[string]string{"X-Extra": "1", "Accept-Language": "nl-NL"}
	c := NewClient(opts)
	defer c.Close()

	_, err := c.JSON(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, got.Get("User-Agent"), "Chrome/")
	assert.Equal(t, "application/json, text/javascript, */*; q=0.01", got.Get("Accept"))
	assert.Equal(t, "https://example.com/results", got.Get("Referer"))
	assert.Equal(t, "1", got.Get("X-Extra"))
	assert.Equal(t, "nl-NL", got.Get("Accept-Language"), "caller headers override defaults")
}

func TestJSONRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testOptions())
	defer c.Close()

	res, err := c.JSON(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestJSONRateLimitExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.RetryLimit = 2
	c := NewClient(opts)
	defer c.Close()

	_, err := c.JSON(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeRateLimited, models.CodeOf(err))
	assert.Equal(t, int32(3), calls.Load(), "first try plus two retries")
}

func TestJSONPermissionDeniedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(testOptions())
	defer c.Close()

	_, err := c.JSON(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodePermissionDenied, models.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load(), "4xx auth failures must not burn the retry budget")
}

func TestJSONTerminalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(testOptions())
	defer c.Close()

	_, err := c.JSON(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeHTTPStatus, models.CodeOf(err))
}

func TestJSONNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title>Security Check</title></head>\n<body>please\nverify</body></html>"))
	}))
	defer srv.Close()

	c := NewClient(testOptions())
	defer c.Close()

	_, err := c.JSON(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNotJSON, models.CodeOf(err))
	assert.Contains(t, err.Error(), "Security Check")
	assert.Contains(t, err.Error(), "</head> <body>", "snippet newlines flatten to spaces")
}

func TestJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	c := NewClient(testOptions())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.JSON(ctx, srv.URL)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\nb\r\nc", 200))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, oneLine(string(long), 200), 200)
}
