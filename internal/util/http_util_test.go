package util

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPUtil() *HTTPUtil {
	options := DefaultHTTPOptions()
	options.RateLimit = 0
	options.UserAgent = "nhk-radio-test"
	options.Headers = map[string]string{"X-Global": "g"}
	return NewHTTPUtil(options)
}

func TestHTTPUtilGetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nhk-radio-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "g", r.Header.Get("X-Global"))
		assert.Equal(t, "r", r.Header.Get("X-Request"))
		_, _ = w.Write([]byte("#EXTM3U\n"))
	}))
	defer server.Close()

	data, err := newTestHTTPUtil().GetBytes(context.Background(), server.URL, map[string]string{"X-Request": "r"})
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(data))
}

func TestHTTPUtilGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("compressed playlist"))
	require.NoError(t, zw.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	text, err := newTestHTTPUtil().GetString(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "compressed playlist", text)
}

func TestHTTPUtilStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusGone, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestHTTPUtil().GetBytes(context.Background(), server.URL, nil)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))

			if tt.retryable {
				var statusErr *HTTPStatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.status, statusErr.StatusCode)
			} else {
				var nonRetryable *NonRetryableHTTPError
				require.ErrorAs(t, err, &nonRetryable)
				assert.Equal(t, tt.status, nonRetryable.StatusCode)
			}
		})
	}
}

func TestHTTPUtilFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/edge/master.m3u8", http.StatusFound)
	})
	mux.HandleFunc("/edge/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		// 跳转后保留自定义头
		assert.Equal(t, "r", r.Header.Get("X-Request"))
		_, _ = w.Write([]byte("edge"))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	h := newTestHTTPUtil()
	text, finalURL, err := h.GetStringAndURL(context.Background(), server.URL+"/live/master.m3u8", map[string]string{"X-Request": "r"})
	require.NoError(t, err)
	assert.Equal(t, "edge", text)
	assert.Equal(t, server.URL+"/edge/master.m3u8", finalURL)

	_, err = h.GetBytes(context.Background(), server.URL+"/loop", nil)
	var nonRetryable *NonRetryableHTTPError
	assert.ErrorAs(t, err, &nonRetryable)
}

func TestHTTPUtilCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestHTTPUtil().GetBytes(ctx, server.URL, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

func TestHTTPUtilRateLimitHonoursCancel(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	options := DefaultHTTPOptions()
	options.RateLimit = 1
	h := NewHTTPUtil(options)

	_, err := h.GetBytes(context.Background(), server.URL, nil)
	require.NoError(t, err)

	// 下一个许可在一秒后，等待期间超时应立即返回
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = h.GetBytes(ctx, server.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPUtilFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.m3u8")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\n"), 0o644))

	text, finalURL, err := newTestHTTPUtil().GetStringAndURL(context.Background(), "file://"+path, nil)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", text)
	assert.Equal(t, "file://"+path, finalURL)

	_, err = newTestHTTPUtil().GetBytes(context.Background(), "file://"+path+".missing", nil)
	var nonRetryable *NonRetryableHTTPError
	assert.ErrorAs(t, err, &nonRetryable)
}
