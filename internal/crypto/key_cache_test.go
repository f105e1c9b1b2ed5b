package crypto

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetry = util.RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond, Backoff: 1}

// stubKeyFetcher returns a fixed key after optional failures.
type stubKeyFetcher struct {
	key      []byte
	failures int32
	err      error
	gate     chan struct{}
	calls    atomic.Int32
}

func (f *stubKeyFetcher) GetBytes(ctx context.Context, _ string, _ map[string]string) ([]byte, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failures {
		return nil, f.err
	}
	return append([]byte(nil), f.key...), nil
}

func aesKey(uri string) *entity.EncryptInfo {
	return &entity.EncryptInfo{Method: entity.EncryptMethodAES128, URI: uri}
}

func TestKeyCacheFetchesOnce(t *testing.T) {
	key := bytes.Repeat([]byte{9}, KeySize)
	fetcher := &stubKeyFetcher{key: key, gate: make(chan struct{})}
	cache := NewKeyCache(fetcher, testRetry)

	const workers = 16
	var wg sync.WaitGroup
	results := make([][]byte, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Resolve(context.Background(), aesKey("https://example.com/k1"))
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, key, results[i])
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int64(1), cache.Fetches())
	assert.Equal(t, 1, cache.Size())

	// 已缓存的密钥不再请求
	_, err := cache.Resolve(context.Background(), aesKey("https://example.com/k1"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	_, err = cache.Resolve(context.Background(), aesKey("https://example.com/k2"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, 2, cache.Size())
}

func TestKeyCacheUnencrypted(t *testing.T) {
	cache := NewKeyCache(&stubKeyFetcher{}, testRetry)

	key, err := cache.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, key)

	key, err = cache.Resolve(context.Background(), entity.NewEncryptInfo())
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestKeyCacheRetriesTransientErrors(t *testing.T) {
	key := bytes.Repeat([]byte{3}, KeySize)
	fetcher := &stubKeyFetcher{key: key, failures: 2, err: errors.New("connection reset")}
	cache := NewKeyCache(fetcher, testRetry)

	got, err := cache.Resolve(context.Background(), aesKey("https://example.com/k"))
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Equal(t, int32(3), fetcher.calls.Load())
}

func TestKeyCacheErrors(t *testing.T) {
	t.Run("not found is not retried", func(t *testing.T) {
		fetcher := &stubKeyFetcher{failures: 100, err: &util.NonRetryableHTTPError{StatusCode: 404, Message: "HTTP 404"}}
		cache := NewKeyCache(fetcher, testRetry)

		_, err := cache.Resolve(context.Background(), aesKey("https://example.com/missing"))
		var keyErr *entity.KeyFetchError
		require.ErrorAs(t, err, &keyErr)
		assert.Equal(t, "https://example.com/missing", keyErr.URI)
		assert.Equal(t, int32(1), fetcher.calls.Load())
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("wrong length", func(t *testing.T) {
		cache := NewKeyCache(&stubKeyFetcher{key: []byte("short")}, testRetry)
		_, err := cache.Resolve(context.Background(), aesKey("https://example.com/short"))
		var keyErr *entity.KeyFetchError
		assert.ErrorAs(t, err, &keyErr)
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("cancelled", func(t *testing.T) {
		fetcher := &stubKeyFetcher{key: make([]byte, KeySize), gate: make(chan struct{})}
		defer close(fetcher.gate)
		cache := NewKeyCache(fetcher, testRetry)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)

		_, err := cache.Resolve(ctx, aesKey("https://example.com/slow"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestKeyCacheSharedFetchSurvivesCancelledCaller(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	fetcher := &stubKeyFetcher{key: key, gate: make(chan struct{})}
	cache := NewKeyCache(fetcher, testRetry)
	info := aesKey("https://example.com/shared")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(ctx, info)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		key []byte
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		k, err := cache.Resolve(context.Background(), info)
		second <- outcome{k, err}
	}()
	time.Sleep(20 * time.Millisecond)

	// 第一个调用方放弃，共享的请求继续
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(fetcher.gate)

	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, key, got.key)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not receive the key")
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, cache.Size())
}

func TestKeyCacheInlineKeys(t *testing.T) {
	key := []byte("0123456789abcdef")
	encoded := base64.StdEncoding.EncodeToString(key)
	fetcher := &stubKeyFetcher{}
	cache := NewKeyCache(fetcher, testRetry)

	for _, uri := range []string{"base64:" + encoded, "data:text/plain;base64," + encoded} {
		got, err := cache.Resolve(context.Background(), aesKey(uri))
		require.NoError(t, err, uri)
		assert.Equal(t, key, got)
	}
	assert.Equal(t, int32(0), fetcher.calls.Load())

	_, err := cache.Resolve(context.Background(), aesKey("data:text/plain,abc"))
	assert.Error(t, err)
	_, err = cache.Resolve(context.Background(), aesKey("base64:"+base64.StdEncoding.EncodeToString([]byte("short"))))
	assert.Error(t, err)
}

func TestKeyCacheClearWipesKeys(t *testing.T) {
	fetcher := &stubKeyFetcher{key: bytes.Repeat([]byte{0xAA}, KeySize)}
	cache := NewKeyCache(fetcher, testRetry)

	key, err := cache.Resolve(context.Background(), aesKey("https://example.com/k"))
	require.NoError(t, err)

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, make([]byte, KeySize), key)
}
