package crypto

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/util"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// KeyFetcher fetches raw key bytes, *util.HTTPUtil satisfies it.
type KeyFetcher interface {
	GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// KeyCache memoizes AES keys by URI for the lifetime of one session.
// Concurrent resolutions of the same URI share a single fetch.
type KeyCache struct {
	fetcher KeyFetcher
	retry   util.RetryConfig
	keys    *xsync.MapOf[string, []byte]
	group   singleflight.Group
	fetches atomic.Int64
}

// NewKeyCache creates an empty cache.
func NewKeyCache(fetcher KeyFetcher, retry util.RetryConfig) *KeyCache {
	return &KeyCache{
		fetcher: fetcher,
		retry:   retry,
		keys:    xsync.NewMapOf[string, []byte](),
	}
}

// Resolve returns the 16-byte key for info, fetching it at most once.
// Unencrypted segments resolve to a nil key.
func (c *KeyCache) Resolve(ctx context.Context, info *entity.EncryptInfo) ([]byte, error) {
	if !info.IsEncrypted() {
		return nil, nil
	}
	uri := info.URI
	if key, ok := c.keys.Load(uri); ok {
		return key, nil
	}

	if key, ok, err := decodeInlineKey(uri); ok {
		if err != nil {
			return nil, &entity.KeyFetchError{URI: uri, Err: err}
		}
		c.keys.Store(uri, key)
		return key, nil
	}

	// The shared fetch must outlive any single caller; each request is
	// still bounded by the HTTP timeout.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(uri, func() (interface{}, error) {
		// another flight may have finished between Load and DoChan
		if key, ok := c.keys.Load(uri); ok {
			return key, nil
		}
		key, err := c.fetch(fetchCtx, uri)
		if err != nil {
			return nil, err
		}
		c.keys.Store(uri, key)
		return key, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *KeyCache) fetch(ctx context.Context, uri string) ([]byte, error) {
	var key []byte
	err := util.DoRetry(ctx, func(ctx context.Context) error {
		c.fetches.Add(1)
		data, err := c.fetcher.GetBytes(ctx, uri, nil)
		if err != nil {
			return err
		}
		key = data
		return nil
	}, c.retry, func(attempt int, delay time.Duration, err error) {
		util.Logger.Warn("获取密钥失败，第 %d 次重试 (%v): %s", attempt, delay, err.Error())
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &entity.KeyFetchError{URI: uri, Err: err}
	}
	if len(key) != KeySize {
		return nil, &entity.KeyFetchError{URI: uri, Err: fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))}
	}
	util.Logger.Debug("已获取密钥: %s", uri)
	return key, nil
}

// decodeInlineKey handles base64: and data:...;base64, key URIs.
func decodeInlineKey(uri string) ([]byte, bool, error) {
	lower := strings.ToLower(uri)
	var payload string
	switch {
	case strings.HasPrefix(lower, "base64:"):
		payload = uri[len("base64:"):]
	case strings.HasPrefix(lower, "data:"):
		idx := strings.Index(lower, ";base64,")
		if idx < 0 {
			return nil, true, fmt.Errorf("unsupported data URI")
		}
		payload = uri[idx+len(";base64,"):]
	default:
		return nil, false, nil
	}

	key, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, true, err
	}
	if len(key) != KeySize {
		return nil, true, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, true, nil
}

// Fetches reports how many network fetches were issued.
func (c *KeyCache) Fetches() int64 {
	return c.fetches.Load()
}

// Size reports the number of cached keys.
func (c *KeyCache) Size() int {
	return c.keys.Size()
}

// Clear wipes key material, called at session teardown.
func (c *KeyCache) Clear() {
	c.keys.Range(func(uri string, key []byte) bool {
		for i := range key {
			key[i] = 0
		}
		return true
	})
	c.keys.Clear()
}
