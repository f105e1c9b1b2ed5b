package downloader

import (
	"context"
	"fmt"
	"time"

	"NHK-Radio-GO/internal/crypto"
	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/util"
)

// SegmentFetcher 获取分段数据，*util.HTTPUtil 满足该接口
type SegmentFetcher interface {
	GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// SegmentDownloader 分段下载和解密，只在生产者协程中使用
type SegmentDownloader struct {
	fetcher     SegmentFetcher
	keys        *crypto.KeyCache
	retryConfig util.RetryConfig
	headers     map[string]string
}

// NewSegmentDownloader 创建分段下载器
func NewSegmentDownloader(fetcher SegmentFetcher, keys *crypto.KeyCache, retryConfig util.RetryConfig, headers map[string]string) *SegmentDownloader {
	return &SegmentDownloader{
		fetcher:     fetcher,
		keys:        keys,
		retryConfig: retryConfig,
		headers:     headers,
	}
}

// Download 下载分段原始数据，可恢复的网络错误按重试配置退避重试
func (sd *SegmentDownloader) Download(ctx context.Context, segment *entity.MediaSegment) ([]byte, error) {
	headers := sd.requestHeaders(segment)

	var data []byte
	err := util.DoRetry(ctx, func(ctx context.Context) error {
		util.Logger.Debug("正在下载分段 %d: %s", segment.SequenceNumber, segment.URL)
		body, err := sd.fetcher.GetBytes(ctx, segment.URL, headers)
		if err != nil {
			return err
		}
		data = body
		return nil
	}, sd.retryConfig, func(attempt int, delay time.Duration, err error) {
		util.Logger.Warn("分段 %d 下载失败，第 %d 次重试 (%v): %s", segment.SequenceNumber, attempt, delay, err.Error())
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &entity.SegmentError{Sequence: segment.SequenceNumber, URL: segment.URL, Err: err}
	}

	if br := segment.ByteRange; br != nil && int64(len(data)) > br.Length {
		// 服务器忽略了Range头
		if end := segment.GetStopRange() + 1; end <= int64(len(data)) {
			data = data[br.Start:end]
		}
	}

	return data, nil
}

// Decrypt 解析密钥并解密，未加密的分段原样返回
func (sd *SegmentDownloader) Decrypt(ctx context.Context, segment *entity.MediaSegment, data []byte) ([]byte, error) {
	if !segment.IsEncrypted() {
		return data, nil
	}

	key, err := sd.keys.Resolve(ctx, segment.EncryptInfo)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &entity.SegmentError{Sequence: segment.SequenceNumber, URL: segment.URL, Err: err}
	}

	decrypted, err := crypto.DecryptSegment(segment, data, key)
	if err != nil {
		return nil, &entity.SegmentError{Sequence: segment.SequenceNumber, URL: segment.URL, Err: err}
	}

	util.Logger.Debug("分段 %d 解密完成，原始大小: %d, 解密后大小: %d",
		segment.SequenceNumber, len(data), len(decrypted))

	// TS包应该以0x47开头
	if len(decrypted) > 0 && decrypted[0] != 0x47 {
		util.Logger.Debug("分段 %d 解密后首字节: 0x%02x", segment.SequenceNumber, decrypted[0])
	}
	return decrypted, nil
}

func (sd *SegmentDownloader) requestHeaders(segment *entity.MediaSegment) map[string]string {
	headers := make(map[string]string, len(sd.headers)+1)
	for k, v := range sd.headers {
		headers[k] = v
	}
	if br := segment.ByteRange; br != nil && br.Length > 0 {
		headers["Range"] = fmt.Sprintf("bytes=%d-%d", br.Start, segment.GetStopRange())
	}
	return headers
}
