package parser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/util"

	"github.com/grafov/m3u8"
)

// PlaylistFetcher 获取播放列表文本和跳转后的最终URL，*util.HTTPUtil 满足该接口
type PlaylistFetcher interface {
	GetStringAndURL(ctx context.Context, url string, headers map[string]string) (string, string, error)
}

// StreamExtractor 流提取器，把入口地址解析为媒体播放列表
// 主播放列表只在第一次获取时解析为第一个变体，之后不再切换
type StreamExtractor struct {
	hlsParser *HLSParser
	fetcher   PlaylistFetcher
	headers   map[string]string
	sourceURL string

	mutex    sync.Mutex
	mediaURL string
}

// NewStreamExtractor 创建流提取器
func NewStreamExtractor(fetcher PlaylistFetcher, sourceURL string, headers map[string]string) *StreamExtractor {
	return &StreamExtractor{
		hlsParser: NewHLSParser(),
		fetcher:   fetcher,
		headers:   headers,
		sourceURL: sourceURL,
	}
}

// MediaURL 已解析的媒体播放列表地址，尚未解析时返回入口地址
func (e *StreamExtractor) MediaURL() string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.mediaURL == "" {
		return e.sourceURL
	}
	return e.mediaURL
}

// FetchPlaylist 获取并解析媒体播放列表
func (e *StreamExtractor) FetchPlaylist(ctx context.Context) (*entity.Playlist, error) {
	target := e.MediaURL()

	content, finalURL, err := e.fetcher.GetStringAndURL(ctx, target, e.headers)
	if err != nil {
		return nil, fmt.Errorf("获取播放列表失败: %w", err)
	}

	if IsMasterPlaylist(content) {
		variantURL, err := SelectVariant(content, finalURL)
		if err != nil {
			return nil, err
		}
		util.Logger.Info("检测到主播放列表，选择变体: %s", variantURL)

		content, finalURL, err = e.fetcher.GetStringAndURL(ctx, variantURL, e.headers)
		if err != nil {
			return nil, fmt.Errorf("获取媒体播放列表失败: %w", err)
		}
		if IsMasterPlaylist(content) {
			return nil, &entity.MalformedPlaylistError{Reason: "variant is a master playlist"}
		}
		target = variantURL
	}

	e.mutex.Lock()
	e.mediaURL = target
	e.mutex.Unlock()

	playlist, err := e.hlsParser.ParseMediaPlaylist(content, finalURL)
	if err != nil {
		return nil, err
	}

	util.Logger.Debug("播放列表: 序列=%d 分段数=%d 窗口=%.1fs 目标时长=%v 加密=%t 结束=%t",
		playlist.MediaSequence, playlist.GetSegmentsCount(), playlist.GetTotalDuration(),
		playlist.TargetDuration, playlist.HasEncryptedSegments(), playlist.IsEnded)
	return playlist, nil
}

// SelectVariant 从主播放列表中选择第一个变体，返回绝对地址
func SelectVariant(content, baseURL string) (string, error) {
	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(content), false)
	if err != nil {
		return "", &entity.MalformedPlaylistError{Reason: fmt.Sprintf("decode master playlist: %v", err)}
	}
	if listType != m3u8.MASTER {
		return "", &entity.MalformedPlaylistError{Reason: "not a master playlist"}
	}

	master := pl.(*m3u8.MasterPlaylist)
	for _, variant := range master.Variants {
		if variant == nil || variant.URI == "" {
			continue
		}
		return ResolveURL(baseURL, variant.URI), nil
	}
	return "", &entity.MalformedPlaylistError{Reason: "master playlist has no variants"}
}
