package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"NHK-Radio-GO/internal/crypto"
	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/parser"
	"NHK-Radio-GO/internal/player"
	"NHK-Radio-GO/internal/util"

	"golang.org/x/sync/errgroup"
)

// ErrSessionCancelled 会话被取消
var ErrSessionCancelled = errors.New("session cancelled")

// Fetcher 播放列表、分段和密钥共用的HTTP接口，*util.HTTPUtil 满足该接口
type Fetcher interface {
	parser.PlaylistFetcher
	SegmentFetcher
}

// PipelineConfig 播放会话配置
type PipelineConfig struct {
	PlaylistURL            string
	Headers                map[string]string
	QueueCapacity          int
	RefreshRetry           util.RetryConfig // 播放列表刷新，默认无限重试
	SegmentRetry           util.RetryConfig
	KeyRetry               util.RetryConfig
	DefaultRefreshInterval time.Duration // TARGETDURATION 为 0 时使用
	MinRefreshInterval     time.Duration
	MaxRefreshInterval     time.Duration
	LiveEdgeSegments       int // 首次进入直播时只播放最后N个分段，0 表示全部
	SegmentErrorPolicy     entity.SegmentErrorPolicy
	StartCursor            *entity.LiveCursor
}

// DefaultPipelineConfig 默认会话配置
func DefaultPipelineConfig(playlistURL string) PipelineConfig {
	return PipelineConfig{
		PlaylistURL:   playlistURL,
		QueueCapacity: 8,
		RefreshRetry: util.RetryConfig{
			MaxRetries: -1,
			RetryDelay: time.Second,
			MaxDelay:   30 * time.Second,
			Backoff:    2.0,
		},
		SegmentRetry: util.RetryConfig{
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
			MaxDelay:   5 * time.Second,
			Backoff:    2.0,
		},
		KeyRetry:               util.DefaultRetryConfig,
		DefaultRefreshInterval: 5 * time.Second,
		MinRefreshInterval:     time.Second,
		MaxRefreshInterval:     30 * time.Second,
		SegmentErrorPolicy:     entity.SegmentErrorWarn,
	}
}

// SessionResult 会话结束结果
type SessionResult struct {
	Outcome entity.SessionOutcome
	Err     error // 仅 OutcomeFailed 时非空
	Stats   entity.StatsSnapshot
	Cursor  entity.LiveCursor
}

// Error 把结果转换为错误，正常结束返回 nil
func (r *SessionResult) Error() error {
	switch r.Outcome {
	case entity.OutcomeCancelled:
		return ErrSessionCancelled
	case entity.OutcomeFailed:
		return r.Err
	default:
		return nil
	}
}

// LivePipeline 一次播放会话：刷新播放列表、跟踪直播窗口、下载解密分段并送入输出端
type LivePipeline struct {
	config    PipelineConfig
	extractor *parser.StreamExtractor
	segments  *SegmentDownloader
	keys      *crypto.KeyCache
	queue     *SegmentQueue
	sink      player.Sink
	listener  entity.EventListener
	stats     *entity.SessionStats

	state   atomic.Int32
	started atomic.Bool
	drained atomic.Bool
	cursor  entity.LiveCursor // 只在生产者协程中访问
}

// NewLivePipeline 创建播放会话
func NewLivePipeline(config PipelineConfig, fetcher Fetcher, sink player.Sink, listener entity.EventListener) *LivePipeline {
	keys := crypto.NewKeyCache(fetcher, config.KeyRetry)
	p := &LivePipeline{
		config:    config,
		extractor: parser.NewStreamExtractor(fetcher, config.PlaylistURL, config.Headers),
		segments:  NewSegmentDownloader(fetcher, keys, config.SegmentRetry, config.Headers),
		keys:      keys,
		queue:     NewSegmentQueue(config.QueueCapacity),
		sink:      sink,
		listener:  listener,
		stats:     entity.NewSessionStats(),
		cursor:    entity.NewLiveCursor(),
	}
	if config.StartCursor != nil {
		p.cursor = *config.StartCursor
	}
	return p
}

// State 当前状态
func (p *LivePipeline) State() entity.PipelineState {
	return entity.PipelineState(p.state.Load())
}

// Stats 会话统计
func (p *LivePipeline) Stats() *entity.SessionStats {
	return p.stats
}

// QueueLen 当前缓冲的分段数
func (p *LivePipeline) QueueLen() int {
	return p.queue.Len()
}

// Run 运行会话直到结束、失败或 ctx 被取消，只能调用一次
func (p *LivePipeline) Run(ctx context.Context) *SessionResult {
	if !p.started.CompareAndSwap(false, true) {
		return &SessionResult{Outcome: entity.OutcomeFailed, Err: fmt.Errorf("会话只能运行一次")}
	}

	util.Logger.Info("开始播放: %s", p.config.PlaylistURL)

	group, gctx := errgroup.WithContext(ctx)

	// 取消或失败时中断输出端，解除阻塞的写入
	stopAbort := context.AfterFunc(gctx, func() {
		if !p.drained.Load() {
			player.AbortSink(p.sink)
		}
	})

	group.Go(func() error {
		return p.produce(gctx)
	})
	group.Go(func() error {
		return p.consume(gctx)
	})

	err := group.Wait()
	stopAbort()
	p.teardown()

	result := &SessionResult{
		Stats:  p.stats.Snapshot(),
		Cursor: p.cursor,
	}
	switch {
	case ctx.Err() != nil:
		result.Outcome = entity.OutcomeCancelled
		p.setState(entity.StateCancelled)
		util.Logger.Info("播放已取消")
	case err != nil:
		result.Outcome = entity.OutcomeFailed
		result.Err = err
		p.setState(entity.StateFailed)
		util.Logger.Error("播放失败: %s", err.Error())
	default:
		result.Outcome = entity.OutcomeEndOfStream
		p.setState(entity.StateEndOfStream)
		util.Logger.Info("直播已结束")
	}
	return result
}

// teardown 释放会话资源
func (p *LivePipeline) teardown() {
	p.queue.Close()
	p.keys.Clear()
	if err := p.sink.Close(); err != nil {
		util.Logger.Debug("关闭输出端: %s", err.Error())
	}
}

// produce 生产者：刷新、跟踪、下载、解密、入队
func (p *LivePipeline) produce(ctx context.Context) error {
	defer p.queue.Close()

	for {
		refreshStart := time.Now()

		p.setState(entity.StateRefreshing)
		playlist, err := p.refresh(ctx)
		if err != nil {
			return err
		}

		p.setState(entity.StateDeltaFetching)
		result, next := trackLiveWindow(p.cursor, playlist, p.config.LiveEdgeSegments)
		p.cursor = next

		if result.Skipped != nil {
			p.stats.SegmentsSkipped.Add(int64(result.Skipped.Count()))
			util.Logger.Warn("直播窗口已前移，跳过分段 %s", result.Skipped.String())
			p.emit(entity.PipelineEvent{Type: entity.EventSegmentsSkipped, Skipped: result.Skipped})
		}

		for _, seg := range result.Segments {
			if err := p.processSegment(ctx, seg); err != nil {
				return err
			}
		}

		if result.EndOfStream {
			util.Logger.Info("播放列表已结束 (ENDLIST)")
			return nil
		}

		wait := p.refreshInterval(playlist) - time.Since(refreshStart)
		if err := util.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// refresh 获取播放列表，网络错误无限退避重试，4xx 和格式错误直接失败
func (p *LivePipeline) refresh(ctx context.Context) (*entity.Playlist, error) {
	var playlist *entity.Playlist
	err := util.DoRetry(ctx, func(ctx context.Context) error {
		pl, err := p.extractor.FetchPlaylist(ctx)
		if err != nil {
			return err
		}
		playlist = pl
		return nil
	}, p.config.RefreshRetry, func(attempt int, delay time.Duration, err error) {
		util.Logger.Warn("刷新播放列表失败，第 %d 次重试 (%v): %s", attempt, delay, err.Error())
		p.emit(entity.PipelineEvent{Type: entity.EventRetry, Attempt: attempt, Delay: delay, Err: err})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("刷新播放列表失败: %w", err)
	}

	p.stats.Refreshes.Add(1)
	p.emit(entity.PipelineEvent{Type: entity.EventPlaylistRefreshed, Sequence: playlist.MediaSequence})
	return playlist, nil
}

// processSegment 下载、解密并入队单个分段；分段级错误按策略处理
func (p *LivePipeline) processSegment(ctx context.Context, seg *entity.MediaSegment) error {
	p.setState(entity.StateDownloading)
	data, err := p.segments.Download(ctx, seg)
	if err != nil {
		return p.handleSegmentError(ctx, seg, err)
	}
	p.stats.AddBytes(len(data))

	p.setState(entity.StateDecrypting)
	plain, err := p.segments.Decrypt(ctx, seg, data)
	if err != nil {
		return p.handleSegmentError(ctx, seg, err)
	}

	p.setState(entity.StateBuffering)
	chunk := &entity.DecodedChunk{
		SequenceNumber: seg.SequenceNumber,
		Duration:       seg.Duration,
		Data:           plain,
	}
	if err := p.queue.Push(ctx, chunk); err != nil {
		return err
	}

	p.stats.SegmentsQueued.Add(1)
	p.emit(entity.PipelineEvent{Type: entity.EventSegmentQueued, Sequence: seg.SequenceNumber, Bytes: len(plain)})
	return nil
}

func (p *LivePipeline) handleSegmentError(ctx context.Context, seg *entity.MediaSegment, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.stats.SegmentsFailed.Add(1)
	p.emit(entity.PipelineEvent{Type: entity.EventSegmentFailed, Sequence: seg.SequenceNumber, Err: err})

	switch p.config.SegmentErrorPolicy {
	case entity.SegmentErrorFail:
		return err
	case entity.SegmentErrorSkip:
		util.Logger.Debug("跳过分段 %d: %s", seg.SequenceNumber, err.Error())
	default:
		util.Logger.Warn("跳过分段 %d: %s", seg.SequenceNumber, err.Error())
	}
	return nil
}

// consume 消费者：按顺序把数据交给输出端
func (p *LivePipeline) consume(ctx context.Context) error {
	for {
		chunk, ok, err := p.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if !ok {
			p.drained.Store(true)
			return nil
		}

		if err := p.sink.Accept(chunk.Data); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var sinkErr *entity.SinkError
			if errors.As(err, &sinkErr) {
				return err
			}
			return &entity.SinkError{Err: err}
		}

		p.stats.SegmentsPlayed.Add(1)
		p.emit(entity.PipelineEvent{Type: entity.EventSegmentPlayed, Sequence: chunk.SequenceNumber, Bytes: len(chunk.Data)})
	}
}

// refreshInterval 按 TARGETDURATION 计算刷新间隔
func (p *LivePipeline) refreshInterval(playlist *entity.Playlist) time.Duration {
	interval := p.config.DefaultRefreshInterval
	if playlist.TargetDuration > 0 {
		interval = time.Duration(playlist.TargetDuration * float64(time.Second))
	}
	if p.config.MinRefreshInterval > 0 && interval < p.config.MinRefreshInterval {
		interval = p.config.MinRefreshInterval
	}
	if p.config.MaxRefreshInterval > 0 && interval > p.config.MaxRefreshInterval {
		interval = p.config.MaxRefreshInterval
	}
	return interval
}

func (p *LivePipeline) setState(state entity.PipelineState) {
	if entity.PipelineState(p.state.Swap(int32(state))) == state {
		return
	}
	p.emit(entity.PipelineEvent{Type: entity.EventStateChanged, State: state})
}

func (p *LivePipeline) emit(event entity.PipelineEvent) {
	if p.listener == nil {
		return
	}
	if event.Type != entity.EventStateChanged {
		event.State = p.State()
	}
	p.listener(event)
}
