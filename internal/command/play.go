package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"NHK-Radio-GO/internal/config"
	"NHK-Radio-GO/internal/downloader"
	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/player"
	"NHK-Radio-GO/internal/radiru"
	"NHK-Radio-GO/internal/util"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var playCmd = &cobra.Command{
	Use:   "play [area] [r1|r2|fm]",
	Short: "播放直播",
	Long: `播放指定地区和频道的直播
地区可以是 tokyo、東京 或旧的数字代码 130；不指定时显示选择界面`,
	Example: `  nhk-radio play tokyo r1
  nhk-radio play 大阪 fm --sink speaker --volume 60
  nhk-radio play --url https://example.com/live/master.m3u8 --sink file -o live.aac`,
	Args: cobra.MaximumNArgs(2),
	RunE: runPlay,
}

func init() {
	addPlayFlags(playCmd.Flags())
}

func addPlayFlags(flags *pflag.FlagSet) {
	flags.String("url", "", "直接播放指定的HLS地址")
}

// playTarget 当前播放的目标，切换频道时更新
type playTarget struct {
	radiru  *entity.RadiruConfig
	station entity.StationData
	kind    entity.ChannelKind
	url     string
	program *entity.ProgramRoot
}

func (t *playTarget) nowPlaying() util.NowPlaying {
	np := util.NowPlaying{
		AreaJP: t.station.AreaJP,
		Area:   t.station.Area,
		Kind:   t.kind,
		URL:    t.url,
	}
	if t.program != nil {
		np.Program = t.program.Channel(t.kind).Present
	}
	return np
}

func (t *playTarget) switchable() bool {
	return t.radiru != nil
}

// switchTo 切换到同一地区的另一个频道
func (t *playTarget) switchTo(kind entity.ChannelKind) error {
	url := t.station.HLSURL(kind)
	if url == "" {
		return fmt.Errorf("%s 没有 %s 的直播地址", t.station.AreaJP, kind.DisplayName())
	}
	t.kind = kind
	t.url = url
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	rawURL, _ := cmd.Flags().GetString("url")
	option, err := ParsePlayOption(args, rawURL)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpUtil := newHTTPUtil()
	target, err := resolveTarget(ctx, httpUtil, cfg, option)
	if err != nil {
		return err
	}
	return playLoop(ctx, cfg, httpUtil, target)
}

// resolveTarget 把选项解析为具体的HLS地址，并获取一次节目信息
func resolveTarget(ctx context.Context, httpUtil *util.HTTPUtil, cfg *config.PlayerConfig, option *MyOption) (*playTarget, error) {
	if option.URL != "" {
		return &playTarget{url: option.URL}, nil
	}

	client := radiru.NewClient(httpUtil, cfg.ConfigURL)
	rc, err := client.FetchConfig(ctx)
	if err != nil {
		return nil, err
	}

	target := &playTarget{radiru: rc}
	if option.Interactive {
		choice, err := util.NewStationSelector(rc).Select("tokyo", entity.ChannelR1).ShowPrompt()
		if err != nil {
			return nil, err
		}
		target.station = choice.Station
		if err := target.switchTo(choice.Kind); err != nil {
			return nil, err
		}
	} else {
		station, url, err := radiru.StreamURL(rc, option.Area, option.Kind)
		if err != nil {
			return nil, err
		}
		target.station, target.kind, target.url = station, option.Kind, url
	}

	program, err := client.FetchStationProgram(ctx, rc, target.station)
	if err != nil {
		util.Logger.Warn("获取节目信息失败: %s", err.Error())
	} else {
		target.program = program
		if present := program.Channel(target.kind).Present; present != nil {
			util.Logger.Info("正在播出: %s", present.Title())
		}
	}
	return target, nil
}

// playLoop 运行播放会话，有界面时界面在主协程运行
func playLoop(ctx context.Context, cfg *config.PlayerConfig, httpUtil *util.HTTPUtil, target *playTarget) error {
	useUI := !cfg.NoUI && cfg.Sink != entity.SinkTypeStdout && util.IsInteractiveTerminal()
	if !useUI {
		return runSessions(ctx, cfg, httpUtil, target, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ui := util.NewPlayerUI(target.nowPlaying(), target.switchable())
	errCh := make(chan error, 1)
	go func() {
		errCh <- runSessions(ctx, cfg, httpUtil, target, ui)
		ui.Quit()
	}()

	if err := ui.Run(); err != nil {
		util.Logger.Warn("界面异常退出: %s", err.Error())
	}
	cancel()
	return <-errCh
}

// runSessions 依次运行会话，收到切换请求时重新开始
func runSessions(ctx context.Context, cfg *config.PlayerConfig, httpUtil *util.HTTPUtil, target *playTarget, ui *util.PlayerUI) error {
	for {
		sink, err := newSink(cfg)
		if err != nil {
			return err
		}

		listener := func(event entity.PipelineEvent) {
			logEvent(event)
			if ui != nil {
				ui.OnEvent(event)
			}
		}
		pipeline := downloader.NewLivePipeline(cfg.PipelineConfig(target.url), httpUtil, sink, listener)
		if ui != nil {
			ui.SetSession(target.nowPlaying(), pipeline.Stats())
			volumeSink, _ := sink.(util.VolumeSetter)
			ui.SetVolumeTarget(volumeSink, cfg.Volume)
		}
		if np := target.nowPlaying(); np.AreaJP != "" {
			util.Logger.Info("电台: %s", np.Title())
		}

		sessionCtx, cancelSession := context.WithCancel(ctx)
		next := watchSwitches(sessionCtx, cancelSession, target.kind, ui)

		result := pipeline.Run(sessionCtx)
		cancelSession()
		kind := <-next
		if ui != nil {
			// 切换频道后沿用调节过的音量
			cfg.Volume = ui.Volume()
		}

		logSummary(result)
		if kind != nil && ctx.Err() == nil {
			if err := target.switchTo(*kind); err != nil {
				util.Logger.Warn("%s", err.Error())
			} else {
				util.Logger.Info("切换频道: %s", kind.DisplayName())
			}
			continue
		}
		return result.Error()
	}
}

// watchSwitches 收到切换到其他频道的请求时结束当前会话，结果通过返回的通道给出
func watchSwitches(ctx context.Context, cancel context.CancelFunc, current entity.ChannelKind, ui *util.PlayerUI) <-chan *entity.ChannelKind {
	out := make(chan *entity.ChannelKind, 1)
	if ui == nil {
		out <- nil
		return out
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				out <- nil
				return
			case kind := <-ui.Switches():
				if kind == current {
					continue
				}
				out <- &kind
				cancel()
				return
			}
		}
	}()
	return out
}

// newSink 按配置创建输出端
func newSink(cfg *config.PlayerConfig) (player.Sink, error) {
	switch cfg.Sink {
	case entity.SinkTypeSpeaker:
		ffmpeg, err := util.ResolveBinary(cfg.FFmpegPath, "ffmpeg")
		if err != nil {
			return nil, err
		}
		logBinaryVersion(ffmpeg)
		return player.NewSpeakerSink(ffmpeg, cfg.FFmpegArgs, cfg.Volume)
	case entity.SinkTypeStdout:
		return player.NewStdoutSink(), nil
	case entity.SinkTypeFile:
		return player.NewFileSink(cfg.OutputPath)
	default:
		ffplay, err := util.ResolveBinary(cfg.PlayerPath, "ffplay")
		if err != nil {
			return nil, err
		}
		logBinaryVersion(ffplay)
		return player.NewCommandSink(ffplay, cfg.PlayerArgs)
	}
}

func logBinaryVersion(binary string) {
	if util.Logger.Level > util.LogLevelDebug {
		return
	}
	if version := util.BinaryVersion(binary); version != "" {
		util.Logger.Debug("%s", version)
	}
}

func logEvent(event entity.PipelineEvent) {
	switch event.Type {
	case entity.EventPlaylistRefreshed:
		util.Logger.Debug("播放列表已刷新: 序列=%d", event.Sequence)
	case entity.EventSegmentPlayed:
		util.Logger.Debug("已播放分段 #%d (%s)", event.Sequence, util.FormatFileSize(int64(event.Bytes)))
	case entity.EventStateChanged:
		util.Logger.Extra("状态: %s", event.State.String())
	}
}

func logSummary(result *downloader.SessionResult) {
	stats := result.Stats
	util.Logger.Info("会话结束 (%s): 播放 %d 个分段，跳过 %d，失败 %d，共 %s，用时 %s",
		result.Outcome.String(), stats.SegmentsPlayed, stats.SegmentsSkipped, stats.SegmentsFailed,
		util.FormatFileSize(stats.TotalBytes), util.FormatDuration(stats.Elapsed))
}

// IsCancelled 会话是否因取消而结束
func IsCancelled(err error) bool {
	return errors.Is(err, downloader.ErrSessionCancelled) ||
		errors.Is(err, util.ErrSelectionCancelled) ||
		errors.Is(err, context.Canceled)
}
