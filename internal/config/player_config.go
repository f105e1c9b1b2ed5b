package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"NHK-Radio-GO/internal/downloader"
	"NHK-Radio-GO/internal/entity"
	"NHK-Radio-GO/internal/player"
	"NHK-Radio-GO/internal/util"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// 选项名，同时是命令行参数名和配置文件键名
const (
	KeyConfig          = "config"
	KeyLogLevel        = "log-level"
	KeyNoLog           = "no-log"
	KeyNoColor         = "no-ansi-color"
	KeyNoUI            = "no-ui"
	KeySink            = "sink"
	KeyOutput          = "output"
	KeyVolume          = "volume"
	KeyPlayerPath      = "player-binary-path"
	KeyFFmpegPath      = "ffmpeg-binary-path"
	KeyQueueSize       = "queue-size"
	KeyLiveEdge        = "live-edge"
	KeySegmentError    = "segment-error"
	KeySegmentRetry    = "segment-retry-count"
	KeyKeyRetry        = "key-retry-count"
	KeyRefreshMaxDelay = "refresh-max-delay"
	KeyTimeout         = "http-request-timeout"
	KeyRateLimit       = "rate-limit"
	KeyUserAgent       = "user-agent"
	KeyProxy           = "custom-proxy"
	KeyHeader          = "header"
	KeyConfigURL       = "config-url"
)

// PlayerConfig 播放器配置
type PlayerConfig struct {
	LogLevel  util.LogLevel `json:"log_level"`
	NoLog     bool          `json:"no_log"`
	NoColor   bool          `json:"no_ansi_color"`
	NoUI      bool          `json:"no_ui"`
	ConfigURL string        `json:"config_url"`

	// 输出端
	Sink       entity.SinkType `json:"sink"`
	OutputPath string          `json:"output,omitempty"`
	Volume     int             `json:"volume"`
	PlayerPath string          `json:"player_binary_path,omitempty"`
	PlayerArgs []string        `json:"player_args"`
	FFmpegPath string          `json:"ffmpeg_binary_path,omitempty"`
	FFmpegArgs []string        `json:"ffmpeg_args"`

	// 会话
	QueueSize       int                       `json:"queue_size"`
	LiveEdge        int                       `json:"live_edge"`
	SegmentError    entity.SegmentErrorPolicy `json:"segment_error"`
	SegmentRetry    int                       `json:"segment_retry_count"`
	KeyRetry        int                       `json:"key_retry_count"`
	RefreshMaxDelay time.Duration             `json:"refresh_max_delay"`

	// 网络
	Timeout   time.Duration     `json:"http_request_timeout"`
	RateLimit int               `json:"rate_limit"`
	UserAgent string            `json:"user_agent,omitempty"`
	Proxy     string            `json:"custom_proxy,omitempty"`
	Headers   map[string]string `json:"headers"`
}

// NewPlayerConfig 默认配置
func NewPlayerConfig() *PlayerConfig {
	return &PlayerConfig{
		LogLevel:        util.LogLevelInfo,
		Sink:            entity.SinkTypePlayer,
		Volume:          100,
		PlayerArgs:      append([]string(nil), player.DefaultPlayerArgs...),
		FFmpegArgs:      append([]string(nil), player.DefaultDecoderArgs...),
		QueueSize:       8,
		LiveEdge:        0,
		SegmentError:    entity.SegmentErrorWarn,
		SegmentRetry:    3,
		KeyRetry:        3,
		RefreshMaxDelay: 30 * time.Second,
		Timeout:         10 * time.Second,
		RateLimit:       20,
		Headers:         make(map[string]string),
	}
}

// BindFlags 注册命令行参数
func BindFlags(flags *pflag.FlagSet) {
	def := NewPlayerConfig()
	flags.String(KeyConfig, "", "配置文件路径 (yaml/toml/json)")
	flags.String(KeyLogLevel, def.LogLevel.String(), "日志级别: DEBUG, INFO, WARN, ERROR, OFF")
	flags.Bool(KeyNoLog, false, "不写日志文件")
	flags.Bool(KeyNoColor, false, "禁用ANSI颜色")
	flags.Bool(KeyNoUI, false, "不显示播放界面，只输出日志")
	flags.String(KeySink, def.Sink.String(), "输出方式: player, speaker, stdout, file")
	flags.StringP(KeyOutput, "o", "", "sink=file 时的输出文件")
	flags.Int(KeyVolume, def.Volume, "sink=speaker 时的音量 (0-100)")
	flags.String(KeyPlayerPath, "", "外部播放器路径，默认查找 ffplay")
	flags.String(KeyFFmpegPath, "", "FFmpeg路径，默认自动查找")
	flags.Int(KeyQueueSize, def.QueueSize, "解密后分段的缓冲数量")
	flags.Int(KeyLiveEdge, def.LiveEdge, "开始播放时只保留最后N个分段，0 表示全部")
	flags.String(KeySegmentError, def.SegmentError.String(), "分段失败时的处理: warn, skip, fail")
	flags.Int(KeySegmentRetry, def.SegmentRetry, "分段下载重试次数")
	flags.Int(KeyKeyRetry, def.KeyRetry, "密钥获取重试次数")
	flags.Duration(KeyRefreshMaxDelay, def.RefreshMaxDelay, "播放列表刷新失败时的最长等待")
	flags.Duration(KeyTimeout, def.Timeout, "单次HTTP请求超时")
	flags.Int(KeyRateLimit, def.RateLimit, "每秒请求数上限，0 表示不限制")
	flags.String(KeyUserAgent, "", "自定义User-Agent")
	flags.String(KeyProxy, "", "自定义代理")
	flags.StringSliceP(KeyHeader, "H", []string{}, "自定义HTTP请求头 (Key: Value)")
	flags.String(KeyConfigURL, "", "config_web.xml 地址")
}

// NewViper 创建绑定了参数和环境变量的 viper 实例
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("绑定命令行参数失败: %w", err)
		}
	}
	return v, nil
}

// Load 从 viper 读取配置，指定了配置文件时先读取文件
func Load(v *viper.Viper) (*PlayerConfig, error) {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		util.Logger.Debug("已读取配置文件: %s", v.ConfigFileUsed())
	}

	cfg := NewPlayerConfig()
	var err error

	if v.IsSet(KeyLogLevel) {
		if cfg.LogLevel, err = util.ParseLogLevel(v.GetString(KeyLogLevel)); err != nil {
			return nil, err
		}
	}
	cfg.NoLog = v.GetBool(KeyNoLog)
	cfg.NoColor = v.GetBool(KeyNoColor)
	cfg.NoUI = v.GetBool(KeyNoUI)
	cfg.ConfigURL = v.GetString(KeyConfigURL)

	if v.IsSet(KeySink) {
		sink, ok := entity.ParseSinkType(v.GetString(KeySink))
		if !ok {
			return nil, fmt.Errorf("不支持的输出方式: %s", v.GetString(KeySink))
		}
		cfg.Sink = sink
	}
	cfg.OutputPath = v.GetString(KeyOutput)
	if cfg.Sink == entity.SinkTypeFile && cfg.OutputPath == "" {
		return nil, fmt.Errorf("sink=file 需要指定 --%s", KeyOutput)
	}
	if v.IsSet(KeyVolume) {
		cfg.Volume = clamp(v.GetInt(KeyVolume), 0, 100)
	}
	cfg.PlayerPath = v.GetString(KeyPlayerPath)
	cfg.FFmpegPath = v.GetString(KeyFFmpegPath)
	if args := strings.Fields(os.Getenv(EnvPlayerArgs)); len(args) > 0 {
		cfg.PlayerArgs = args
	}
	if args := strings.Fields(os.Getenv(EnvFFmpegArgs)); len(args) > 0 {
		cfg.FFmpegArgs = args
	}

	if v.IsSet(KeyQueueSize) {
		if cfg.QueueSize = v.GetInt(KeyQueueSize); cfg.QueueSize < 1 {
			return nil, fmt.Errorf("--%s 必须大于0", KeyQueueSize)
		}
	}
	if v.IsSet(KeyLiveEdge) {
		cfg.LiveEdge = max(v.GetInt(KeyLiveEdge), 0)
	}
	if v.IsSet(KeySegmentError) {
		policy, ok := entity.ParseSegmentErrorPolicy(v.GetString(KeySegmentError))
		if !ok {
			return nil, fmt.Errorf("不支持的分段失败处理方式: %s", v.GetString(KeySegmentError))
		}
		cfg.SegmentError = policy
	}
	if v.IsSet(KeySegmentRetry) {
		cfg.SegmentRetry = max(v.GetInt(KeySegmentRetry), 0)
	}
	if v.IsSet(KeyKeyRetry) {
		cfg.KeyRetry = max(v.GetInt(KeyKeyRetry), 0)
	}
	if v.IsSet(KeyRefreshMaxDelay) {
		cfg.RefreshMaxDelay = v.GetDuration(KeyRefreshMaxDelay)
	}

	if v.IsSet(KeyTimeout) {
		if cfg.Timeout = v.GetDuration(KeyTimeout); cfg.Timeout <= 0 {
			return nil, fmt.Errorf("--%s 必须大于0", KeyTimeout)
		}
	}
	if v.IsSet(KeyRateLimit) {
		cfg.RateLimit = max(v.GetInt(KeyRateLimit), 0)
	}
	cfg.UserAgent = v.GetString(KeyUserAgent)
	cfg.Proxy = v.GetString(KeyProxy)
	cfg.Headers = ParseHeaders(v.GetStringSlice(KeyHeader))

	return cfg, nil
}

// ParseHeaders 解析 "Key: Value" 形式的请求头
func ParseHeaders(values []string) map[string]string {
	headers := make(map[string]string)
	for _, header := range values {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}

// HTTPOptions 生成HTTP工具配置
func (c *PlayerConfig) HTTPOptions() util.HTTPOptions {
	options := util.DefaultHTTPOptions()
	options.Timeout = c.Timeout
	options.RateLimit = c.RateLimit
	options.ProxyURL = c.Proxy
	options.Headers = c.Headers
	if c.UserAgent != "" {
		options.UserAgent = c.UserAgent
	}
	return options
}

// PipelineConfig 生成播放会话配置
func (c *PlayerConfig) PipelineConfig(playlistURL string) downloader.PipelineConfig {
	pc := downloader.DefaultPipelineConfig(playlistURL)
	pc.QueueCapacity = c.QueueSize
	pc.LiveEdgeSegments = c.LiveEdge
	pc.SegmentErrorPolicy = c.SegmentError
	pc.SegmentRetry.MaxRetries = c.SegmentRetry
	pc.KeyRetry.MaxRetries = c.KeyRetry
	if c.RefreshMaxDelay > 0 {
		pc.RefreshRetry.MaxDelay = c.RefreshMaxDelay
	}
	return pc
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
