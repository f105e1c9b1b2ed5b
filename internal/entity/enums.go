package entity

import "strings"

// EncryptMethod 加密方法枚举
type EncryptMethod int

const (
	EncryptMethodNone EncryptMethod = iota
	EncryptMethodAES128
	EncryptMethodUNKNOWN
)

func (e EncryptMethod) String() string {
	switch e {
	case EncryptMethodNone:
		return "NONE"
	case EncryptMethodAES128:
		return "AES-128"
	default:
		return "UNKNOWN"
	}
}

// ParseEncryptMethod 解析EXT-X-KEY的METHOD属性
func ParseEncryptMethod(s string) EncryptMethod {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return EncryptMethodNone
	case "AES-128":
		return EncryptMethodAES128
	default:
		return EncryptMethodUNKNOWN
	}
}

// MarshalJSON 实现JSON序列化
func (e EncryptMethod) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.String() + `"`), nil
}

// UnmarshalJSON 实现JSON反序列化
func (e *EncryptMethod) UnmarshalJSON(data []byte) error {
	*e = ParseEncryptMethod(strings.Trim(string(data), `"`))
	return nil
}

// ChannelKind 频道类型
type ChannelKind int

const (
	ChannelR1 ChannelKind = iota
	ChannelR2
	ChannelFM
)

func (c ChannelKind) String() string {
	switch c {
	case ChannelR1:
		return "r1"
	case ChannelR2:
		return "r2"
	case ChannelFM:
		return "fm"
	default:
		return "unknown"
	}
}

// DisplayName 频道显示名称
func (c ChannelKind) DisplayName() string {
	switch c {
	case ChannelR1:
		return "NHK R1"
	case ChannelR2:
		return "NHK R2"
	case ChannelFM:
		return "NHK FM"
	default:
		return "UNKNOWN"
	}
}

// AllChannelKinds 全部频道类型
var AllChannelKinds = []ChannelKind{ChannelR1, ChannelR2, ChannelFM}

// ParseChannelKind 解析频道类型，大小写不敏感
func ParseChannelKind(s string) (ChannelKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r1":
		return ChannelR1, true
	case "r2":
		return ChannelR2, true
	case "fm", "r3":
		return ChannelFM, true
	default:
		return ChannelR1, false
	}
}

// PipelineState 播放会话状态
type PipelineState int

const (
	StateIdle PipelineState = iota
	StateRefreshing
	StateDeltaFetching
	StateDownloading
	StateDecrypting
	StateBuffering
	StateCancelled
	StateEndOfStream
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRefreshing:
		return "REFRESHING"
	case StateDeltaFetching:
		return "DELTA_FETCHING"
	case StateDownloading:
		return "DOWNLOADING"
	case StateDecrypting:
		return "DECRYPTING"
	case StateBuffering:
		return "BUFFERING"
	case StateCancelled:
		return "CANCELLED"
	case StateEndOfStream:
		return "END_OF_STREAM"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal 是否为终止状态
func (s PipelineState) IsTerminal() bool {
	return s == StateCancelled || s == StateEndOfStream || s == StateFailed
}

// SessionOutcome 会话结果，三者必居其一
type SessionOutcome int

const (
	OutcomeEndOfStream SessionOutcome = iota
	OutcomeCancelled
	OutcomeFailed
)

func (o SessionOutcome) String() string {
	switch o {
	case OutcomeEndOfStream:
		return "END_OF_STREAM"
	case OutcomeCancelled:
		return "CANCELLED"
	case OutcomeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// SegmentErrorPolicy 分段级错误处理策略
type SegmentErrorPolicy int

const (
	SegmentErrorWarn SegmentErrorPolicy = iota // 记录警告并跳过
	SegmentErrorSkip                           // 静默跳过
	SegmentErrorFail                           // 终止会话
)

func (p SegmentErrorPolicy) String() string {
	switch p {
	case SegmentErrorWarn:
		return "warn"
	case SegmentErrorSkip:
		return "skip"
	case SegmentErrorFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseSegmentErrorPolicy 解析策略字符串
func ParseSegmentErrorPolicy(s string) (SegmentErrorPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "":
		return SegmentErrorWarn, true
	case "skip", "silent":
		return SegmentErrorSkip, true
	case "fail":
		return SegmentErrorFail, true
	default:
		return SegmentErrorWarn, false
	}
}

// SinkType 输出类型
type SinkType int

const (
	SinkTypePlayer  SinkType = iota // 外部播放器 (ffplay)
	SinkTypeSpeaker                 // ffmpeg解码 + 本地声卡
	SinkTypeStdout                  // 写入标准输出
	SinkTypeFile                    // 写入文件
)

func (s SinkType) String() string {
	switch s {
	case SinkTypePlayer:
		return "player"
	case SinkTypeSpeaker:
		return "speaker"
	case SinkTypeStdout:
		return "stdout"
	case SinkTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// ParseSinkType 解析输出类型
func ParseSinkType(s string) (SinkType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "ffplay", "":
		return SinkTypePlayer, true
	case "speaker":
		return SinkTypeSpeaker, true
	case "stdout", "-":
		return SinkTypeStdout, true
	case "file":
		return SinkTypeFile, true
	default:
		return SinkTypePlayer, false
	}
}
