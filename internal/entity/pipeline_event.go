package entity

import (
	"fmt"
	"time"
)

// SegmentsSkipped 直播窗口跳过的分段区间，闭区间
type SegmentsSkipped struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Count 跳过的分段数量
func (s SegmentsSkipped) Count() uint64 {
	return s.To - s.From + 1
}

func (s SegmentsSkipped) String() string {
	if s.From == s.To {
		return fmt.Sprintf("#%d", s.From)
	}
	return fmt.Sprintf("#%d-#%d", s.From, s.To)
}

// EventType 会话事件类型
type EventType int

const (
	EventStateChanged EventType = iota
	EventPlaylistRefreshed
	EventSegmentsSkipped
	EventSegmentQueued
	EventSegmentPlayed
	EventSegmentFailed
	EventRetry
)

func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "STATE_CHANGED"
	case EventPlaylistRefreshed:
		return "PLAYLIST_REFRESHED"
	case EventSegmentsSkipped:
		return "SEGMENTS_SKIPPED"
	case EventSegmentQueued:
		return "SEGMENT_QUEUED"
	case EventSegmentPlayed:
		return "SEGMENT_PLAYED"
	case EventSegmentFailed:
		return "SEGMENT_FAILED"
	case EventRetry:
		return "RETRY"
	default:
		return "UNKNOWN"
	}
}

// PipelineEvent 会话向观察者报告的事件
type PipelineEvent struct {
	Type     EventType
	State    PipelineState
	Sequence uint64
	Skipped  *SegmentsSkipped
	Bytes    int
	Attempt  int
	Delay    time.Duration
	Err      error
}

// EventListener 事件回调，在生产者或消费者协程中同步调用，不能阻塞
type EventListener func(PipelineEvent)
