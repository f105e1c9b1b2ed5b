package entity

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SessionStats 播放会话统计，生产者和消费者并发写入，界面只读
type SessionStats struct {
	SegmentsQueued  atomic.Int64
	SegmentsPlayed  atomic.Int64
	SegmentsFailed  atomic.Int64
	SegmentsSkipped atomic.Int64 // 直播窗口跳过
	Refreshes       atomic.Int64

	mutex      sync.Mutex
	records    []byteRecord
	totalBytes int64
	startTime  time.Time
	maxRecords int
}

type byteRecord struct {
	at    time.Time
	bytes int64
}

// NewSessionStats 创建统计容器
func NewSessionStats() *SessionStats {
	return &SessionStats{
		records:    make([]byteRecord, 0, 64),
		startTime:  time.Now(),
		maxRecords: 64,
	}
}

// AddBytes 记录下载字节数
func (s *SessionStats) AddBytes(n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.totalBytes += int64(n)
	s.records = append(s.records, byteRecord{at: time.Now(), bytes: int64(n)})
	if len(s.records) > s.maxRecords {
		s.records = s.records[1:]
	}
}

// TotalBytes 下载总字节数
func (s *SessionStats) TotalBytes() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.totalBytes
}

// CurrentSpeed 最近30秒的平均下载速度（字节/秒）
func (s *SessionStats) CurrentSpeed() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	const window = 30 * time.Second

	var total int64
	for i := len(s.records) - 1; i >= 0; i-- {
		if now.Sub(s.records[i].at) > window {
			break
		}
		total += s.records[i].bytes
	}
	elapsed := now.Sub(s.startTime)
	if elapsed > window {
		elapsed = window
	}
	if elapsed <= 0 || total == 0 {
		return 0
	}
	return int64(float64(total) / elapsed.Seconds())
}

// Elapsed 会话持续时间
func (s *SessionStats) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// StatsSnapshot 统计快照
type StatsSnapshot struct {
	SegmentsQueued  int64
	SegmentsPlayed  int64
	SegmentsFailed  int64
	SegmentsSkipped int64
	Refreshes       int64
	TotalBytes      int64
	Speed           int64
	Elapsed         time.Duration
}

// Snapshot 读取当前统计
func (s *SessionStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		SegmentsQueued:  s.SegmentsQueued.Load(),
		SegmentsPlayed:  s.SegmentsPlayed.Load(),
		SegmentsFailed:  s.SegmentsFailed.Load(),
		SegmentsSkipped: s.SegmentsSkipped.Load(),
		Refreshes:       s.Refreshes.Load(),
		TotalBytes:      s.TotalBytes(),
		Speed:           s.CurrentSpeed(),
		Elapsed:         s.Elapsed(),
	}
}

// FormatSpeed 格式化速度显示
func FormatSpeed(bytesPerSecond int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytesPerSecond >= MB:
		return fmt.Sprintf("%.2f MB/s", float64(bytesPerSecond)/MB)
	case bytesPerSecond >= KB:
		return fmt.Sprintf("%.1f KB/s", float64(bytesPerSecond)/KB)
	default:
		return fmt.Sprintf("%d B/s", bytesPerSecond)
	}
}
