package entity

import (
	"bytes"
	"math"
	"time"
)

// ByteRange EXT-X-BYTERANGE
// Offset 保留标签原文，Start 是解析时按同一资源前一段推算出的起始位置
type ByteRange struct {
	Length int64  `json:"Length"`
	Offset *int64 `json:"Offset,omitempty"`
	Start  int64  `json:"Start"`
}

// MediaSegment 媒体段，解析后不再修改
type MediaSegment struct {
	SequenceNumber uint64       `json:"SequenceNumber"`
	Duration       float64      `json:"Duration"`
	Title          string       `json:"Title,omitempty"`
	DateTime       *time.Time   `json:"DateTime,omitempty"`
	ByteRange      *ByteRange   `json:"ByteRange,omitempty"`
	EncryptInfo    *EncryptInfo `json:"EncryptInfo,omitempty"`
	IV             []byte       `json:"IV,omitempty"`
	Discontinuity  bool         `json:"Discontinuity,omitempty"`
	URL            string       `json:"Url"`
	RawURI         string       `json:"RawURI,omitempty"`
}

// NewMediaSegment 创建新的媒体段
func NewMediaSegment() *MediaSegment {
	return &MediaSegment{}
}

// IsEncrypted 是否需要解密
func (m *MediaSegment) IsEncrypted() bool {
	return m.EncryptInfo.IsEncrypted()
}

// GetStopRange 获取结束范围（含），没有BYTERANGE时返回-1
func (m *MediaSegment) GetStopRange() int64 {
	if m.ByteRange == nil {
		return -1
	}
	return m.ByteRange.Start + m.ByteRange.Length - 1
}

// Equals 比较两个媒体段是否相等
func (m *MediaSegment) Equals(other *MediaSegment) bool {
	if other == nil {
		return false
	}

	return m.SequenceNumber == other.SequenceNumber &&
		math.Abs(m.Duration-other.Duration) < 0.001 &&
		m.Title == other.Title &&
		equalByteRange(m.ByteRange, other.ByteRange) &&
		m.EncryptInfo.Equal(other.EncryptInfo) &&
		bytes.Equal(m.IV, other.IV) &&
		m.Discontinuity == other.Discontinuity &&
		equalTime(m.DateTime, other.DateTime) &&
		m.URL == other.URL
}

func equalByteRange(a, b *ByteRange) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Length != b.Length || a.Start != b.Start {
		return false
	}
	if a.Offset == nil || b.Offset == nil {
		return a.Offset == b.Offset
	}
	return *a.Offset == *b.Offset
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// DecodedChunk 解密后的分段数据，出队后所有权交给消费者
type DecodedChunk struct {
	SequenceNumber uint64
	Duration       float64
	Data           []byte
}
