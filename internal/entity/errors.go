package entity

import (
	"errors"
	"fmt"
)

// ErrMalformedPlaylist 播放列表格式错误
var ErrMalformedPlaylist = errors.New("malformed playlist")

// MalformedPlaylistError 播放列表格式错误，Line 从1开始，0表示整体错误
type MalformedPlaylistError struct {
	Line   int
	Reason string
}

func (e *MalformedPlaylistError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed playlist (line %d): %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed playlist: %s", e.Reason)
}

func (e *MalformedPlaylistError) Is(target error) bool {
	return target == ErrMalformedPlaylist
}

// KeyFetchError 密钥获取失败或长度不是16字节
type KeyFetchError struct {
	URI string
	Err error
}

func (e *KeyFetchError) Error() string {
	return fmt.Sprintf("key fetch failed (%s): %v", e.URI, e.Err)
}

func (e *KeyFetchError) Unwrap() error {
	return e.Err
}

// DecryptionError 解密失败
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return "decryption failed: " + e.Reason
}

// SegmentError 单个分段处理失败，只影响该分段
type SegmentError struct {
	Sequence uint64
	URL      string
	Err      error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment #%d failed: %v", e.Sequence, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// SinkError 输出端拒绝数据，对会话是致命的
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: %v", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
