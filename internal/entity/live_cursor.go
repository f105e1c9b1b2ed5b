package entity

import "fmt"

// LiveCursor 已消费的最大分段序号，值类型，只由窗口跟踪器推进
type LiveCursor struct {
	last    uint64
	started bool
}

// NewLiveCursor 位于第一个分段之前的游标
func NewLiveCursor() LiveCursor {
	return LiveCursor{}
}

// LiveCursorAt 已消费到 seq 的游标
func LiveCursorAt(seq uint64) LiveCursor {
	return LiveCursor{last: seq, started: true}
}

// Started 是否已经消费过分段
func (c LiveCursor) Started() bool {
	return c.started
}

// Last 已消费的最大序号，未开始时无意义
func (c LiveCursor) Last() uint64 {
	return c.last
}

// Consumed 判断序号是否已经被消费
func (c LiveCursor) Consumed(seq uint64) bool {
	return c.started && seq <= c.last
}

// Advance 推进到 seq，不会后退
func (c LiveCursor) Advance(seq uint64) LiveCursor {
	if c.started && seq <= c.last {
		return c
	}
	return LiveCursor{last: seq, started: true}
}

func (c LiveCursor) String() string {
	if !c.started {
		return "cursor(start)"
	}
	return fmt.Sprintf("cursor(%d)", c.last)
}
