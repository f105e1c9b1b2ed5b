package downloader

import (
	"context"
	"sync"

	"NHK-Radio-GO/internal/entity"
)

// SegmentQueue 有界的单生产者单消费者队列，满时 Push 阻塞形成背压
type SegmentQueue struct {
	ch        chan *entity.DecodedChunk
	closeOnce sync.Once
}

// NewSegmentQueue 创建容量为 capacity 的队列
func NewSegmentQueue(capacity int) *SegmentQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &SegmentQueue{
		ch: make(chan *entity.DecodedChunk, capacity),
	}
}

// Push 入队，队列满时等待，ctx 取消时返回错误
func (q *SegmentQueue) Push(ctx context.Context, chunk *entity.DecodedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop 出队；队列关闭且已取空时 ok 为 false
func (q *SegmentQueue) Pop(ctx context.Context) (chunk *entity.DecodedChunk, ok bool, err error) {
	select {
	case chunk, ok = <-q.ch:
		return chunk, ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close 生产者结束，只能由生产者调用
func (q *SegmentQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}

// Len 当前缓冲的分段数
func (q *SegmentQueue) Len() int {
	return len(q.ch)
}

// Cap 队列容量
func (q *SegmentQueue) Cap() int {
	return cap(q.ch)
}
