package player

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrSinkClosed 输出端已关闭
var ErrSinkClosed = errors.New("sink closed")

// Sink 播放输出端，按顺序接收解密后的容器数据
// Accept 返回的错误对会话是致命的；Close 在正常结束时调用，应等待已写入的数据播放完
type Sink interface {
	Accept(data []byte) error
	Close() error
}

// Aborter 会话取消时立即停止，解除阻塞中的 Accept
type Aborter interface {
	Abort()
}

// AbortSink 中断输出端，不支持 Abort 时退化为 Close
func AbortSink(s Sink) {
	if a, ok := s.(Aborter); ok {
		a.Abort()
		return
	}
	_ = s.Close()
}

// WriterSink 把数据原样写入 io.Writer（标准输出或文件）
type WriterSink struct {
	mutex  sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
	bytes  int64
}

// NewWriterSink 写入 w，closer 可以为 nil
func NewWriterSink(w io.Writer, closer io.Closer) *WriterSink {
	return &WriterSink{w: w, closer: closer}
}

// NewStdoutSink 写入标准输出，方便通过管道交给其他播放器
func NewStdoutSink() *WriterSink {
	return NewWriterSink(os.Stdout, nil)
}

// NewFileSink 写入文件，文件已存在时追加
func NewFileSink(path string) (*WriterSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}
	return NewWriterSink(file, file), nil
}

// Accept 写入一段数据
func (s *WriterSink) Accept(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	n, err := s.w.Write(data)
	s.bytes += int64(n)
	return err
}

// Written 已写入的字节数
func (s *WriterSink) Written() int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.bytes
}

// Close 关闭底层文件，可重复调用
func (s *WriterSink) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
