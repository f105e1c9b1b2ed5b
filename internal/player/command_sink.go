package player

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"NHK-Radio-GO/internal/util"
)

// DefaultPlayerArgs ffplay 从标准输入读取并在输入结束后退出
var DefaultPlayerArgs = []string{"-nodisp", "-autoexit", "-loglevel", "error", "-i", "pipe:0"}

// CommandSink 把数据写入外部播放器的标准输入
type CommandSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	done      chan struct{}
	waitErr   error
	closeOnce sync.Once
	closeErr  error

	// Close 时等待播放器退出的最长时间
	DrainTimeout time.Duration
}

// NewCommandSink 启动外部播放器
func NewCommandSink(binary string, args []string) (*CommandSink, error) {
	util.Logger.Debug("启动播放器: %s %s", binary, strings.Join(args, " "))

	cmd := exec.Command(binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("创建播放器输入管道失败: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动播放器失败: %w", err)
	}

	s := &CommandSink{
		cmd:          cmd,
		stdin:        stdin,
		done:         make(chan struct{}),
		DrainTimeout: 30 * time.Second,
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

// Accept 写入播放器，播放器退出后返回错误
func (s *CommandSink) Accept(data []byte) error {
	select {
	case <-s.done:
		if s.waitErr != nil {
			return fmt.Errorf("播放器已退出: %w", s.waitErr)
		}
		return errors.New("播放器已退出")
	default:
	}
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("写入播放器失败: %w", err)
	}
	return nil
}

// Close 关闭输入，等待播放器播完缓冲后退出
func (s *CommandSink) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		timer := time.NewTimer(s.DrainTimeout)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			util.Logger.Warn("播放器未能按时退出，强制结束")
			_ = s.cmd.Process.Kill()
			<-s.done
		}
		s.closeErr = s.waitErr
	})
	return s.closeErr
}

// Abort 立即结束播放器
func (s *CommandSink) Abort() {
	s.closeOnce.Do(func() {
		_ = s.cmd.Process.Kill()
		_ = s.stdin.Close()
		<-s.done
	})
}
