package player

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"NHK-Radio-GO/internal/util"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	SpeakerSampleRate   = beep.SampleRate(48000)
	SpeakerBufferSize   = 250 * time.Millisecond
	SampleChannelSize   = 16384
	VolumeCurveExponent = 0.5
	MinVolumeDB         = -10.0
)

// DefaultDecoderArgs ffmpeg 把标准输入解码为 48kHz 双声道 s16le
var DefaultDecoderArgs = []string{
	"-loglevel", "error", "-i", "pipe:0",
	"-f", "s16le", "-acodec", "pcm_s16le", "-ac", "2", "-ar", "48000", "pipe:1",
}

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(SpeakerSampleRate, SpeakerSampleRate.N(SpeakerBufferSize))
	})
	return speakerErr
}

// PercentToVolume 音量百分比映射为 effects.Volume 的指数（底数为2）
func PercentToVolume(p float64) float64 {
	if p <= 0 {
		return MinVolumeDB
	}
	if p >= 100 {
		return 0
	}
	adjusted := math.Pow(p/100.0, VolumeCurveExponent)
	return (1.0 - adjusted) * MinVolumeDB
}

// SpeakerSink 用 ffmpeg 解码，再通过 beep 直接输出到声卡
type SpeakerSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	samples  chan [2]float64
	drained  chan struct{}
	stopped  chan struct{}
	exited   chan struct{}
	waitErr  error
	stopOnce sync.Once

	volume *effects.Volume
	ctrl   *beep.Ctrl

	closeOnce sync.Once
	closeErr  error

	DrainTimeout time.Duration
}

// NewSpeakerSink 启动解码进程并开始播放，volumePercent 取值 0-100
func NewSpeakerSink(ffmpegBinary string, args []string, volumePercent int) (*SpeakerSink, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("初始化音频设备失败: %w", err)
	}

	util.Logger.Debug("启动解码器: %s %s", ffmpegBinary, strings.Join(args, " "))
	cmd := exec.Command(ffmpegBinary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("创建解码器输入管道失败: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("创建解码器输出管道失败: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动解码器失败: %w", err)
	}

	s := &SpeakerSink{
		cmd:          cmd,
		stdin:        stdin,
		samples:      make(chan [2]float64, SampleChannelSize),
		drained:      make(chan struct{}),
		stopped:      make(chan struct{}),
		exited:       make(chan struct{}),
		DrainTimeout: 30 * time.Second,
	}

	go s.decodeLoop(stdout)

	streamer := &pcmStreamer{sink: s}
	s.volume = &effects.Volume{
		Streamer: streamer,
		Base:     2,
		Volume:   PercentToVolume(float64(volumePercent)),
		Silent:   volumePercent <= 0,
	}
	s.ctrl = &beep.Ctrl{Streamer: s.volume}
	speaker.Play(s.ctrl)
	return s, nil
}

// decodeLoop 读取 PCM 并送入采样通道，进程退出后关闭通道
func (s *SpeakerSink) decodeLoop(stdout io.Reader) {
	defer func() {
		close(s.samples)
		s.waitErr = s.cmd.Wait()
		close(s.exited)
	}()

	reader := bufio.NewReaderSize(stdout, 16*1024)
	frame := make([]byte, 4)
	for {
		if _, err := io.ReadFull(reader, frame); err != nil {
			return
		}
		left := int16(binary.LittleEndian.Uint16(frame[0:2]))
		right := int16(binary.LittleEndian.Uint16(frame[2:4]))
		sample := [2]float64{float64(left) / 32768, float64(right) / 32768}
		select {
		case s.samples <- sample:
		case <-s.stopped:
			_, _ = io.Copy(io.Discard, reader)
			return
		}
	}
}

// SetVolume 调整音量，播放中由界面的音量键调用
func (s *SpeakerSink) SetVolume(percent int) {
	speaker.Lock()
	s.volume.Volume = PercentToVolume(float64(percent))
	s.volume.Silent = percent <= 0
	speaker.Unlock()
}

// Accept 写入解码器
func (s *SpeakerSink) Accept(data []byte) error {
	select {
	case <-s.exited:
		return errors.New("解码器已退出")
	default:
	}
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("写入解码器失败: %w", err)
	}
	return nil
}

func (s *SpeakerSink) stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// Close 关闭输入并等待剩余音频播完
func (s *SpeakerSink) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		timer := time.NewTimer(s.DrainTimeout)
		defer timer.Stop()
		select {
		case <-s.drained:
		case <-timer.C:
			util.Logger.Warn("音频未能按时播完，强制结束")
			_ = s.cmd.Process.Kill()
		}
		s.stop()
		<-s.exited
		s.closeErr = s.waitErr
	})
	return s.closeErr
}

// Abort 立即停止输出
func (s *SpeakerSink) Abort() {
	s.closeOnce.Do(func() {
		speaker.Lock()
		s.ctrl.Paused = true
		speaker.Unlock()
		s.stop()
		_ = s.cmd.Process.Kill()
		_ = s.stdin.Close()
		<-s.exited
	})
}

// pcmStreamer 非阻塞地从采样通道取数据，缓冲为空时输出静音
type pcmStreamer struct {
	sink *SpeakerSink
	done bool
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if p.done {
		return 0, false
	}
	filled := 0
loop:
	for filled < len(samples) {
		select {
		case sample, more := <-p.sink.samples:
			if !more {
				p.done = true
				close(p.sink.drained)
				break loop
			}
			samples[filled] = sample
			filled++
		default:
			break loop
		}
	}
	if p.done && filled == 0 {
		return 0, false
	}
	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (p *pcmStreamer) Err() error {
	return nil
}
