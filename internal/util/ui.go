package util

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"NHK-Radio-GO/internal/entity"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	grey   = lipgloss.Color("240")
	green  = lipgloss.Color("46")
	yellow = lipgloss.Color("226")
	red    = lipgloss.Color("196")
	purple = lipgloss.Color("99")
	white  = lipgloss.Color("255")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(white).Background(purple).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(grey).Width(10)
	helpStyle  = lipgloss.NewStyle().Foreground(grey)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(purple).Padding(0, 1)
)

const (
	uiRefreshInterval = 200 * time.Millisecond
	maxUILogLines     = 4
	volumeStep        = 10
)

// VolumeSetter 可以调节音量的输出端
type VolumeSetter interface {
	SetVolume(percent int)
}

// NowPlaying 当前播放的电台
type NowPlaying struct {
	AreaJP  string
	Area    string
	Kind    entity.ChannelKind
	URL     string
	Program *entity.BroadcastEvent
}

// Title 界面标题
func (n NowPlaying) Title() string {
	if n.AreaJP == "" {
		return n.URL
	}
	return fmt.Sprintf("%s %s", n.Kind.DisplayName(), n.AreaJP)
}

type uiLogLine struct {
	level   LogLevel
	message string
}

// uiStatus 会话协程写入，界面定时读取
type uiStatus struct {
	mutex   sync.Mutex
	playing NowPlaying
	stats   *entity.SessionStats
	state   entity.PipelineState
	lastSeq uint64
	logs    []uiLogLine

	volume       int
	volumeTarget VolumeSetter
}

func (s *uiStatus) snapshot() (NowPlaying, entity.StatsSnapshot, entity.PipelineState, uint64, []uiLogLine) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var stats entity.StatsSnapshot
	if s.stats != nil {
		stats = s.stats.Snapshot()
	}
	logs := append([]uiLogLine(nil), s.logs...)
	return s.playing, stats, s.state, s.lastSeq, logs
}

func (s *uiStatus) addLog(level LogLevel, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.logs = append(s.logs, uiLogLine{level: level, message: message})
	if len(s.logs) > maxUILogLines {
		s.logs = s.logs[len(s.logs)-maxUILogLines:]
	}
}

// PlayerUI 正在播放界面，支持切换频道
type PlayerUI struct {
	status   *uiStatus
	program  *tea.Program
	switches chan entity.ChannelKind
	done     chan struct{}
	doneOnce sync.Once
}

// NewPlayerUI 创建界面，switchable 为 false 时不响应频道切换
func NewPlayerUI(playing NowPlaying, switchable bool) *PlayerUI {
	ui := &PlayerUI{
		status:   &uiStatus{playing: playing},
		switches: make(chan entity.ChannelKind, 1),
		done:     make(chan struct{}),
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(yellow)

	ui.program = tea.NewProgram(playerModel{
		ui:         ui,
		spinner:    sp,
		switchable: switchable,
	})
	return ui
}

// Run 运行界面直到用户退出或调用 Quit，期间日志转给界面
func (ui *PlayerUI) Run() error {
	Logger.SetUIHook(ui.status.addLog)
	Logger.SetUIActive(true)
	defer func() {
		Logger.SetUIActive(false)
		Logger.SetUIHook(nil)
		ui.doneOnce.Do(func() { close(ui.done) })
	}()
	_, err := ui.program.Run()
	return err
}

// SetSession 切换到新的会话
func (ui *PlayerUI) SetSession(playing NowPlaying, stats *entity.SessionStats) {
	ui.status.mutex.Lock()
	defer ui.status.mutex.Unlock()
	ui.status.playing = playing
	ui.status.stats = stats
	ui.status.state = entity.StateIdle
	ui.status.lastSeq = 0
}

// SetVolumeTarget 当前会话的音量控制，target 为 nil 时音量键无效
func (ui *PlayerUI) SetVolumeTarget(target VolumeSetter, percent int) {
	ui.status.mutex.Lock()
	defer ui.status.mutex.Unlock()
	ui.status.volumeTarget = target
	ui.status.volume = percent
}

// Volume 当前音量百分比
func (ui *PlayerUI) Volume() int {
	ui.status.mutex.Lock()
	defer ui.status.mutex.Unlock()
	return ui.status.volume
}

// volumeInfo 返回当前音量，不可调节时 ok 为 false
func (ui *PlayerUI) volumeInfo() (int, bool) {
	ui.status.mutex.Lock()
	defer ui.status.mutex.Unlock()
	return ui.status.volume, ui.status.volumeTarget != nil
}

func (ui *PlayerUI) adjustVolume(delta int) {
	ui.status.mutex.Lock()
	defer ui.status.mutex.Unlock()
	if ui.status.volumeTarget == nil {
		return
	}
	ui.status.volume = min(max(ui.status.volume+delta, 0), 100)
	ui.status.volumeTarget.SetVolume(ui.status.volume)
}

// OnEvent 会话事件回调，只更新状态不阻塞
func (ui *PlayerUI) OnEvent(event entity.PipelineEvent) {
	ui.status.mutex.Lock()
	defer ui.status.mutex.Unlock()
	switch event.Type {
	case entity.EventStateChanged:
		ui.status.state = event.State
	case entity.EventSegmentPlayed:
		ui.status.lastSeq = event.Sequence
	}
}

// Switches 用户请求切换的频道
func (ui *PlayerUI) Switches() <-chan entity.ChannelKind {
	return ui.switches
}

// Done 界面退出后关闭
func (ui *PlayerUI) Done() <-chan struct{} {
	return ui.done
}

// Quit 结束界面
func (ui *PlayerUI) Quit() {
	ui.program.Quit()
}

func (ui *PlayerUI) requestSwitch(kind entity.ChannelKind) {
	// 只保留最新的请求
	select {
	case <-ui.switches:
	default:
	}
	ui.switches <- kind
}

type uiTickMsg time.Time

func uiTick() tea.Cmd {
	return tea.Tick(uiRefreshInterval, func(t time.Time) tea.Msg { return uiTickMsg(t) })
}

type playerModel struct {
	ui         *PlayerUI
	spinner    spinner.Model
	switchable bool
	width      int
}

func (m playerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, uiTick())
}

func (m playerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "+", "=", "up", "k":
			m.ui.adjustVolume(volumeStep)
			return m, nil
		case "-", "down", "j":
			m.ui.adjustVolume(-volumeStep)
			return m, nil
		}
		if !m.switchable {
			return m, nil
		}
		playing, _, _, _, _ := m.ui.status.snapshot()
		switch msg.String() {
		case "1":
			m.ui.requestSwitch(entity.ChannelR1)
		case "2":
			m.ui.requestSwitch(entity.ChannelR2)
		case "3":
			m.ui.requestSwitch(entity.ChannelFM)
		case "left", "h":
			m.ui.requestSwitch(cycleChannel(playing.Kind, -1))
		case "right", "l":
			m.ui.requestSwitch(cycleChannel(playing.Kind, 1))
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case uiTickMsg:
		return m, uiTick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m playerModel) View() string {
	playing, stats, state, lastSeq, logs := m.ui.status.snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("NHK らじる★らじる"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("电台", lipgloss.NewStyle().Bold(true).Render(playing.Title()))
	if playing.Program != nil {
		row("节目", playing.Program.Title())
		if start := FormatJapaneseTime(playing.Program.StartDate); start != "" {
			end := FormatJapaneseTime(playing.Program.EndDate)
			row("时间", strings.TrimSpace(start+" - "+end))
		}
		if summary := playing.Program.Summary(); summary != "" {
			row("", helpStyle.Render(TruncateString(summary, 60)))
		}
	}
	b.WriteString("\n")

	row("状态", m.renderState(state))
	row("分段", fmt.Sprintf("已播放 %d  跳过 %d  失败 %d  最新 #%d",
		stats.SegmentsPlayed, stats.SegmentsSkipped, stats.SegmentsFailed, lastSeq))
	row("流量", fmt.Sprintf("%s  %s  %s",
		FormatFileSize(stats.TotalBytes), entity.FormatSpeed(stats.Speed), FormatDuration(stats.Elapsed)))
	volume, adjustable := m.ui.volumeInfo()
	if adjustable {
		row("音量", fmt.Sprintf("%d%%", volume))
	}

	if len(logs) > 0 {
		b.WriteString("\n")
		for _, line := range logs {
			b.WriteString(renderLogLine(line))
			b.WriteString("\n")
		}
	}

	help := "q 退出"
	if adjustable {
		help = "+/- 音量  " + help
	}
	if m.switchable {
		help = "1/2/3 切换频道  ←/→ 上一个/下一个  " + help
	}

	box := boxStyle
	if m.width > 4 {
		box = box.Width(min(m.width-2, 80))
	}
	return box.Render(strings.TrimRight(b.String(), "\n")) + "\n" + helpStyle.Render(help) + "\n"
}

func (m playerModel) renderState(state entity.PipelineState) string {
	switch state {
	case entity.StateBuffering, entity.StateDownloading, entity.StateDecrypting, entity.StateDeltaFetching:
		return lipgloss.NewStyle().Foreground(green).Render("▶ " + state.String())
	case entity.StateFailed:
		return lipgloss.NewStyle().Foreground(red).Render(state.String())
	case entity.StateCancelled, entity.StateEndOfStream:
		return lipgloss.NewStyle().Foreground(grey).Render(state.String())
	default:
		return m.spinner.View() + " " + state.String()
	}
}

func renderLogLine(line uiLogLine) string {
	color := grey
	switch line.level {
	case LogLevelWarn:
		color = yellow
	case LogLevelError:
		color = red
	}
	return lipgloss.NewStyle().Foreground(color).Render(TruncateString(line.message, 76))
}

func cycleChannel(kind entity.ChannelKind, delta int) entity.ChannelKind {
	kinds := entity.AllChannelKinds
	for i, k := range kinds {
		if k == kind {
			return kinds[(i+delta+len(kinds))%len(kinds)]
		}
	}
	return kinds[0]
}
