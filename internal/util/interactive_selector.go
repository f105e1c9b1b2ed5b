package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"NHK-Radio-GO/internal/entity"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrSelectionCancelled 用户退出了选择界面
var ErrSelectionCancelled = errors.New("selection cancelled")

// StationChoice 一个地区的一个频道
type StationChoice struct {
	Station entity.StationData
	Kind    entity.ChannelKind
}

// String 选择项显示文本
func (c StationChoice) String() string {
	return fmt.Sprintf("%-7s %s (%s)", c.Kind.DisplayName(), c.Station.AreaJP, c.Station.Area)
}

// SelectionGroup 按地区分组
type SelectionGroup struct {
	Name     string
	Choices  []StationChoice
	StartIdx int
}

// InteractiveSelector 交互式电台选择器
type InteractiveSelector struct {
	title      string
	groups     []SelectionGroup
	allChoices []StationChoice
	initial    int
	input      io.Reader
}

// NewInteractiveSelector 创建选择器
func NewInteractiveSelector() *InteractiveSelector {
	return &InteractiveSelector{
		title: "请选择要收听的电台:",
		input: os.Stdin,
	}
}

// NewStationSelector 按配置中的地区顺序列出所有频道
func NewStationSelector(config *entity.RadiruConfig) *InteractiveSelector {
	s := NewInteractiveSelector()
	for _, station := range config.StreamURL.Data {
		var choices []StationChoice
		for _, kind := range entity.AllChannelKinds {
			if strings.TrimSpace(station.HLSURL(kind)) != "" {
				choices = append(choices, StationChoice{Station: station, Kind: kind})
			}
		}
		if len(choices) > 0 {
			s.AddChoiceGroup(fmt.Sprintf("%s (%s)", station.AreaJP, station.Area), choices)
		}
	}
	return s
}

// SetTitle 设置标题
func (s *InteractiveSelector) SetTitle(title string) *InteractiveSelector {
	s.title = title
	return s
}

// AddChoiceGroup 添加选择组
func (s *InteractiveSelector) AddChoiceGroup(groupName string, choices []StationChoice) *InteractiveSelector {
	s.groups = append(s.groups, SelectionGroup{
		Name:     groupName,
		Choices:  choices,
		StartIdx: len(s.allChoices),
	})
	s.allChoices = append(s.allChoices, choices...)
	return s
}

// Select 预选中某个地区和频道
func (s *InteractiveSelector) Select(area string, kind entity.ChannelKind) *InteractiveSelector {
	for i, c := range s.allChoices {
		if c.Station.Area == area && c.Kind == kind {
			s.initial = i
			break
		}
	}
	return s
}

// Choices 全部选择项
func (s *InteractiveSelector) Choices() []StationChoice {
	return s.allChoices
}

// ShowPrompt 显示选择界面
func (s *InteractiveSelector) ShowPrompt() (StationChoice, error) {
	if len(s.allChoices) == 0 {
		return StationChoice{}, errors.New("没有可选择的电台")
	}
	if !IsInteractiveTerminal() {
		Logger.Warn("终端不支持交互模式，回退到简单模式")
		return s.showSimplePrompt()
	}
	return s.showBubbleTeaPrompt()
}

// IsInteractiveTerminal 标准输入是否是终端
func IsInteractiveTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// StationItem 列表项，分组标题也是一项
type StationItem struct {
	Index       int
	Choice      StationChoice
	GroupName   string
	IsGroupItem bool
}

func (i StationItem) FilterValue() string {
	if i.IsGroupItem {
		return i.GroupName
	}
	return i.Choice.Station.AreaJP + " " + i.Choice.Station.Area + " " + i.Choice.Kind.String()
}

type selectorModel struct {
	list     list.Model
	items    []StationItem
	quitting bool
	finished bool
	result   StationChoice
}

func (m selectorModel) Init() tea.Cmd {
	return nil
}

func (m selectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(StationItem); ok && !item.IsGroupItem {
				m.finished = true
				m.result = item.Choice
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m selectorModel) View() string {
	if m.quitting || m.finished {
		return ""
	}
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).
		Render("使用 ↑/↓ 方向键导航，回车键确认，q 退出") + "\n"
	return header + m.list.View()
}

// buildItems 分组标题后紧跟该组的频道
func (s *InteractiveSelector) buildItems() ([]list.Item, []StationItem, int) {
	var items []list.Item
	var stationItems []StationItem
	cursor := 0
	for _, group := range s.groups {
		groupItem := StationItem{GroupName: group.Name, IsGroupItem: true}
		items = append(items, groupItem)
		stationItems = append(stationItems, groupItem)

		for i, choice := range group.Choices {
			globalIndex := group.StartIdx + i
			if globalIndex == s.initial {
				cursor = len(items)
			}
			item := StationItem{Index: globalIndex, Choice: choice}
			items = append(items, item)
			stationItems = append(stationItems, item)
		}
	}
	return items, stationItems, cursor
}

func (s *InteractiveSelector) showBubbleTeaPrompt() (StationChoice, error) {
	items, stationItems, cursor := s.buildItems()

	l := list.New(items, stationDelegate{}, 80, 20)
	l.Title = s.title
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Select(cursor)

	final, err := tea.NewProgram(selectorModel{list: l, items: stationItems}).Run()
	if err != nil {
		Logger.Warn("交互式选择失败: %s，回退到简单模式", err.Error())
		return s.showSimplePrompt()
	}

	m, ok := final.(selectorModel)
	if !ok || m.quitting || !m.finished {
		return StationChoice{}, ErrSelectionCancelled
	}
	return m.result, nil
}

// stationDelegate 列表项渲染器
type stationDelegate struct{}

func (d stationDelegate) Height() int                             { return 1 }
func (d stationDelegate) Spacing() int                            { return 0 }
func (d stationDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d stationDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(StationItem)
	if !ok {
		return
	}
	isCurrent := index == m.Index()

	if item.IsGroupItem {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		if isCurrent {
			style = style.Bold(true)
		}
		fmt.Fprint(w, style.Render(fmt.Sprintf("=== %s ===", item.GroupName)))
		return
	}

	text := fmt.Sprintf("[%d] %s", item.Index, item.Choice.Kind.DisplayName())
	if isCurrent {
		fmt.Fprint(w, lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true).Render("▶ "+text))
	} else {
		fmt.Fprint(w, lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("  "+text))
	}
}

// showSimplePrompt 非终端环境下的回退方案
func (s *InteractiveSelector) showSimplePrompt() (StationChoice, error) {
	fmt.Println()
	fmt.Println(Console.Style(s.title, StyleHeader))
	fmt.Println()

	for _, group := range s.groups {
		fmt.Println(Console.Style(fmt.Sprintf("=== %s ===", group.Name), StyleWarn))
		for i, choice := range group.Choices {
			fmt.Printf("[%d] %s\n", group.StartIdx+i, choice.Kind.DisplayName())
		}
	}
	fmt.Println()
	fmt.Print("选择: ")

	input, err := bufio.NewReader(s.input).ReadString('\n')
	if err != nil && input == "" {
		return StationChoice{}, ErrSelectionCancelled
	}
	return s.processInput(input)
}

// processInput 解析输入的序号
func (s *InteractiveSelector) processInput(input string) (StationChoice, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "q" {
		return StationChoice{}, ErrSelectionCancelled
	}
	index, err := strconv.Atoi(input)
	if err != nil || index < 0 || index >= len(s.allChoices) {
		return StationChoice{}, fmt.Errorf("无效的选择: %s", input)
	}
	return s.allChoices[index], nil
}
