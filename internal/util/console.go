package util

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ConsoleStyle 控制台文本样式
type ConsoleStyle int

const (
	StylePlain ConsoleStyle = iota
	StyleHeader
	StyleInfo
	StyleWarn
	StyleError
	StyleMuted
)

var consoleStyles = map[ConsoleStyle]lipgloss.Style{
	StylePlain:  lipgloss.NewStyle(),
	StyleHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
	StyleInfo:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	StyleWarn:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	StyleError:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	StyleMuted:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
}

// ConsoleManager 控制台管理器
type ConsoleManager struct {
	out           io.Writer
	supportColors bool
}

// Console 全局控制台
var Console *ConsoleManager

func init() {
	Console = &ConsoleManager{
		out:           os.Stdout,
		supportColors: true,
	}
}

// InitConsole 初始化控制台，noAnsiColor 同时作用于日志
func InitConsole(noAnsiColor bool) {
	Console.supportColors = !noAnsiColor
	Logger.NoColor = noAnsiColor
	Logger.SetConsoleOutput(os.Stderr)
}

// SetOutput 设置输出目标
func (c *ConsoleManager) SetOutput(w io.Writer) {
	c.out = w
}

// Style 给文本加样式，禁用颜色时原样返回
func (c *ConsoleManager) Style(text string, style ConsoleStyle) string {
	if !c.supportColors {
		return text
	}
	return consoleStyles[style].Render(text)
}

// Println 输出一行带样式的文本
func (c *ConsoleManager) Println(text string, style ConsoleStyle) {
	fmt.Fprintln(c.out, c.Style(text, style))
}

// PrintTable 输出表格
func (c *ConsoleManager) PrintTable(headers []string, rows [][]string) {
	fmt.Fprintln(c.out, c.RenderTable(headers, rows))
}

// RenderTable 渲染表格
func (c *ConsoleManager) RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)

	if c.supportColors {
		headerStyle := consoleStyles[StyleHeader].Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)
		t = t.BorderStyle(consoleStyles[StyleMuted]).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
	} else {
		cellStyle := lipgloss.NewStyle().Padding(0, 1)
		t = t.StyleFunc(func(row, col int) lipgloss.Style { return cellStyle })
	}
	return t.String()
}
