package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette
var (
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500") // Warnings
	Green   = lipgloss.Color("#2AFFAA") // Long / profit / success
	Red     = lipgloss.Color("#FF5555") // Short / loss / errors
	Blue    = lipgloss.Color("#3B82F6") // Info

	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
)

// Palette provides a centralized color management
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color

	Long  lipgloss.Color
	Short lipgloss.Color
}

// DefaultPalette returns the default color palette
func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,
		Info:      Blue,
		Text:      Base2,
		TextMuted: Base01,
		Long:      Green,
		Short:     Red,
	}
}

var (
	palette = DefaultPalette()

	TitleStyle   = lipgloss.NewStyle().Foreground(palette.Primary).Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(palette.TextMuted)
	ValueStyle   = lipgloss.NewStyle().Foreground(palette.Text)
	SuccessStyle = lipgloss.NewStyle().Foreground(palette.Success).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(palette.Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(palette.Warning)
	LongStyle    = lipgloss.NewStyle().Foreground(palette.Long)
	ShortStyle   = lipgloss.NewStyle().Foreground(palette.Short)
)

func Title(s string) string   { return TitleStyle.Render(s) }
func Success(s string) string { return SuccessStyle.Render("✓ " + s) }
func Error(s string) string   { return ErrorStyle.Render("✗ " + s) }
func Warning(s string) string { return WarningStyle.Render("! " + s) }

// Side окрашивает сторону позиции.
func Side(side string) string {
	switch strings.ToLower(side) {
	case "long":
		return LongStyle.Render(side)
	case "short":
		return ShortStyle.Render(side)
	}
	return side
}

// Signed окрашивает число по знаку (PnL).
func Signed(value string, negative bool) string {
	if negative {
		return ShortStyle.Render("-" + value)
	}
	return LongStyle.Render(value)
}

// KV - пара "метка: значение" с выравниванием метки по width.
type KV struct {
	Key   string
	Value string
}

// Fields рендерит список пар в столбик.
func Fields(pairs ...KV) string {
	width := 0
	for _, p := range pairs {
		if len(p.Key) > width {
			width = len(p.Key)
		}
	}
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(LabelStyle.Width(width + 2).Render(p.Key + ":"))
		b.WriteString(ValueStyle.Render(p.Value))
		b.WriteString("\n")
	}
	return b.String()
}

// Table рендерит таблицу с заголовком.
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(palette.TextMuted)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TitleStyle.Padding(0, 1)
			}
			return ValueStyle.Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}
