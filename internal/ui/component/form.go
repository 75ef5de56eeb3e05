package component

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/perps-client/internal/ui/style"
)

// ErrCancelled - пользователь закрыл форму (esc / ctrl+c).
var ErrCancelled = errors.New("input cancelled")

// FieldType represents the type of form field
type FieldType int

const (
	FieldTypeText FieldType = iota
	FieldTypeNumber
	FieldTypePassword
	FieldTypeSelect
)

// FormField represents a single form field
type FormField struct {
	Name        string
	Label       string
	Type        FieldType
	Value       string
	Options     []string // For select fields
	Placeholder string
	Required    bool
	Validation  func(string) error
	Error       string

	textInput   textinput.Model
	selectedIdx int
}

// Form - модель bubbletea для ввода недостающих параметров команды.
// Enter на последнем поле валидирует и завершает форму.
type Form struct {
	title      string
	fields     []FormField
	focusIndex int

	submitted bool
	cancelled bool

	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	inputStyle   lipgloss.Style
	focusedStyle lipgloss.Style
	errorStyle   lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewForm creates a new form component
func NewForm(title string) *Form {
	palette := style.DefaultPalette()
	return &Form{
		title:      title,
		titleStyle: style.TitleStyle.MarginBottom(1),
		labelStyle: lipgloss.NewStyle().Foreground(palette.Text).Bold(true),
		inputStyle: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted),
		focusedStyle: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Primary),
		errorStyle: lipgloss.NewStyle().Foreground(palette.Error),
		hintStyle:  lipgloss.NewStyle().Foreground(palette.TextMuted).MarginTop(1),
	}
}

// AddField adds a field to the form
func (f *Form) AddField(field FormField) *Form {
	ti := textinput.New()
	ti.Width = 48
	ti.Placeholder = field.Placeholder
	ti.SetValue(field.Value)
	switch field.Type {
	case FieldTypePassword:
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	case FieldTypeNumber:
		if ti.Placeholder == "" {
			ti.Placeholder = "0"
		}
	case FieldTypeSelect:
		for i, opt := range field.Options {
			if opt == field.Value {
				field.selectedIdx = i
			}
		}
		if field.Value == "" && len(field.Options) > 0 {
			field.Value = field.Options[0]
		}
	}
	field.textInput = ti

	f.fields = append(f.fields, field)
	if len(f.fields) == 1 {
		f.focus(0)
	}
	return f
}

// Init initializes the form
func (f *Form) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles form input and updates
func (f *Form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(f.fields) == 0 {
		f.submitted = true
		return f, tea.Quit
	}

	field := &f.fields[f.focusIndex]
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			f.cancelled = true
			return f, tea.Quit
		case "tab", "down":
			if field.Type == FieldTypeSelect && key.String() == "down" {
				f.moveOption(1)
				return f, nil
			}
			f.focus(f.focusIndex + 1)
			return f, nil
		case "shift+tab", "up":
			if field.Type == FieldTypeSelect && key.String() == "up" {
				f.moveOption(-1)
				return f, nil
			}
			f.focus(f.focusIndex - 1)
			return f, nil
		case "left", "right":
			if field.Type == FieldTypeSelect {
				if key.String() == "left" {
					f.moveOption(-1)
				} else {
					f.moveOption(1)
				}
				return f, nil
			}
		case "enter":
			if f.focusIndex < len(f.fields)-1 {
				f.focus(f.focusIndex + 1)
				return f, nil
			}
			if f.Validate() {
				f.submitted = true
				return f, tea.Quit
			}
			return f, nil
		}
	}

	if field.Type == FieldTypeSelect {
		return f, nil
	}
	var cmd tea.Cmd
	field.textInput, cmd = field.textInput.Update(msg)
	field.Value = field.textInput.Value()
	field.Error = ""
	return f, cmd
}

// View renders the form
func (f *Form) View() string {
	if f.submitted || f.cancelled {
		return ""
	}
	var content strings.Builder
	if f.title != "" {
		content.WriteString(f.titleStyle.Render(f.title))
		content.WriteString("\n")
	}

	for i, field := range f.fields {
		label := field.Label
		if field.Required {
			label += " *"
		}
		content.WriteString(f.labelStyle.Render(label))
		content.WriteString("\n")

		fieldStyle := f.inputStyle
		if i == f.focusIndex {
			fieldStyle = f.focusedStyle
		}
		if field.Type == FieldTypeSelect {
			content.WriteString(fieldStyle.Render("‹ " + field.Value + " ›"))
		} else {
			content.WriteString(fieldStyle.Render(field.textInput.View()))
		}
		content.WriteString("\n")

		if field.Error != "" {
			content.WriteString(f.errorStyle.Render("⚠ " + field.Error))
			content.WriteString("\n")
		}
	}
	content.WriteString(f.hintStyle.Render("tab/enter: next • ←/→: choose • esc: cancel"))
	content.WriteString("\n")
	return content.String()
}

func (f *Form) focus(idx int) {
	if idx < 0 || idx >= len(f.fields) {
		return
	}
	f.fields[f.focusIndex].textInput.Blur()
	f.focusIndex = idx
	if f.fields[idx].Type != FieldTypeSelect {
		f.fields[idx].textInput.Focus()
	}
}

func (f *Form) moveOption(delta int) {
	field := &f.fields[f.focusIndex]
	if len(field.Options) == 0 {
		return
	}
	n := len(field.Options)
	field.selectedIdx = ((field.selectedIdx+delta)%n + n) % n
	field.Value = field.Options[field.selectedIdx]
}

// Validate validates all form fields
func (f *Form) Validate() bool {
	valid := true
	for i := range f.fields {
		field := &f.fields[i]
		field.Error = ""

		if field.Required && strings.TrimSpace(field.Value) == "" {
			field.Error = "This field is required"
			valid = false
			continue
		}
		if field.Validation != nil && field.Value != "" {
			if err := field.Validation(field.Value); err != nil {
				field.Error = err.Error()
				valid = false
			}
		}
	}
	return valid
}

// GetValues returns all form field values as a map
func (f *Form) GetValues() map[string]string {
	values := make(map[string]string, len(f.fields))
	for _, field := range f.fields {
		values[field.Name] = strings.TrimSpace(field.Value)
	}
	return values
}

// Result возвращает значения после завершения программы.
func (f *Form) Result() (map[string]string, error) {
	if f.cancelled || !f.submitted {
		return nil, ErrCancelled
	}
	return f.GetValues(), nil
}
