package component

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Prompter запрашивает у пользователя недостающие значения.
type Prompter interface {
	Ask(title string, fields []FormField) (map[string]string, error)
	Confirm(question string) (bool, error)
}

// TerminalPrompter запускает формы bubbletea в терминале.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TerminalPrompter) run(form *Form) (map[string]string, error) {
	opts := []tea.ProgramOption{}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}
	final, err := tea.NewProgram(form, opts...).Run()
	if err != nil {
		return nil, err
	}
	return final.(*Form).Result()
}

// Ask показывает форму и возвращает введенные значения по Name.
func (p TerminalPrompter) Ask(title string, fields []FormField) (map[string]string, error) {
	form := NewForm(title)
	for _, field := range fields {
		form.AddField(field)
	}
	return p.run(form)
}

// Confirm задает вопрос с вариантами no/yes; по умолчанию no.
func (p TerminalPrompter) Confirm(question string) (bool, error) {
	values, err := p.run(NewForm(question).AddField(FormField{
		Name:    "answer",
		Label:   "Proceed?",
		Type:    FieldTypeSelect,
		Options: []string{"no", "yes"},
	}))
	if err != nil {
		return false, err
	}
	return values["answer"] == "yes", nil
}
