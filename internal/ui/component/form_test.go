package component

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(f *Form, s string) {
	f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(f *Form, k tea.KeyType) tea.Cmd {
	_, cmd := f.Update(tea.KeyMsg{Type: k})
	return cmd
}

func newPositionForm() *Form {
	return NewForm("Open position").
		AddField(FormField{Name: "pool", Label: "Pool", Required: true}).
		AddField(FormField{Name: "side", Label: "Side", Type: FieldTypeSelect, Options: []string{"long", "short"}}).
		AddField(FormField{
			Name:     "size",
			Label:    "Size",
			Type:     FieldTypeNumber,
			Required: true,
			Validation: func(s string) error {
				if s == "0" {
					return errors.New("size must be positive")
				}
				return nil
			},
		})
}

func TestForm_SubmitFlow(t *testing.T) {
	f := newPositionForm()

	typeText(f, "crypto")
	press(f, tea.KeyEnter)
	press(f, tea.KeyRight)
	press(f, tea.KeyEnter)
	typeText(f, "1.5")
	cmd := press(f, tea.KeyEnter)
	require.NotNil(t, cmd)

	values, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pool": "crypto", "side": "short", "size": "1.5"}, values)
	assert.Empty(t, f.View())
}

func TestForm_ValidationBlocksSubmit(t *testing.T) {
	f := newPositionForm()

	press(f, tea.KeyTab)
	press(f, tea.KeyTab)
	typeText(f, "0")
	press(f, tea.KeyEnter)

	_, err := f.Result()
	assert.ErrorIs(t, err, ErrCancelled, "form is still open")
	assert.Equal(t, "This field is required", f.fields[0].Error)
	assert.Equal(t, "size must be positive", f.fields[2].Error)
	assert.Contains(t, f.View(), "size must be positive")
}

func TestForm_Cancel(t *testing.T) {
	f := newPositionForm()
	typeText(f, "crypto")
	press(f, tea.KeyEsc)

	_, err := f.Result()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestForm_SelectWrapsAround(t *testing.T) {
	f := NewForm("").AddField(FormField{Name: "answer", Type: FieldTypeSelect, Options: []string{"no", "yes"}})
	press(f, tea.KeyLeft)
	assert.Equal(t, "yes", f.GetValues()["answer"])
	press(f, tea.KeyRight)
	assert.Equal(t, "no", f.GetValues()["answer"])
}
