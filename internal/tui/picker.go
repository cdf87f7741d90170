package tui

import (
	"errors"
	"strconv"

	"gonetids/internal/capture"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrPickCanceled is returned when the user leaves the picker without choosing.
var ErrPickCanceled = errors.New("interface selection canceled")

// PickerModel lets the user choose a capture interface from a table.
type PickerModel struct {
	devices  []capture.Device
	table    table.Model
	chosen   int
	canceled bool
}

func NewPickerModel(devices []capture.Device) PickerModel {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Name", Width: 16},
		{Title: "IPv4", Width: 16},
		{Title: "Description", Width: 30},
	}

	rows := make([]table.Row, len(devices))
	for i, d := range devices {
		rows[i] = table.Row{strconv.Itoa(i), d.Name, d.IPv4, d.Description}
	}

	height := len(devices) + 1
	if height > 12 {
		height = 12
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	t.SetStyles(tableStyles())

	return PickerModel{devices: devices, table: t, chosen: -1}
}

func (m PickerModel) Init() tea.Cmd {
	return nil
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			m.chosen = m.table.Cursor()
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.canceled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m PickerModel) View() string {
	return titleStyle.Render("Select a capture interface") + "\n" +
		infoStyle.Render(m.table.View()) +
		"\nArrows to move, enter to select, q to use the default."
}

// Selected returns the chosen device, or false when none was chosen.
func (m PickerModel) Selected() (capture.Device, bool) {
	if m.canceled || m.chosen < 0 || m.chosen >= len(m.devices) {
		return capture.Device{}, false
	}
	return m.devices[m.chosen], true
}

// Pick runs the picker. Leaving it without a choice returns ErrPickCanceled.
func Pick(devices []capture.Device) (capture.Device, error) {
	if len(devices) == 0 {
		return capture.Device{}, capture.ErrNoInterfaces
	}

	final, err := tea.NewProgram(NewPickerModel(devices)).Run()
	if err != nil {
		return capture.Device{}, err
	}
	if dev, ok := final.(PickerModel).Selected(); ok {
		return dev, nil
	}
	return capture.Device{}, ErrPickCanceled
}
