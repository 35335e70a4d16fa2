package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// menuItem represents a single configurable option in the TUI.
type menuItem struct {
	label    string
	value    string
	options  []menuOption
	required bool
	editing  bool
	cursor   int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

// menuState tracks which phase the TUI is in.
type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// tuiModel is the Bubble Tea model for the interactive menu.
type tuiModel struct {
	items     []menuItem
	cursor    int
	state     menuState
	width     int
	err       error
	confirmed bool
	cancelled bool
}

// style constants
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(14).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	requiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

// menu item indices
const (
	idxGoal     = 0
	idxExperts  = 1
	idxCycles   = 2
	idxProvider = 3
	idxModel    = 4
	idxOutput   = 5
	// idxRun = last item
)

func countOptions(max int, def int) []menuOption {
	opts := make([]menuOption, 0, max)
	for i := 1; i <= max; i++ {
		label := strconv.Itoa(i)
		if i == def {
			label += " (default)"
		}
		opts = append(opts, menuOption{label: label, value: strconv.Itoa(i)})
	}
	return opts
}

func buildMenuItems() []menuItem {
	items := []menuItem{
		{
			label:    "Goal",
			value:    flagGoal,
			required: true,
		},
		{
			label:   "Experts",
			value:   strconv.Itoa(flagExperts),
			options: countOptions(10, 4),
		},
		{
			label:   "Cycles",
			value:   strconv.Itoa(flagCycles),
			options: countOptions(10, 3),
		},
		{
			label: "Provider",
			value: flagProvider,
			options: []menuOption{
				{label: "Claude (Anthropic SDK) (default)", value: "claude"},
				{label: "Nova (Amazon Bedrock)", value: "nova"},
				{label: "OpenAI", value: "openai"},
				{label: "Anthropic (via any-llm)", value: "anthropic"},
				{label: "Gemini", value: "gemini"},
				{label: "Ollama (local, no API key)", value: "ollama"},
				{label: "Mistral", value: "mistral"},
				{label: "Groq", value: "groq"},
			},
		},
		{
			label: "Model",
			value: flagModel,
		},
		{
			label: "Output",
			value: flagOutput,
		},
	}

	// Run button at the end
	items = append(items, menuItem{
		label: ">>> Run <<<",
	})

	// Pre-select cursor position for options
	for i := range items {
		if len(items[i].options) > 0 {
			for j, opt := range items[i].options {
				if opt.value == items[i].value {
					items[i].cursor = j
					break
				}
			}
		}
	}

	return items
}

func initialTUIModel() tuiModel {
	return tuiModel{
		items:  buildMenuItems(),
		cursor: idxGoal,
		state:  stateMenu,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) runIdx() int {
	return len(m.items) - 1
}

func (m tuiModel) isTextInput(idx int) bool {
	return idx == idxGoal || idx == idxModel || idx == idxOutput
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		if m.cursor == m.runIdx() {
			// Validate required fields
			if m.items[idxGoal].value == "" {
				m.err = fmt.Errorf("Goal is required")
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}

		// Goal/Model/Output are text fields: open inline editor
		if m.isTextInput(m.cursor) {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
			return m, nil
		}

		// All others: open option selector
		if len(m.items[m.cursor].options) > 0 {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
			return m, nil
		}
	}
	return m, nil
}

func (m tuiModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.cursor
	item := &m.items[idx]

	// Text input for Goal/Model/Output
	if m.isTextInput(idx) {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			// Auto-advance to next item
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
			return m, nil
		case "esc":
			item.editing = false
			m.state = stateMenu
			return m, nil
		case "backspace":
			if len(item.value) > 0 {
				item.value = item.value[:len(item.value)-1]
			}
			return m, nil
		case "ctrl+u":
			item.value = ""
			return m, nil
		default:
			// Accept typed characters and pasted text
			if msg.Type == tea.KeyRunes {
				item.value += string(msg.Runes)
			}
			return m, nil
		}
	}

	// Option selector for other fields
	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu

		// If provider changed, reset the model so the provider default applies
		if idx == idxProvider {
			m.items[idxModel].value = ""
		}

		// Auto-advance
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
		return m, nil

	case "esc":
		item.editing = false
		m.state = stateMenu
		return m, nil

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	// Title
	title := titleStyle.Render("Sprintkit")
	header := headerBorder.Render(title)
	b.WriteString(header)
	b.WriteString("\n")

	runIdx := m.runIdx()

	for i, item := range m.items {
		isActive := m.cursor == i

		// Run button
		if i == runIdx {
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(" Run Sprint "))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(" Run Sprint "))
			}
			b.WriteString("\n")
			continue
		}

		// Cursor indicator
		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}

		// Label
		label := item.label
		if item.required {
			label = label + requiredStyle.Render("*")
		}
		renderedLabel := menuLabelStyle.Render(label)

		// Value display
		var renderedValue string
		if item.editing && m.isTextInput(i) {
			// Show text input with blinking cursor
			renderedValue = menuValueStyle.Render(item.value + "_")
		} else if item.value == "" {
			// Show contextual placeholder text
			placeholder := "(not set)"
			switch i {
			case idxModel:
				placeholder = "(optional — provider default)"
			case idxOutput:
				placeholder = "(auto-named sprint-<timestamp>.json)"
			}
			renderedValue = menuValueDimStyle.Render(placeholder)
		} else {
			displayVal := item.value
			// Show friendly label for option-based items
			for _, opt := range item.options {
				if opt.value == item.value {
					displayVal = opt.label
					break
				}
			}
			renderedValue = menuValueStyle.Render(displayVal)
		}

		b.WriteString(cursor + renderedLabel + " " + renderedValue + "\n")

		// Show expanded options when editing
		if item.editing && len(item.options) > 0 && !m.isTextInput(i) {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	// Error message
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	// Help text
	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.isTextInput(m.cursor) {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")

	return b.String()
}

func runInteractiveSetup() error {
	m := initialTUIModel()

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tuiModel)
	if final.cancelled {
		return fmt.Errorf("cancelled")
	}
	if !final.confirmed {
		return fmt.Errorf("sprint cancelled")
	}

	// Apply selections to flags
	flagGoal = final.items[idxGoal].value
	flagProvider = final.items[idxProvider].value
	flagModel = final.items[idxModel].value
	flagOutput = final.items[idxOutput].value
	if n, err := strconv.Atoi(final.items[idxExperts].value); err == nil {
		flagExperts = n
	}
	if n, err := strconv.Atoi(final.items[idxCycles].value); err == nil {
		flagCycles = n
	}

	return nil
}
