package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// UpdateKind says which fields of an Update are meaningful.
type UpdateKind int

const (
	ImageStarted UpdateKind = iota // Image
	CodecProgress                  // Codec, Fraction, Phase, ETA
	CodecDone                      // Codec, Saved
	CodecFailed                    // Codec, Err
)

// Update is one change the progress view renders.
type Update struct {
	Kind     UpdateKind
	Image    string
	Codec    string
	Fraction float64
	Phase    string
	ETA      time.Duration
	Saved    int64 // bytes below the original; negative when larger
	Err      string
}

// Model is the bubbletea model of the compress command's progress view.
type Model struct {
	updates  <-chan Update
	started  time.Time
	width    int
	total    int // images
	images   int // images started
	image    string
	codec    string
	fraction float64
	phase    string
	eta      time.Duration
	results  int
	errors   int
	lastErr  string
	saved    int64
	quitting bool
}

type doneMsg struct{}

type updateMsg Update

// NewModel renders updates until the channel is closed.
func NewModel(updates <-chan Update, totalImages int) Model {
	return Model{updates: updates, total: totalImages, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m = m.apply(Update(msg))
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) apply(u Update) Model {
	switch u.Kind {
	case ImageStarted:
		m.images++
		m.image = u.Image
		m.codec, m.phase, m.fraction, m.eta = "", "", 0, 0
	case CodecProgress:
		if u.Codec != m.codec {
			m.codec = u.Codec
			m.fraction = 0
		}
		if u.Fraction > m.fraction {
			m.fraction = u.Fraction
		}
		m.phase = u.Phase
		m.eta = u.ETA
	case CodecDone:
		m.results++
		m.saved += u.Saved
		m.fraction, m.eta = 1, 0
	case CodecFailed:
		m.errors++
		m.lastErr = u.Codec + ": " + u.Err
	}
	return m
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	elapsed := time.Since(m.started).Round(time.Millisecond)
	current := m.codec
	if current == "" {
		current = "-"
	}
	status := fmt.Sprintf("%s %3.0f%%", current, m.fraction*100)
	if m.phase != "" {
		status += "  " + m.phase
	}
	if m.eta > 0 {
		status += fmt.Sprintf("  eta %s", m.eta.Round(100*time.Millisecond))
	}

	lines := []string{
		titleStyle.Render("imgpress"),
		labelStyle.Render(fmt.Sprintf("Image %d/%d: %s", m.images, m.total, m.image)),
		labelStyle.Render(status),
		barStyle.Render(renderBar(barWidth, m.fraction)),
		labelStyle.Render(fmt.Sprintf("Results: %d", m.results)) + dimStyle.Render(fmt.Sprintf("  errors:%d", m.errors)),
		labelStyle.Render(fmt.Sprintf("Saved: %s", FormatBytes(m.saved))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
	}
	if m.lastErr != "" {
		lines = append(lines, warnStyle.Render("last error: "+m.lastErr))
	}

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan Update) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)
)
