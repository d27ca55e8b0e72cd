package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/gasket/internal/controller"
	"github.com/san-kum/gasket/internal/storage"
)

const (
	barWidth        = 40
	previewCols     = 40
	previewRows     = 16
	historyCapacity = 60
	tickInterval    = 250 * time.Millisecond
)

type tickMsg time.Time

type eventMsg controller.Event

// eventsClosedMsg means the event source went away without a final event.
type eventsClosedMsg struct{}

// ProgressModel follows a controller run. Quitting asks the run to cancel
// and waits for its final event before exiting.
type ProgressModel struct {
	events <-chan controller.Event
	cancel func()

	title      string
	frames     int
	last       controller.Event
	report     *controller.Report
	err        error
	cancelling bool
	done       bool

	spin          int
	lastPersisted int
	lastTick      time.Time
	throughput    []float64
	preview       *Canvas
}

// NewProgressModel watches events for a run of frames frames. cancel is
// called once when the user quits.
func NewProgressModel(title string, frames int, events <-chan controller.Event, cancel func()) ProgressModel {
	return ProgressModel{
		events:     events,
		cancel:     cancel,
		title:      title,
		frames:     frames,
		throughput: make([]float64, 0, historyCapacity),
		preview:    NewCanvas(previewCols, previewRows),
	}
}

func waitForEvent(ch <-chan controller.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick())
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case eventMsg:
		ev := controller.Event(msg)
		m.last = ev
		if ev.Preview != nil {
			m.preview.DrawImage(ev.Preview)
		}
		if ev.Done {
			m.done = true
			m.report = ev.Report
			m.err = ev.Err
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.done = true
		return m, tea.Quit

	case tickMsg:
		now := time.Time(msg)
		if !m.lastTick.IsZero() {
			dt := now.Sub(m.lastTick).Seconds()
			persisted := m.last.Stats.Persisted
			if dt > 0 {
				m.throughput = append(m.throughput, float64(persisted-m.lastPersisted)/dt)
				if len(m.throughput) > historyCapacity {
					m.throughput = m.throughput[1:]
				}
			}
			m.lastPersisted = persisted
		} else {
			m.lastPersisted = m.last.Stats.Persisted
		}
		m.lastTick = now
		m.spin++
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

// Report is the final report, nil until the run ended.
func (m ProgressModel) Report() *controller.Report { return m.report }

func (m ProgressModel) Err() error { return m.err }

func (m ProgressModel) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("failed")
	case m.report != nil && m.report.Status == storage.StatusCancelled:
		return StatusCancelling.Render("cancelled")
	case m.done:
		return StatusRunning.Render("done")
	case m.cancelling:
		return StatusCancelling.Render(Spinner(m.spin) + " cancelling")
	}
	return StatusRunning.Render(Spinner(m.spin) + " rendering")
}

func metric(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

func (m ProgressModel) View() string {
	stats := m.last.Stats
	fraction := 0.0
	if m.frames > 0 {
		fraction = float64(stats.Persisted) / float64(m.frames)
	}

	var s strings.Builder
	s.WriteString(GradientText(m.title, lipgloss.Color("#00ffff"), lipgloss.Color("#ff00ff")) + "  " + m.status() + "\n\n")
	s.WriteString(ProgressBar(fraction, barWidth) + fmt.Sprintf(" %3.0f%%\n\n", fraction*100))
	s.WriteString(metric("Persisted", fmt.Sprintf("%d / %d", stats.Persisted, m.frames)))
	s.WriteString(metric("Dispatched", fmt.Sprintf("%d", stats.Dispatched)))
	s.WriteString(metric("Discarded", fmt.Sprintf("%d", stats.Discarded)))
	s.WriteString(metric("Queue peak", fmt.Sprintf("%d", stats.MaxQueueDepth)))
	s.WriteString(metric("Workers", fmt.Sprintf("%d", stats.LiveWorkers)))
	s.WriteString(metric("Elapsed", m.last.Elapsed.Round(10*time.Millisecond).String()))
	s.WriteString(metric("Throughput", Sparkline(m.throughput, 30)))

	stat := Panel.Render(s.String())
	view := lipgloss.JoinHorizontal(lipgloss.Top, stat, PreviewStyle.Render(m.preview.String()))

	var foot string
	if m.report != nil {
		foot = Subtle.Render(fmt.Sprintf("run %s  %s", m.report.RunID, m.report.Dir))
	} else {
		foot = KeyHint.Render("q cancel")
	}
	return view + "\n" + Separator(barWidth+20) + "\n" + foot + "\n"
}
