// Package tui provides a live terminal view of an ongoing integration.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"neurode/internal/phase"
	"neurode/internal/solver"
	"neurode/internal/viz"
)

const historyCapacity = 600

type TickMsg time.Time

// Model steps an integration at a fixed frame rate and plots the state
// components as they evolve.
type Model struct {
	field     phase.VectorField
	fieldName string
	step      solver.StepFunc
	dt        float64

	t       float64
	x       phase.Point
	x0      phase.Point
	t0      float64
	history [][]float64
	running bool
	err     error
}

func NewModel(field phase.VectorField, fieldName string, step solver.StepFunc, t0 float64, x0 phase.Point, dt float64) Model {
	return Model{
		field:     field,
		fieldName: fieldName,
		step:      step,
		dt:        dt,
		t:         t0,
		t0:        t0,
		x:         x0.Clone(),
		x0:        x0.Clone(),
		history:   make([][]float64, 0, historyCapacity),
		running:   true,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.t = m.t0
			m.x = m.x0.Clone()
			m.history = m.history[:0]
			m.err = nil
		}
	case TickMsg:
		if m.running && m.err == nil {
			// a few substeps per frame keeps the motion visible
			for i := 0; i < 4; i++ {
				next := m.step(m.field, m.t, m.x, m.dt)
				if !next.IsValid() {
					m.err = solver.ErrDiverged
					m.running = false
					break
				}
				m.x = next
				m.t += m.dt
			}
			m.record()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) record() {
	leaves, _ := phase.Flatten(m.x)
	var flat []float64
	for _, l := range leaves {
		flat = append(flat, l.Data...)
	}
	m.history = append(m.history, flat)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

func (m Model) View() string {
	var b strings.Builder

	status := viz.StatusRunning.Render("running")
	if m.err != nil {
		status = viz.StatusStopped.Render(m.err.Error())
	} else if !m.running {
		status = viz.StatusStopped.Render("paused")
	}
	b.WriteString(viz.HeaderStyle.Render(fmt.Sprintf("neurode live — %s", m.fieldName)))
	b.WriteString("\n")
	b.WriteString(viz.LabelStyle.Render("t "))
	b.WriteString(viz.ValueStyle.Render(fmt.Sprintf("%.3f  ", m.t)))
	b.WriteString(status)
	b.WriteString("\n\n")

	if len(m.history) > 1 {
		dim := len(m.history[0])
		for i := 0; i < dim && i < 4; i++ {
			series := make([]float64, len(m.history))
			for j, st := range m.history {
				series[j] = st[i]
			}
			b.WriteString(viz.PanelStyle.Render(asciigraph.Plot(series, asciigraph.Height(6), asciigraph.Width(64))))
			b.WriteString("\n")
		}
	}

	b.WriteString(viz.SubtleStyle.Render("space pause · r reset · q quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the live view and blocks until the user quits.
func Run(field phase.VectorField, fieldName string, step solver.StepFunc, t0 float64, x0 phase.Point, dt float64) error {
	p := tea.NewProgram(NewModel(field, fieldName, step, t0, x0, dt))
	_, err := p.Run()
	return err
}
