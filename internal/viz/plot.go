// Package viz renders trajectories and loss curves as terminal plots.
package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
)

// PlotTrajectory renders each state component as an asciigraph series.
func PlotTrajectory(times []float64, states [][]float64, height int) string {
	if len(states) == 0 {
		return "(empty trajectory)"
	}
	if height <= 0 {
		height = 10
	}

	dim := len(states[0])
	series := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		series[i] = make([]float64, len(states))
		for j, st := range states {
			if i < len(st) {
				series[i][j] = st[i]
			}
		}
	}

	var b strings.Builder
	for i, s := range series {
		b.WriteString(LabelStyle.Render(fmt.Sprintf("x%d", i)))
		b.WriteString("\n")
		b.WriteString(asciigraph.Plot(s, asciigraph.Height(height), asciigraph.Width(70)))
		b.WriteString("\n")
	}
	if len(times) > 1 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("t ∈ [%.3f, %.3f], %d samples", times[0], times[len(times)-1], len(times))))
		b.WriteString("\n")
	}
	return b.String()
}

// PlotLoss renders a training loss curve.
func PlotLoss(loss []float64, height int) string {
	if len(loss) == 0 {
		return "(no loss recorded)"
	}
	if height <= 0 {
		height = 10
	}
	var b strings.Builder
	b.WriteString(LabelStyle.Render("loss"))
	b.WriteString("\n")
	b.WriteString(asciigraph.Plot(loss, asciigraph.Height(height), asciigraph.Width(70)))
	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d epochs, final %.6g", len(loss), loss[len(loss)-1])))
	b.WriteString("\n")
	return b.String()
}
