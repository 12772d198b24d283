package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/flow/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the Flow ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   _____ _", "#818cf8"},
		{"  |  ___| | _____      __", "#a78bfa"},
		{"  | |_  | |/ _ \\ \\ /\\ / /", "#c084fc"},
		{"  |  _| | | (_) \\ V  V /", "#e879f9"},
		{"  |_|   |_|\\___/ \\_/\\_/", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Status colours a run status for terminal output.
func Status(s domain.Status) string {
	p := termenv.EnvColorProfile()
	out := termenv.String(string(s))
	switch s {
	case domain.StatusCompleted:
		return out.Foreground(p.Color("#22c55e")).Bold().String()
	case domain.StatusFailed:
		return out.Foreground(p.Color("#ef4444")).Bold().String()
	}
	return out.String()
}
