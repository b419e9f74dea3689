package report

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
)

// Styler decorates plain report text. The plain Styler returns text unchanged.
type Styler interface {
	OK(s string) string
	Fail(s string) string
	Warn(s string) string
	Title(s string) string
	Dim(s string) string
}

// NewStyler returns a lipgloss Styler when color is true, otherwise a plain one.
func NewStyler(color bool) Styler {
	if !color {
		return plain{}
	}
	return styled{
		ok:    lipgloss.NewStyle().Foreground(colorGreen),
		fail:  lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		warn:  lipgloss.NewStyle().Foreground(colorYellow),
		title: lipgloss.NewStyle().Foreground(colorBlue).Bold(true),
		dim:   lipgloss.NewStyle().Foreground(colorDim),
	}
}

type plain struct{}

func (plain) OK(s string) string    { return s }
func (plain) Fail(s string) string  { return s }
func (plain) Warn(s string) string  { return s }
func (plain) Title(s string) string { return s }
func (plain) Dim(s string) string   { return s }

type styled struct {
	ok, fail, warn, title, dim lipgloss.Style
}

func (s styled) OK(v string) string    { return s.ok.Render(v) }
func (s styled) Fail(v string) string  { return s.fail.Render(v) }
func (s styled) Warn(v string) string  { return s.warn.Render(v) }
func (s styled) Title(v string) string { return s.title.Render(v) }
func (s styled) Dim(v string) string   { return s.dim.Render(v) }

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Width returns the terminal width of f, or fallback when f is not a terminal.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
