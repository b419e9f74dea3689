// Package report renders batch results for people.
//
// Rendering is kept apart from the upgrade logic: it consumes plain
// batch.Result values and decorates them through a Styler, which is plain
// text unless the output is a color terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/routeros-upgrade/internal/batch"
	"github.com/imamik/routeros-upgrade/internal/upgrade"
)

// Status labels.
const (
	StatusOK      = "OK"
	StatusFailed  = "FAILED"
	StatusPending = "PENDING"
	StatusSkipped = "SKIPPED"
	StatusNone    = "-"
)

// Printer writes per-host lines and the final summary. It is safe for
// concurrent use.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	style  Styler
	maxCol int
}

// NewPrinter creates a printer. maxWidth caps rule lines; zero means 80.
func NewPrinter(w io.Writer, style Styler, maxWidth int) *Printer {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	return &Printer{w: w, style: style, maxCol: maxWidth}
}

// Progress reports time spent waiting for host to return.
func (p *Printer) Progress(host string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, "%s %s\n", p.style.Dim(host+":"),
		p.style.Dim(fmt.Sprintf("%.0f seconds since reboot...", elapsed.Seconds())))
}

// State announces the steps that take the device offline.
func (p *Printer) State(host string, phase upgrade.Phase, state upgrade.State) {
	var msg string
	switch state {
	case upgrade.StateUpgrading:
		msg = fmt.Sprintf("installing %s upgrade", phase)
	case upgrade.StateRebooting:
		msg = "rebooting"
	case upgrade.StateWaitingReboot:
		msg = "waiting for reboot"
	default:
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, "%s %s\n", host+":", msg)
}

// Result prints one line per failed phase of res with its diagnostic.
func (p *Printer) Result(res batch.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res.Skipped {
		_, _ = fmt.Fprintf(p.w, "%s %s\n", res.Host+":", p.style.Warn("skipped, batch stopped"))
		return
	}
	p.phaseLine(res.Host, upgrade.PhaseOS, res.OS)
	if res.FirmwareAttempted {
		p.phaseLine(res.Host, upgrade.PhaseFirmware, res.Firmware)
	}
}

func (p *Printer) phaseLine(host string, phase upgrade.Phase, o upgrade.Outcome) {
	switch {
	case !o.Success:
		msg := "failed"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		_, _ = fmt.Fprintf(p.w, "%s %s %s\n", host+":", p.style.Fail("ERROR"), fmt.Sprintf("%s: %s", phase, msg))
	case o.Pending:
		_, _ = fmt.Fprintf(p.w, "%s %s\n", host+":", p.style.Warn(fmt.Sprintf("%s upgrade available, running %s", phase, o.Version)))
	default:
		_, _ = fmt.Fprintf(p.w, "%s %s\n", host+":", p.style.OK(fmt.Sprintf("%s at %s", phase, o.Version)))
	}
}

// Summary writes an aligned table of every host.
func (p *Printer) Summary(rep batch.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	header := []string{"HOST", "OS", "VERSION", "FIRMWARE", "VERSION"}
	rows := make([][]cell, 0, len(rep.Results))
	for _, res := range rep.Results {
		rows = append(rows, summaryRow(res))
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, c := range row {
			if w := lipgloss.Width(c.text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0
	for _, w := range widths {
		total += 2 + w
	}
	if total > p.maxCol {
		total = p.maxCol
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(p.style.Title("Summary"))
	if rep.RunID != "" {
		b.WriteString(p.style.Dim(" (run " + rep.RunID + ")"))
	}
	b.WriteString("\n")
	b.WriteString(p.style.Dim(strings.Repeat("─", total)))
	b.WriteString("\n")

	headerCells := make([]cell, len(header))
	for i, h := range header {
		headerCells[i] = cell{text: h, render: p.style.Dim}
	}
	writeRow(&b, headerCells, widths)
	for _, row := range rows {
		for i := range row {
			row[i].render = p.renderFor(row[i].status)
		}
		writeRow(&b, row, widths)
	}

	if rep.Aborted {
		b.WriteString(p.style.Warn("Batch stopped after a connection failure."))
		b.WriteString("\n")
	}

	_, _ = io.WriteString(p.w, b.String())
}

type cell struct {
	text   string
	status string
	render func(string) string
}

func (p *Printer) renderFor(status string) func(string) string {
	switch status {
	case StatusOK:
		return p.style.OK
	case StatusFailed:
		return p.style.Fail
	case StatusPending, StatusSkipped:
		return p.style.Warn
	case StatusNone:
		return p.style.Dim
	default:
		return func(s string) string { return s }
	}
}

func writeRow(b *strings.Builder, cells []cell, widths []int) {
	for i, c := range cells {
		b.WriteString("  ")
		b.WriteString(c.render(c.text))
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(c.text)))
		}
	}
	b.WriteString("\n")
}

func summaryRow(res batch.Result) []cell {
	host := cell{text: res.Host}
	if res.Skipped {
		return []cell{host, {text: StatusSkipped, status: StatusSkipped}, none(), none(), none()}
	}

	osStatus := Status(res.OS)
	row := []cell{host, {text: osStatus, status: osStatus}, version(res.OS)}
	if !res.FirmwareAttempted {
		return append(row, none(), none())
	}
	fwStatus := Status(res.Firmware)
	return append(row, cell{text: fwStatus, status: fwStatus}, version(res.Firmware))
}

func none() cell {
	return cell{text: StatusNone, status: StatusNone}
}

func version(o upgrade.Outcome) cell {
	if o.Version == "" {
		return none()
	}
	return cell{text: o.Version}
}

// Status returns the status label of an outcome.
func Status(o upgrade.Outcome) string {
	switch {
	case !o.Success:
		return StatusFailed
	case o.Pending:
		return StatusPending
	default:
		return StatusOK
	}
}
