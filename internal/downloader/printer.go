package downloader

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Printer writes the one-line outcome of a request.
type Printer struct {
	out        io.Writer
	quiet      bool
	color      bool
	columns    int
	titleWidth int
}

// NewPrinter returns a printer writing to out. Quiet suppresses success lines.
func NewPrinter(out io.Writer, quiet bool) *Printer {
	columns := terminalColumns()
	if columns <= 0 {
		columns = 100
	}

	titleWidth := columns - 44
	if titleWidth < 20 {
		titleWidth = 20
	}
	if titleWidth > 60 {
		titleWidth = 60
	}

	return &Printer{
		out:        out,
		quiet:      quiet,
		color:      supportsColor(),
		columns:    columns,
		titleWidth: titleWidth,
	}
}

func (p *Printer) prefix(title string) string {
	return fmt.Sprintf("%-*s", p.titleWidth, truncateText(title, p.titleWidth))
}

// Result prints the outcome of a request.
func (p *Printer) Result(res Result, err error) {
	if err == nil && p.quiet {
		return
	}

	title := res.Title
	if title == "" {
		title = res.ID
	}
	prefix := p.prefix(title)

	statusText := "OK"
	statusColor := colorGreen
	detail := fmt.Sprintf("%s %s", padLeft(humanBytes(res.Artifact.Bytes), 9), res.Artifact.Path)
	if res.Artifact.Mode == ModeSplit {
		detail += " (merged)"
	}

	if err != nil {
		statusText = "FAIL"
		statusColor = colorRed
		detail = fmt.Sprintf("%s: %s", CategoryOf(err), err.Error())
		if CategoryOf(err) == CategoryInterrupted {
			statusText = "STOP"
			statusColor = colorYellow
		}
	}

	status := p.colorize(statusText, statusColor)
	maxDetail := p.columns - len(prefix) - len(statusText) - 3
	if maxDetail < 0 {
		maxDetail = 0
	}
	detail = truncateText(detail, maxDetail)

	fmt.Fprintf(p.out, "%s %s %s\n", prefix, status, detail)
}

func (p *Printer) colorize(text, color string) string {
	if !p.color || color == "" {
		return text
	}
	return color + text + colorReset
}

func padLeft(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return strings.Repeat(" ", width-len(value)) + value
}

func truncateText(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	if max <= 3 {
		return text[:max]
	}
	return text[:max-3] + "..."
}

func formatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 1, 64) + "%"
}

func terminalColumns() int {
	if columns := os.Getenv("COLUMNS"); columns != "" {
		if val, err := strconv.Atoi(columns); err == nil && val > 0 {
			return val
		}
	}
	return 0
}

func supportsColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" || os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return isTerminal(os.Stderr)
}

const (
	colorReset  = "\x1b[0m"
	colorGreen  = "\x1b[32m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
)
