package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/petal-labs/spellbook/loader"
	"github.com/petal-labs/spellbook/spell"
)

var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorError   = lipgloss.Color("#E53935")
	colorWarn    = lipgloss.Color("#FFB300")
	colorMuted   = lipgloss.Color("#7A8599")
)

// styles are the terminal styles for command output. The renderer drops
// colors when the writer is not a terminal.
type styles struct {
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
	bold  lipgloss.Style
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		plain := r.NewStyle()
		return styles{ok: plain, err: plain, warn: plain, muted: plain, bold: plain}
	}
	return styles{
		ok:    r.NewStyle().Foreground(colorSuccess).Bold(true),
		err:   r.NewStyle().Foreground(colorError).Bold(true),
		warn:  r.NewStyle().Foreground(colorWarn),
		muted: r.NewStyle().Foreground(colorMuted),
		bold:  r.NewStyle().Bold(true),
	}
}

// entryReport is the JSON shape of one validated candidate.
type entryReport struct {
	Index       int                `json:"index"`
	Name        string             `json:"name,omitempty"`
	Valid       bool               `json:"valid"`
	Diagnostics []spell.Diagnostic `json:"diagnostics"`
}

func reportEntries(entries []loader.Entry) []entryReport {
	out := make([]entryReport, 0, len(entries))
	for _, e := range entries {
		r := entryReport{Index: e.Index, Valid: e.Valid(), Diagnostics: []spell.Diagnostic{}}
		if e.Valid() {
			r.Name = e.Spell.Name
		} else if verr, ok := spell.AsValidationError(e.Err); ok {
			r.Diagnostics = verr.Diagnostics
		} else if e.Err != nil {
			r.Diagnostics = []spell.Diagnostic{{Path: "$", Message: e.Err.Error(), Code: spell.CodeInvalidType}}
		}
		out = append(out, r)
	}
	return out
}

// printEntries writes per-candidate results followed by a summary line.
func printEntries(w io.Writer, st styles, entries []loader.Entry, format string) {
	reports := reportEntries(entries)
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reports)
		return
	}

	invalid := 0
	for _, r := range reports {
		label := fmt.Sprintf("#%d", r.Index+1)
		if r.Valid {
			fmt.Fprintf(w, "%s %s %s\n", st.ok.Render("OK"), label, r.Name)
			continue
		}
		invalid++
		fmt.Fprintf(w, "%s %s\n", st.err.Render("INVALID"), label)
		printDiagnostics(w, st, r.Diagnostics)
	}

	switch {
	case invalid == 0 && len(reports) == 1:
		fmt.Fprintln(w, st.ok.Render("Valid!"))
	case invalid == 0:
		fmt.Fprintln(w, st.ok.Render(fmt.Sprintf("All %d spells valid!", len(reports))))
	default:
		fmt.Fprintf(w, "\n%d of %d %s invalid\n", invalid, len(reports), pluralize("spell", len(reports)))
	}
}

func printDiagnostics(w io.Writer, st styles, diags []spell.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "  %s [%s]: %s\n", st.warn.Render(d.Path), st.muted.Render(d.Code), d.Message)
	}
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
