package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"mfledger/internal/updater"
	"mfledger/pkg/contracts/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)

	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func statusStyle(s updater.Status) lipgloss.Style {
	switch s {
	case updater.StatusAdded:
		return addedStyle
	case updater.StatusEmpty:
		return emptyStyle
	default:
		return skippedStyle
	}
}

// renderTable writes a bordered table. Columns listed in numeric are right
// aligned.
func renderTable(w io.Writer, headers []string, rows [][]string, numeric ...int) {
	right := make(map[int]bool, len(numeric))
	for _, i := range numeric {
		right[i] = true
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case right[col]:
				return numberStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

func title(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf(format, args...)))
}

func note(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

func periodList(ps []domain.Period) string {
	if len(ps) == 0 {
		return "-"
	}
	labels := make([]string, len(ps))
	for i, p := range ps {
		labels[i] = p.ShortMonth() + "-" + p.ShortYear()
	}
	return strings.Join(labels, ", ")
}

func formatQty(d decimal.Decimal) string {
	return d.String()
}
