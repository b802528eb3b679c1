// Package ui renders tool output with a consistent terminal style.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Run executes fn under a styled header and prints each detail line as
// the step reports it, then a pass/fail footer.
func Run(title string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	fmt.Println(titleStyle.Render(title))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	details, err := fn(ctx)
	for _, line := range details {
		fmt.Println(detailStyle.Render(line))
	}
	if err != nil {
		fmt.Println(failStyle.Render("FAIL") + " " + err.Error())
		return details, err
	}
	fmt.Println(okStyle.Render("OK"))
	return details, nil
}

// RenderReport draws a bordered key/value report, keys in insertion
// order.
func RenderReport(title string, rows [][2]string) string {
	body := titleStyle.Render(title)
	for _, row := range rows {
		body += "\n" + labelStyle.Render(row[0]+": ") + valueStyle.Render(row[1])
	}
	return boxStyle.Render(body)
}
