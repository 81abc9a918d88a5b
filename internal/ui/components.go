package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// ViewCode renders the convenience link or request id block.
func ViewCode(code string) string {
	return lipgloss.JoinVertical(lipgloss.Center,
		"Share link:",
		CodeStyle.Render(code),
	)
}
