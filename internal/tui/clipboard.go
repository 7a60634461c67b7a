package tui

import (
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// clipboardCopyMsg is sent after a clipboard copy operation.
type clipboardCopyMsg struct {
	content string
	err     error
}

// copyToClipboard copies text to the system clipboard and reports the
// outcome as a clipboardCopyMsg.
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardCopyMsg{content: text, err: writeClipboard(text)}
	}
}
