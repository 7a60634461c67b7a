package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/pcap"
)

// Run decodes the capture at path and opens the browser on it.
func Run(path string, opts dissect.Options) error {
	decoded, err := pcap.DecodeFile(path, dissect.New(opts))
	if err != nil {
		return err
	}
	program := tea.NewProgram(NewModel(path, decoded), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// PickCapture asks for a capture file. Captures found under root are
// offered as a list; otherwise a path is typed in.
func PickCapture(root string) (string, error) {
	files, err := pcap.CollectPcapFiles(root)
	if err != nil {
		files = nil
	}
	var path string
	form := huh.NewForm(huh.NewGroup(captureField(files, &path)))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("pick capture: %w", err)
	}
	return path, nil
}

func captureField(files []string, path *string) huh.Field {
	if len(files) > 0 {
		return huh.NewSelect[string]().
			Title("Capture").
			Description("Choose a .pcap/.pcapng to decode.").
			Key("capture").
			Options(huh.NewOptions(files...)...).
			Value(path)
	}
	return huh.NewInput().
		Title("Capture").
		Description("Path to a .pcap/.pcapng file.").
		Key("capture").
		Validate(validateCapturePath).
		Value(path)
}

func validateCapturePath(p string) error {
	if p == "" {
		return fmt.Errorf("path is required")
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("cannot read %s", p)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", p)
	}
	return nil
}
