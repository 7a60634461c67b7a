package pcap

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ResolveTsharkPath finds tshark from an explicit path, $TSHARK, PATH, or a
// platform install location.
func ResolveTsharkPath(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv("TSHARK")
	}
	if explicit != "" {
		if filepath.Base(explicit) != explicit {
			if _, err := os.Stat(explicit); err != nil {
				return "", fmt.Errorf("tshark path not found: %w", err)
			}
			return explicit, nil
		}
		if path, err := exec.LookPath(explicit); err == nil {
			return path, nil
		}
		return "", errTsharkNotFound()
	}

	if path, err := exec.LookPath("tshark"); err == nil {
		return path, nil
	}
	for _, candidate := range platformTsharkPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errTsharkNotFound()
}

func platformTsharkPaths() []string {
	switch runtime.GOOS {
	case "windows":
		var paths []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
			if dir := os.Getenv(env); dir != "" {
				paths = append(paths, filepath.Join(dir, "Wireshark", "tshark.exe"))
			}
		}
		return paths
	case "darwin":
		return []string{"/Applications/Wireshark.app/Contents/MacOS/tshark"}
	}
	return []string{"/usr/bin/tshark", "/usr/local/bin/tshark"}
}

func errTsharkNotFound() error {
	return fmt.Errorf("tshark not found in PATH or default locations (%s); install Wireshark or pass --tshark", runtime.GOOS)
}
