package pcap

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var captureExtensions = map[string]bool{
	".pcap":   true,
	".pcapng": true,
	".cap":    true,
}

// CollectPcapFiles walks root and returns capture files in sorted order.
// Hidden directories are skipped.
func CollectPcapFiles(root string) ([]string, error) {
	var pcaps []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if captureExtensions[strings.ToLower(filepath.Ext(path))] {
			pcaps = append(pcaps, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk captures: %w", err)
	}
	sort.Strings(pcaps)
	return pcaps, nil
}
