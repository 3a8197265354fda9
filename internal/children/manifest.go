package children

import (
	"os"
	"path/filepath"
	"strings"
)

// ScanAvailable lists child-actor manifests found under dir, serving the
// list_available_children command. Each *.toml or *.json file under dir
// is treated as one actor manifest, named by its filename stem.
func ScanAvailable(dir string) ([]ChildInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var infos []ChildInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".toml" && ext != ".json" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		infos = append(infos, ChildInfo{ID: name, ManifestName: entry.Name()})
	}
	return infos, nil
}
