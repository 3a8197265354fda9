package ws

import "chatcore/internal/children"

func scanAvailableChildren(manifestDir string) ([]childView, error) {
	if manifestDir == "" {
		return nil, nil
	}
	infos, err := children.ScanAvailable(manifestDir)
	if err != nil {
		return nil, err
	}
	out := make([]childView, len(infos))
	for i, info := range infos {
		out[i] = childView{ID: info.ID, ManifestName: info.ManifestName, Description: info.Description}
	}
	return out, nil
}
