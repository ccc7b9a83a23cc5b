package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type yamlCatalog struct {
	Srid  string `yaml:"srid"`
	Tiles []struct {
		Path   string  `yaml:"path"`
		Left   float64 `yaml:"left"`
		Bottom float64 `yaml:"bottom"`
		Right  float64 `yaml:"right"`
		Top    float64 `yaml:"top"`
	} `yaml:"tiles"`
}

// LoadYAML reads a file-based footprint catalog, the lightweight alternative
// to the sqlite catalog for small, hand-maintained tile sets.
func LoadYAML(path string) (string, []Footprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}

	var parsed yamlCatalog
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return "", nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}

	footprints := make([]Footprint, 0, len(parsed.Tiles))
	for _, tile := range parsed.Tiles {
		fp := Footprint{
			Path:   tile.Path,
			Extent: Extent{Left: tile.Left, Bottom: tile.Bottom, Right: tile.Right, Top: tile.Top},
		}
		if tile.Path == "" || !fp.Valid() {
			return "", nil, fmt.Errorf("catalog file %s: malformed tile entry %+v", path, tile)
		}
		footprints = append(footprints, fp)
	}

	return parsed.Srid, footprints, nil
}
