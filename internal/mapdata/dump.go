package mapdata

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlMapDump is the YAML representation of a loaded map.
type yamlMapDump struct {
	Name        string         `yaml:"name"`
	Path        string         `yaml:"path,omitempty"`
	CoordSystem string         `yaml:"coord_system"`
	Min         *yamlCoord     `yaml:"min"`
	Max         *yamlCoord     `yaml:"max"`
	Items       []yamlItemDump `yaml:"items"`
}

type yamlCoord struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type yamlItemDump struct {
	Name  string    `yaml:"name"`
	Coord yamlCoord `yaml:"coord"`
}

func toYAMLCoord(c Coord3) yamlCoord {
	return yamlCoord{X: c.X, Y: c.Y, Z: c.Z}
}

// Dump writes records to w as a YAML sequence. Maps without extents dump
// null min and max.
func Dump(w io.Writer, records []*Record) error {
	out := make([]yamlMapDump, 0, len(records))
	for _, rec := range records {
		d := yamlMapDump{
			Name:        rec.Name,
			Path:        rec.Path,
			CoordSystem: rec.CoordSystem.String(),
			Items:       make([]yamlItemDump, 0, rec.Len()),
		}
		if lo, hi, ok := rec.Bounds(); ok {
			ylo, yhi := toYAMLCoord(lo), toYAMLCoord(hi)
			d.Min, d.Max = &ylo, &yhi
		}
		for _, it := range rec.items {
			d.Items = append(d.Items, yamlItemDump{Name: it.Name, Coord: toYAMLCoord(it.Coord)})
		}
		out = append(out, d)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding map dump: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing map dump: %w", err)
	}
	return nil
}
