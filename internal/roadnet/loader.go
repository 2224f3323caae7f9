package roadnet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/storm-hazard-routing/internal/domain"
	"gopkg.in/yaml.v3"
)

// Load reads a road network file. ".geojson" and ".json" files are parsed as
// a GeoJSON FeatureCollection of LineStrings; ".yaml" and ".yml" files as a
// segment list.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open road network: %w", err)
	}
	defer f.Close()

	var segments []domain.RoadSegment
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		segments, err = ParseGeoJSON(f)
	case ".yaml", ".yml":
		segments, err = ParseYAML(f)
	default:
		return nil, fmt.Errorf("road network %s: unsupported file type", path)
	}
	if err != nil {
		return nil, fmt.Errorf("road network %s: %w", path, err)
	}
	return NewNetwork(segments)
}

// --- GeoJSON ---

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseGeoJSON reads road segments from a FeatureCollection such as an OSMnx
// edge export. Coordinates are [lon, lat]. MultiLineString features become
// one segment per part with a "#n" ID suffix. Recognized properties: id or
// osmid, name, highway, length, base_cost, oneway, status.
func ParseGeoJSON(r io.Reader) ([]domain.RoadSegment, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode geojson: expected FeatureCollection, got %q", fc.Type)
	}

	var out []domain.RoadSegment
	for i, f := range fc.Features {
		base, err := segmentFromProperties(f.Properties, i)
		if err != nil {
			return nil, err
		}

		switch f.Geometry.Type {
		case "LineString":
			var coords [][]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			seg := base
			if seg.Geometry, err = lonLatToGeo(coords); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			out = append(out, seg)
		case "MultiLineString":
			var parts [][][]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &parts); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			for j, coords := range parts {
				seg := base
				seg.ID = fmt.Sprintf("%s#%d", base.ID, j)
				seg.LengthM = 0
				if seg.Geometry, err = lonLatToGeo(coords); err != nil {
					return nil, fmt.Errorf("feature %d part %d: %w", i, j, err)
				}
				out = append(out, seg)
			}
		default:
			// Points and polygons (shelters, areas) are not part of the road graph.
			continue
		}
	}
	return out, nil
}

func lonLatToGeo(coords [][]float64) ([]domain.Geo, error) {
	out := make([]domain.Geo, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("coordinate %v needs lon and lat", c)
		}
		out = append(out, domain.Geo{Lat: c[1], Lon: c[0]})
	}
	return out, nil
}

func segmentFromProperties(props map[string]any, index int) (domain.RoadSegment, error) {
	seg := domain.RoadSegment{
		ID:       propString(props, "id"),
		Name:     propString(props, "name"),
		Highway:  propString(props, "highway"),
		LengthM:  propFloat(props, "length"),
		BaseCost: propFloat(props, "base_cost"),
		OneWay:   propBool(props, "oneway"),
	}
	if seg.ID == "" {
		seg.ID = propString(props, "osmid")
	}
	if seg.ID == "" {
		seg.ID = fmt.Sprintf("seg-%05d", index)
	}
	status, err := domain.ParseStatus(propString(props, "status"))
	if err != nil {
		return seg, fmt.Errorf("feature %d: %w", index, err)
	}
	seg.BaseStatus = status
	return seg, nil
}

// propString flattens OSM-style values: lists are joined with "/".
func propString(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, propString(map[string]any{key: p}, key))
		}
		return strings.Join(parts, "/")
	default:
		return ""
	}
}

func propFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func propBool(props map[string]any, key string) bool {
	switch v := props[key].(type) {
	case bool:
		return v
	case string:
		return v == "yes" || v == "true" || v == "1"
	default:
		return false
	}
}

// EncodeGeoJSON writes segments as a FeatureCollection readable by
// ParseGeoJSON.
func EncodeGeoJSON(w io.Writer, segments []domain.RoadSegment) error {
	type outGeometry struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	}
	type outFeature struct {
		Type       string         `json:"type"`
		Geometry   outGeometry    `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	fc := struct {
		Type     string       `json:"type"`
		Features []outFeature `json:"features"`
	}{Type: "FeatureCollection"}

	for _, s := range segments {
		coords := make([][]float64, len(s.Geometry))
		for i, g := range s.Geometry {
			coords[i] = []float64{g.Lon, g.Lat}
		}
		props := map[string]any{"id": s.ID, "oneway": s.OneWay, "status": s.BaseStatus.String()}
		if s.Name != "" {
			props["name"] = s.Name
		}
		if s.Highway != "" {
			props["highway"] = s.Highway
		}
		if s.LengthM > 0 {
			props["length"] = s.LengthM
		}
		if s.BaseCost > 0 {
			props["base_cost"] = s.BaseCost
		}
		fc.Features = append(fc.Features, outFeature{
			Type:       "Feature",
			Geometry:   outGeometry{Type: "LineString", Coordinates: coords},
			Properties: props,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

// --- YAML ---

type yamlNetwork struct {
	Segments []yamlSegment `yaml:"segments"`
}

type yamlSegment struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Highway  string       `yaml:"highway"`
	OneWay   bool         `yaml:"one_way"`
	LengthM  float64      `yaml:"length_m"`
	BaseCost float64      `yaml:"base_cost"`
	Status   string       `yaml:"status"`
	Geometry []domain.Geo `yaml:"geometry"`
}

// ParseYAML reads road segments from a YAML document of the form
//
//	segments:
//	  - id: main-1
//	    name: Main St
//	    base_cost: 10
//	    status: open
//	    geometry:
//	      - {lat: 35.60, lon: -82.55}
//	      - {lat: 35.61, lon: -82.55}
func ParseYAML(r io.Reader) ([]domain.RoadSegment, error) {
	var doc yamlNetwork
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	out := make([]domain.RoadSegment, 0, len(doc.Segments))
	for _, s := range doc.Segments {
		status, err := domain.ParseStatus(s.Status)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", s.ID, err)
		}
		out = append(out, domain.RoadSegment{
			ID:         s.ID,
			Name:       s.Name,
			Highway:    s.Highway,
			Geometry:   s.Geometry,
			LengthM:    s.LengthM,
			BaseCost:   s.BaseCost,
			BaseStatus: status,
			OneWay:     s.OneWay,
		})
	}
	return out, nil
}
