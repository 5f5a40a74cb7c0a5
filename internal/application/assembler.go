package app

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/logging"
)

// IDSequence hands out feature ids for one run, starting at 1.
type IDSequence struct {
	next int
}

func NewIDSequence() *IDSequence {
	return &IDSequence{next: 1}
}

func (s *IDSequence) Next() int {
	id := s.next
	s.next++
	return id
}

// Assembler builds the run's FeatureCollection.
type Assembler struct {
	name    string
	crs     string
	cleaner *PathCleaner
	log     *logging.Logger
}

// Assembly is the collection together with the features in id order.
type Assembly struct {
	Collection *geojson.FeatureCollection
	Features   []entity.GeoFeature
	Issues     []error
}

// NewAssembler creates an assembler. A nil cleaner disables path cleanup.
func NewAssembler(name, crs string, cleaner *PathCleaner, log *logging.Logger) *Assembler {
	if log == nil {
		log = logging.Discard()
	}
	return &Assembler{name: name, crs: crs, cleaner: cleaner, log: log}
}

// Assemble numbers points first, then paths, in the order given. When
// cleanup fails the uncleaned paths are used.
func (a *Assembler) Assemble(points, paths []entity.GeoFeature) Assembly {
	var res Assembly
	if a.cleaner != nil && len(paths) > 0 {
		cleaned, err := a.cleaner.Clean(paths)
		if err != nil {
			a.log.Warn("path cleanup failed, keeping stitched paths", "error", err, "paths", len(paths))
			res.Issues = append(res.Issues, fmt.Errorf("path cleanup: %w", err))
		} else {
			paths = cleaned
		}
	}

	fc := a.Empty()
	ids := NewIDSequence()
	for _, group := range [][]entity.GeoFeature{points, paths} {
		for _, f := range group {
			fc.Append(a.feature(ids.Next(), f))
			res.Features = append(res.Features, f)
		}
	}
	res.Collection = fc
	return res
}

func (a *Assembler) feature(id int, f entity.GeoFeature) *geojson.Feature {
	feat := geojson.NewFeature(f.Geometry())
	feat.Properties["id"] = id
	feat.Properties["name"] = f.Name
	feat.Properties["description"] = f.Description
	feat.Properties["polygon_area"] = entity.FormatArea(f.AreaPhysical)
	return feat
}

// Empty returns a collection with the run-level members and no features.
func (a *Assembler) Empty() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"name": a.name,
		"crs": map[string]interface{}{
			"type":       "name",
			"properties": map[string]interface{}{"name": a.crs},
		},
	}
	return fc
}

// Encode serialises a collection. Non-finite coordinates fail the encoding.
func (a *Assembler) Encode(fc *geojson.FeatureCollection) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("encode feature collection: %v", r)
		}
	}()
	data, err = json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return data, nil
}

// EmptyJSON is the encoded empty collection written when a run fails.
func (a *Assembler) EmptyJSON() []byte {
	data, err := a.Encode(a.Empty())
	if err != nil {
		return []byte(`{"type":"FeatureCollection","features":[]}`)
	}
	return data
}
