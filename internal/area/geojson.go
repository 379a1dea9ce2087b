package area

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// EncodeGeoJSON renders the document as a FeatureCollection with one
// feature per polygon. Folder membership travels in feature properties
// so a round trip preserves the folder/polygon structure.
func EncodeGeoJSON(doc *Document) ([]byte, error) {
	fc := &geojson.FeatureCollection{}
	for _, folder := range doc.Folders {
		for _, poly := range folder.Polygons {
			fc.Features = append(fc.Features, &geojson.Feature{
				Geometry: poly.Geom,
				Properties: map[string]any{
					"name":           poly.Name,
					"folder":         folder.Name,
					"folder_ordinal": folder.Ordinal,
				},
			})
		}
	}

	raw, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: marshal feature collection")
	}
	return raw, nil
}

// DecodeGeoJSON rebuilds a Document from a FeatureCollection produced
// by EncodeGeoJSON. Features missing folder properties are grouped
// under "Root".
func DecodeGeoJSON(raw []byte) (*Document, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, eris.Wrap(err, "geojson: unmarshal feature collection")
	}

	doc := &Document{Format: FormatKML}
	// Ordinal keyed so folders re-assemble in their original order.
	index := map[int]int{}
	for _, feat := range fc.Features {
		poly, ok := feat.Geometry.(*geom.Polygon)
		if !ok {
			continue
		}

		name, _ := feat.Properties["name"].(string)
		if name == "" {
			name = placeholderPolygonName(1)
		}
		folderName, _ := feat.Properties["folder"].(string)
		if folderName == "" {
			folderName = "Root"
		}
		ordinal := 0
		if v, ok := feat.Properties["folder_ordinal"].(float64); ok {
			ordinal = int(v)
		}

		i, seen := index[ordinal]
		if !seen {
			i = len(doc.Folders)
			index[ordinal] = i
			doc.Folders = append(doc.Folders, Folder{Name: folderName, Ordinal: len(doc.Folders)})
		}
		doc.Folders[i].Polygons = append(doc.Folders[i].Polygons, Polygon{Name: name, Geom: poly})
	}

	if doc.PolygonCount() == 0 {
		return nil, newParseError(EmptyDocument, eris.New("feature collection holds no polygons"))
	}
	return doc, nil
}
