package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/areascope/internal/area"
	"github.com/sells-group/areascope/internal/records"
	"github.com/sells-group/areascope/internal/spatial"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

// Marker colors in KML aabbggrr order.
const (
	businessColor = "ffff0000" // blue
	consumerColor = "ff00ff00" // green
)

type kmlFile struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name    string      `xml:"name"`
	Styles  []kmlStyle  `xml:"Style"`
	Folders []kmlFolder `xml:"Folder"`
}

type kmlStyle struct {
	ID        string `xml:"id,attr"`
	IconColor string `xml:"IconStyle>color"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string    `xml:"name"`
	Description string    `xml:"description,omitempty"`
	StyleURL    string    `xml:"styleUrl,omitempty"`
	Point       *kmlPoint `xml:"Point,omitempty"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

// WriteRecordsKML renders records as point placemarks grouped by their
// source folder, blue markers for businesses and green for consumers.
// Records without coordinates are skipped.
func WriteRecordsKML(w io.Writer, recs []dataaxle.Record, workflow records.Workflow) error {
	styleID, color := "businessMarker", businessColor
	if workflow == records.WorkflowConsumer {
		styleID, color = "consumerMarker", consumerColor
	}

	folders := map[string]*kmlFolder{}
	var order []string
	for _, r := range recs {
		lng, lat, ok := r.Point()
		if !ok {
			continue
		}
		folderName, _ := r["source_folder"].(string)
		if folderName == "" {
			folderName = "Records"
		}
		f, seen := folders[folderName]
		if !seen {
			f = &kmlFolder{Name: folderName}
			folders[folderName] = f
			order = append(order, folderName)
		}
		f.Placemarks = append(f.Placemarks, kmlPlacemark{
			Name:     recordName(r),
			StyleURL: "#" + styleID,
			Point:    &kmlPoint{Coordinates: fmt.Sprintf("%f,%f,0", lng, lat)},
		})
	}

	doc := kmlDocument{
		Name:   "areascope " + string(workflow) + " records",
		Styles: []kmlStyle{{ID: styleID, IconColor: color}},
	}
	for _, name := range order {
		doc.Folders = append(doc.Folders, *folders[name])
	}
	return writeKML(w, doc)
}

// WriteSummariesKML renders one placemark per summarized polygon at its
// centroid, colored red through green by affluence score.
func WriteSummariesKML(w io.Writer, doc *area.Document, summaries []*records.InsightSummary) error {
	out := kmlDocument{Name: "areascope insights"}
	for i, s := range summaries {
		styleID := fmt.Sprintf("score%d", i)
		out.Styles = append(out.Styles, kmlStyle{ID: styleID, IconColor: scoreColor(s.AffluenceScore)})

		pm := kmlPlacemark{
			Name:     s.Polygon,
			StyleURL: "#" + styleID,
			Description: fmt.Sprintf(
				"affluence %.2f, households %d, businesses %d",
				s.AffluenceScore, s.HouseholdCount, s.BusinessCount,
			),
		}
		if poly := findPolygon(doc, s.Folder, s.Polygon); poly != nil {
			lng, lat := spatial.Centroid(poly.Geom)
			pm.Point = &kmlPoint{Coordinates: fmt.Sprintf("%f,%f,0", lng, lat)}
		}
		out.Folders = append(out.Folders, kmlFolder{
			Name:       fmt.Sprintf("%s / %s", s.Folder, s.Polygon),
			Placemarks: []kmlPlacemark{pm},
		})
	}
	return writeKML(w, out)
}

// scoreColor scales red (0) to green (100) in aabbggrr notation.
func scoreColor(score float64) string {
	s := math.Min(100, math.Max(0, score)) / 100
	green := int(math.Round(s * 255))
	red := 255 - green
	return fmt.Sprintf("ff00%02x%02x", green, red)
}

func findPolygon(doc *area.Document, folder, polygon string) *area.Polygon {
	if doc == nil {
		return nil
	}
	for i := range doc.Folders {
		if doc.Folders[i].Name != folder {
			continue
		}
		for j := range doc.Folders[i].Polygons {
			if doc.Folders[i].Polygons[j].Name == polygon {
				return &doc.Folders[i].Polygons[j]
			}
		}
	}
	return nil
}

func recordName(r dataaxle.Record) string {
	if name, _ := r["name"].(string); name != "" {
		return name
	}
	first, _ := r["first_name"].(string)
	last, _ := r["last_name"].(string)
	if first != "" || last != "" {
		if first == "" {
			return last
		}
		if last == "" {
			return first
		}
		return first + " " + last
	}
	return "Record"
}

func writeKML(w io.Writer, doc kmlDocument) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return eris.Wrap(err, "export: write kml header")
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(kmlFile{Xmlns: kmlNamespace, Document: doc}); err != nil {
		return eris.Wrap(err, "export: encode kml")
	}
	return nil
}
