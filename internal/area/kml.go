package area

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// Rings whose shoelace area falls below this are considered degenerate
// (collinear or zero-area) and dropped with a warning.
const minRingArea = 1e-12

type kmlRoot struct {
	Document   *kmlContainer  `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlContainer struct {
	Name       string         `xml:"name"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name          string      `xml:"name"`
	Polygon       *kmlPolygon `xml:"Polygon"`
	MultiGeometry *kmlMulti   `xml:"MultiGeometry"`
	Point         *kmlCoords  `xml:"Point"`
	LineString    *kmlCoords  `xml:"LineString"`
}

type kmlMulti struct {
	Polygons []kmlPolygon `xml:"Polygon"`
}

type kmlPolygon struct {
	Outer kmlBoundary   `xml:"outerBoundaryIs"`
	Inner []kmlBoundary `xml:"innerBoundaryIs"`
}

type kmlBoundary struct {
	Coordinates string `xml:"LinearRing>coordinates"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

// parseKML decodes a KML document into folders of polygons. Placemarks
// directly under the Document element are grouped under the document
// name (or "Root" when unnamed).
func (p *Parser) parseKML(data []byte, format Format) (*Document, error) {
	root, err := decodeKML(data)
	if err != nil {
		return nil, newParseError(MalformedGeometry, err)
	}

	doc := &Document{Format: format}
	b := &kmlBuilder{parser: p, doc: doc}

	topLevel := root.Placemarks
	folders := root.Folders
	rootName := "Root"
	if root.Document != nil {
		topLevel = append(topLevel, root.Document.Placemarks...)
		folders = append(folders, root.Document.Folders...)
		if strings.TrimSpace(root.Document.Name) != "" {
			rootName = strings.TrimSpace(root.Document.Name)
		}
	}

	if len(topLevel) > 0 {
		b.addFolder(rootName, topLevel)
	}
	for i := range folders {
		b.walkFolder(&folders[i])
	}

	if b.skipped > 0 {
		doc.Warnings = append(doc.Warnings,
			fmt.Sprintf("skipped %d non-polygon placemark(s)", b.skipped))
	}
	return doc, nil
}

// decodeKML unmarshals KML with a charset reader so that documents
// declaring non-UTF-8 encodings still decode.
func decodeKML(data []byte) (*kmlRoot, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var root kmlRoot
	if err := dec.Decode(&root); err != nil {
		return nil, eris.Wrap(err, "kml: decode document")
	}
	return &root, nil
}

// kmlBuilder accumulates folders while walking the KML tree.
type kmlBuilder struct {
	parser        *Parser
	doc           *Document
	unnamedFolder int
	skipped       int
}

func (b *kmlBuilder) walkFolder(f *kmlContainer) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		b.unnamedFolder++
		name = placeholderFolderName(b.unnamedFolder)
	}
	b.addFolder(name, f.Placemarks)

	// Nested folders become folders of their own, in depth-first order.
	for i := range f.Folders {
		b.walkFolder(&f.Folders[i])
	}
}

func (b *kmlBuilder) addFolder(name string, placemarks []kmlPlacemark) {
	folder := Folder{Name: name, Ordinal: len(b.doc.Folders)}

	unnamed := 0
	for i := range placemarks {
		pm := &placemarks[i]
		pmName := strings.TrimSpace(pm.Name)
		if pmName == "" {
			unnamed++
			pmName = placeholderPolygonName(unnamed)
		}

		switch {
		case pm.Polygon != nil:
			folder.Polygons = append(folder.Polygons, b.buildPolygons(pmName, pm.Polygon)...)
		case pm.MultiGeometry != nil && len(pm.MultiGeometry.Polygons) > 0:
			// Disjoint outer boundaries grouped under one name become one
			// polygon each, with a disambiguating suffix from the second on.
			n := 0
			for j := range pm.MultiGeometry.Polygons {
				partName := pmName
				if n > 0 {
					partName = fmt.Sprintf("%s (%d)", pmName, n+1)
				}
				if polys := b.buildPolygons(partName, &pm.MultiGeometry.Polygons[j]); len(polys) > 0 {
					folder.Polygons = append(folder.Polygons, polys...)
					n++
				}
			}
		default:
			// Points and line strings carry no queryable area.
			b.skipped++
		}
	}

	b.doc.Folders = append(b.doc.Folders, folder)
}

// buildPolygons turns one KML polygon into one or more model polygons.
// Oversized outer rings split into coverage-preserving parts that all
// carry the placemark name, so selection by name still yields the full
// area.
func (b *kmlBuilder) buildPolygons(name string, kp *kmlPolygon) []Polygon {
	outer, err := parseCoordinates(kp.Outer.Coordinates)
	if err != nil {
		b.warnf("polygon %q dropped: %v", name, err)
		return nil
	}
	outer = closeRing(outer)
	if len(outer) < 8 || math.Abs(ringArea(outer)) < minRingArea {
		b.warnf("polygon %q dropped: degenerate outer ring", name)
		return nil
	}

	rings := [][]float64{outer}
	if b.parser.MaxRingPoints > 0 && len(outer)/2 > b.parser.MaxRingPoints {
		rings = reduceRing(outer, b.parser.MaxRingPoints)
		if len(rings) > 1 {
			b.warnf("polygon %q outer ring split into %d parts", name, len(rings))
		} else {
			b.warnf("polygon %q outer ring reduced to %d points", name, len(rings[0])/2)
		}
	}

	// Holes only survive on an unsplit ring; split parts cover a
	// superset of the punched area.
	var holes [][]float64
	if len(rings) == 1 {
		for _, inner := range kp.Inner {
			hole, err := parseCoordinates(inner.Coordinates)
			if err != nil {
				b.warnf("polygon %q: hole skipped: %v", name, err)
				continue
			}
			hole = closeRing(hole)
			if len(hole) < 8 || math.Abs(ringArea(hole)) < minRingArea {
				b.warnf("polygon %q: degenerate hole skipped", name)
				continue
			}
			holes = append(holes, hole)
		}
	} else if len(kp.Inner) > 0 {
		b.warnf("polygon %q: holes dropped after splitting", name)
	}

	var polys []Polygon
	for _, ring := range rings {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, ring)); err != nil {
			b.warnf("polygon %q dropped: %v", name, err)
			continue
		}
		for _, hole := range holes {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, hole)); err != nil {
				b.warnf("polygon %q: hole skipped: %v", name, err)
			}
		}
		polys = append(polys, Polygon{Name: name, Geom: poly})
	}
	return polys
}

func (b *kmlBuilder) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	zap.L().Warn("area: " + msg)
	b.doc.Warnings = append(b.doc.Warnings, msg)
}

// parseCoordinates parses a KML coordinate string ("lon,lat[,alt] ...")
// into flat XY coordinates, discarding any altitude component.
func parseCoordinates(text string) ([]float64, error) {
	var flat []float64
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, eris.Errorf("kml: malformed coordinate tuple %q", tuple)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: parse longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: parse latitude %q", parts[1])
		}
		flat = append(flat, lng, lat)
	}
	if len(flat) < 6 {
		return nil, eris.Errorf("kml: ring has %d points, need at least 3", len(flat)/2)
	}
	return flat, nil
}

// closeRing appends the first point when a ring is not explicitly closed.
func closeRing(flat []float64) []float64 {
	n := len(flat)
	if n >= 4 && (flat[0] != flat[n-2] || flat[1] != flat[n-1]) {
		flat = append(flat, flat[0], flat[1])
	}
	return flat
}

// ringArea returns the signed shoelace area of a closed flat XY ring.
func ringArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n-1; i++ {
		x1, y1 := flat[2*i], flat[2*i+1]
		x2, y2 := flat[2*i+2], flat[2*i+3]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}
