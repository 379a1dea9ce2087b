package area

import (
	"archive/zip"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// nameFieldCandidates are DBF attribute names commonly carrying the
// feature name, checked in order.
var nameFieldCandidates = []string{"NAME", "Name", "name", "NAMELSAD", "LABEL"}

// parseShapefile extracts a zipped shapefile to a temp directory and
// reads its polygon features. Each feature becomes one folder; each
// polygon part becomes its own named polygon within the folder.
func (p *Parser) parseShapefile(zr *zip.Reader) (*Document, error) {
	dir, err := os.MkdirTemp("", "areascope-shp-*")
	if err != nil {
		return nil, newParseError(MalformedContainer, eris.Wrap(err, "create temp dir"))
	}
	defer os.RemoveAll(dir)

	shpPath, err := extractShapefile(zr, dir)
	if err != nil {
		return nil, newParseError(MalformedContainer, err)
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, newParseError(MalformedGeometry, eris.Wrap(err, "open shapefile"))
	}
	defer reader.Close()

	doc := &Document{Format: FormatShapefile}
	nameField := findNameField(reader.Fields())

	feature := 0
	for reader.Next() {
		_, shape := reader.Shape()
		feature++

		name := ""
		if nameField >= 0 {
			name = strings.Trim(reader.Attribute(nameField), " \x00")
		}
		if name == "" {
			name = fmt.Sprintf("Feature %d", feature)
		}

		sp, ok := shape.(*shp.Polygon)
		if !ok {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("feature %q skipped: not a polygon", name))
			continue
		}

		folder := Folder{Name: name, Ordinal: len(doc.Folders)}
		parts := splitParts(sp)
		for part, ring := range parts {
			flat := closeRing(ring)
			if len(flat) < 8 || math.Abs(ringArea(flat)) < minRingArea {
				doc.Warnings = append(doc.Warnings,
					fmt.Sprintf("feature %q part %d skipped: degenerate ring", name, part+1))
				continue
			}
			rings := [][]float64{flat}
			if p.MaxRingPoints > 0 && len(flat)/2 > p.MaxRingPoints {
				rings = reduceRing(flat, p.MaxRingPoints)
				if len(rings) > 1 {
					doc.Warnings = append(doc.Warnings,
						fmt.Sprintf("feature %q part %d split into %d parts", name, part+1, len(rings)))
				} else {
					doc.Warnings = append(doc.Warnings,
						fmt.Sprintf("feature %q part %d reduced to %d points", name, part+1, len(rings[0])/2))
				}
			}

			polyName := name
			if len(parts) > 1 {
				polyName = fmt.Sprintf("%s (%d)", name, part+1)
			}
			for _, ring := range rings {
				poly := geom.NewPolygon(geom.XY)
				if err := poly.Push(geom.NewLinearRingFlat(geom.XY, ring)); err != nil {
					doc.Warnings = append(doc.Warnings,
						fmt.Sprintf("feature %q part %d skipped: %v", name, part+1, err))
					continue
				}
				folder.Polygons = append(folder.Polygons, Polygon{Name: polyName, Geom: poly})
			}
		}
		doc.Folders = append(doc.Folders, folder)
	}
	if err := reader.Err(); err != nil {
		return nil, newParseError(MalformedGeometry, eris.Wrap(err, "read shapefile records"))
	}
	return doc, nil
}

// extractShapefile writes the archive's shapefile members into dir and
// returns the path of the .shp file. Entry names are sanitized so a
// crafted archive cannot write outside dir.
func extractShapefile(zr *zip.Reader, dir string) (string, error) {
	shpPath := ""
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		switch ext {
		case ".shp", ".shx", ".dbf", ".prj", ".cpg":
		default:
			continue
		}

		base := filepath.Base(f.Name)
		dest := filepath.Join(dir, base)
		if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
			return "", eris.Errorf("archive entry %s escapes extraction dir", f.Name)
		}

		raw, err := readEntry(f)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(dest, raw, 0o644); err != nil {
			return "", eris.Wrapf(err, "write %s", base)
		}
		if ext == ".shp" && shpPath == "" {
			shpPath = dest
		}
	}
	if shpPath == "" {
		return "", eris.New("archive holds no .shp entry")
	}
	return shpPath, nil
}

// findNameField returns the index of the first recognized name field,
// or -1 when the DBF carries none.
func findNameField(fields []shp.Field) int {
	for _, candidate := range nameFieldCandidates {
		for i, f := range fields {
			if strings.EqualFold(strings.TrimRight(string(f.Name[:]), "\x00"), candidate) {
				return i
			}
		}
	}
	return -1
}

// splitParts breaks a shapefile polygon into its parts as flat XY rings.
func splitParts(sp *shp.Polygon) [][]float64 {
	numParts := len(sp.Parts)
	if numParts == 0 {
		return nil
	}
	rings := make([][]float64, 0, numParts)
	for i, start := range sp.Parts {
		end := int32(len(sp.Points))
		if i+1 < numParts {
			end = sp.Parts[i+1]
		}
		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range sp.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		rings = append(rings, flat)
	}
	return rings
}
