// Package area parses uploaded geographic-area files (KML, KMZ, zipped
// shapefiles) into an immutable folder/polygon document model.
package area

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// Format identifies the detected encoding of an uploaded area file.
type Format string

const (
	FormatKML       Format = "kml"
	FormatKMZ       Format = "kmz"
	FormatShapefile Format = "shapefile"
)

// Polygon is a named closed boundary. Ring 0 of Geom is the outer
// boundary; any further rings are holes.
type Polygon struct {
	Name string
	Geom *geom.Polygon
}

// Folder groups polygons under the name they carried in the source
// document. Folder names are not unique; Ordinal disambiguates.
type Folder struct {
	Name     string
	Ordinal  int
	Polygons []Polygon
}

// Document is the parsed artifact. It is read-only after Parse returns,
// so concurrent readers need no locking.
type Document struct {
	Format   Format
	Folders  []Folder
	Warnings []string
}

// PolygonCount returns the total number of polygons across all folders.
func (d *Document) PolygonCount() int {
	n := 0
	for _, f := range d.Folders {
		n += len(f.Polygons)
	}
	return n
}

// FolderNames returns folder names in document order, duplicates included.
func (d *Document) FolderNames() []string {
	names := make([]string, 0, len(d.Folders))
	for _, f := range d.Folders {
		names = append(names, f.Name)
	}
	return names
}

// SelectFolders returns every folder whose name matches one of the given
// names, ordered by the selection order first and document order within
// a name. Duplicate folder names match all folders carrying the name.
func (d *Document) SelectFolders(names []string) []*Folder {
	var selected []*Folder
	for _, name := range names {
		for i := range d.Folders {
			if d.Folders[i].Name == name {
				selected = append(selected, &d.Folders[i])
			}
		}
	}
	return selected
}

// OuterRing returns the polygon's outer boundary as (lng, lat) pairs,
// first point repeated at the end.
func (p *Polygon) OuterRing() [][2]float64 {
	ring := p.Geom.LinearRing(0)
	coords := make([][2]float64, 0, ring.NumCoords())
	for i := 0; i < ring.NumCoords(); i++ {
		c := ring.Coord(i)
		coords = append(coords, [2]float64{c[0], c[1]})
	}
	return coords
}

func placeholderFolderName(n int) string {
	return fmt.Sprintf("Unnamed Folder %d", n)
}

func placeholderPolygonName(n int) string {
	return fmt.Sprintf("Area %d", n)
}
