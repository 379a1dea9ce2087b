package area

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// maxEntrySize caps a single archive entry to guard against zip bombs.
const maxEntrySize = 64 << 20

// parseContainer opens a ZIP container and routes to the KML or
// shapefile parser depending on what the archive holds. A KMZ is
// expected to carry exactly one .kml document; a shapefile archive is
// recognized by the presence of a .shp entry.
func (p *Parser) parseContainer(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newParseError(MalformedContainer, eris.Wrap(err, "open zip container"))
	}

	var kmlEntry *zip.File
	hasShp := false
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".kml":
			if kmlEntry == nil {
				kmlEntry = f
			}
		case ".shp":
			hasShp = true
		}
	}

	switch {
	case kmlEntry != nil:
		raw, err := readEntry(kmlEntry)
		if err != nil {
			return nil, newParseError(MalformedContainer, err)
		}
		return p.parseKML(raw, FormatKMZ)
	case hasShp:
		return p.parseShapefile(zr)
	default:
		return nil, newParseError(MalformedContainer, eris.New("archive holds no .kml or .shp entry"))
	}
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "open archive entry %s", f.Name)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxEntrySize))
	if err != nil {
		return nil, eris.Wrapf(err, "read archive entry %s", f.Name)
	}
	return raw, nil
}
