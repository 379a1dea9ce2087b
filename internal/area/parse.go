package area

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Parser turns raw uploaded bytes into a Document.
type Parser struct {
	// MaxRingPoints caps the number of points per outer ring; oversized
	// rings are decimated before querying (0 disables the cap).
	MaxRingPoints int
}

// NewParser returns a Parser with the given ring point cap.
func NewParser(maxRingPoints int) *Parser {
	return &Parser{MaxRingPoints: maxRingPoints}
}

// Parse detects the encoding of data by content inspection and parses it
// into a Document. The declared filename is only used to warn when its
// extension disagrees with the detected content.
func (p *Parser) Parse(data []byte, filename string) (*Document, error) {
	if len(data) == 0 {
		return nil, newParseError(MalformedContainer, eris.New("empty input"))
	}

	var (
		doc *Document
		err error
	)
	if bytes.HasPrefix(data, zipMagic) {
		doc, err = p.parseContainer(data)
	} else if looksLikeXML(data) {
		doc, err = p.parseKML(data, FormatKML)
	} else {
		return nil, newParseError(MalformedGeometry, eris.New("unrecognized content: neither a ZIP container nor an XML document"))
	}
	if err != nil {
		return nil, err
	}

	if w := extensionMismatch(filename, doc.Format); w != "" {
		zap.L().Warn("area: declared extension disagrees with detected content",
			zap.String("filename", filename),
			zap.String("detected", string(doc.Format)),
		)
		doc.Warnings = append(doc.Warnings, w)
	}

	if doc.PolygonCount() == 0 {
		return nil, newParseError(EmptyDocument, eris.New("no valid polygons after filtering"))
	}
	return doc, nil
}

// looksLikeXML reports whether data starts with an XML declaration or
// element, ignoring a UTF-8 BOM and leading whitespace.
func looksLikeXML(data []byte) bool {
	trimmed := bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	trimmed = bytes.TrimLeft(trimmed, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

func extensionMismatch(filename string, detected Format) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return ""
	}
	ok := map[Format][]string{
		FormatKML:       {"kml"},
		FormatKMZ:       {"kmz", "zip"},
		FormatShapefile: {"zip", "shp"},
	}
	for _, allowed := range ok[detected] {
		if ext == allowed {
			return ""
		}
	}
	return "declared extension ." + ext + " does not match detected " + string(detected) + " content"
}
