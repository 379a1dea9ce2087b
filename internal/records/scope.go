package records

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/areascope/internal/area"
)

// Scope is one polygon's query unit: enough to build the provider
// filter and to attribute results back to their source.
type Scope struct {
	Folder          string
	FolderOrdinal   int
	Polygon         string
	Ring            [][2]float64
	HeadOfHousehold bool
}

// BuildScopes expands a folder/polygon selection into scopes. An empty
// folder selection takes every folder; duplicate folder names match all
// folders carrying the name. polygonNames, when non-empty, restricts to
// the named polygons within the selected folders.
func BuildScopes(doc *area.Document, folderNames, polygonNames []string, headOfHousehold bool) ([]Scope, error) {
	var folders []*area.Folder
	if len(folderNames) == 0 {
		for i := range doc.Folders {
			folders = append(folders, &doc.Folders[i])
		}
	} else {
		folders = doc.SelectFolders(folderNames)
		if len(folders) == 0 {
			return nil, eris.Errorf("no folders match selection %v", folderNames)
		}
	}

	wanted := map[string]bool{}
	for _, name := range polygonNames {
		wanted[name] = true
	}

	var scopes []Scope
	for _, folder := range folders {
		for i := range folder.Polygons {
			poly := &folder.Polygons[i]
			if len(wanted) > 0 && !wanted[poly.Name] {
				continue
			}
			scopes = append(scopes, Scope{
				Folder:          folder.Name,
				FolderOrdinal:   folder.Ordinal,
				Polygon:         poly.Name,
				Ring:            poly.OuterRing(),
				HeadOfHousehold: headOfHousehold,
			})
		}
	}
	if len(scopes) == 0 {
		return nil, eris.New("selection matched no polygons")
	}
	return scopes, nil
}
