package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/areascope/internal/area"
)

// squareAt builds a unit square polygon offset along the x axis.
func squareAt(x float64) *geom.Polygon {
	p := geom.NewPolygon(geom.XY)
	if err := p.Push(geom.NewLinearRingFlat(geom.XY,
		[]float64{x, 0, x + 1, 0, x + 1, 1, x, 1, x, 0})); err != nil {
		panic(err)
	}
	return p
}

func scopeDoc() *area.Document {
	return &area.Document{
		Format: area.FormatKML,
		Folders: []area.Folder{
			{Name: "North", Ordinal: 0, Polygons: []area.Polygon{
				{Name: "N1", Geom: squareAt(0)},
				{Name: "N2", Geom: squareAt(10)},
			}},
			{Name: "South", Ordinal: 1, Polygons: []area.Polygon{
				{Name: "S1", Geom: squareAt(20)},
			}},
			{Name: "North", Ordinal: 2, Polygons: []area.Polygon{
				{Name: "N3", Geom: squareAt(30)},
			}},
		},
	}
}

func TestBuildScopesAllFolders(t *testing.T) {
	scopes, err := BuildScopes(scopeDoc(), nil, nil, false)
	require.NoError(t, err)
	require.Len(t, scopes, 4)
	assert.Equal(t, "N1", scopes[0].Polygon)
	assert.Equal(t, "N3", scopes[3].Polygon)

	// Rings carry closed outer boundaries.
	ring := scopes[0].Ring
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestBuildScopesDuplicateFolderNames(t *testing.T) {
	scopes, err := BuildScopes(scopeDoc(), []string{"North"}, nil, false)
	require.NoError(t, err)
	require.Len(t, scopes, 3)
	assert.Equal(t, 0, scopes[0].FolderOrdinal)
	assert.Equal(t, 0, scopes[1].FolderOrdinal)
	assert.Equal(t, 2, scopes[2].FolderOrdinal)
}

func TestBuildScopesSelectionOrder(t *testing.T) {
	scopes, err := BuildScopes(scopeDoc(), []string{"South", "North"}, nil, false)
	require.NoError(t, err)
	require.Len(t, scopes, 4)
	assert.Equal(t, "S1", scopes[0].Polygon)
	assert.Equal(t, "N1", scopes[1].Polygon)
}

func TestBuildScopesPolygonFilter(t *testing.T) {
	scopes, err := BuildScopes(scopeDoc(), []string{"North"}, []string{"N2"}, true)
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, "N2", scopes[0].Polygon)
	assert.True(t, scopes[0].HeadOfHousehold)
}

func TestBuildScopesNoMatch(t *testing.T) {
	_, err := BuildScopes(scopeDoc(), []string{"West"}, nil, false)
	assert.Error(t, err)

	_, err = BuildScopes(scopeDoc(), []string{"South"}, []string{"N1"}, false)
	assert.Error(t, err)
}

func TestParseWorkflow(t *testing.T) {
	for _, s := range []string{"business", "consumer", "insights"} {
		wf, err := ParseWorkflow(s)
		require.NoError(t, err)
		assert.Equal(t, Workflow(s), wf)
	}
	_, err := ParseWorkflow("mystery")
	assert.Error(t, err)
}
