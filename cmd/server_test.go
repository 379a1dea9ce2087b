package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/areascope/internal/config"
	"github.com/sells-group/areascope/internal/records"
	"github.com/sells-group/areascope/internal/store"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

const serverTestKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Folder>
      <name>North</name>
      <Placemark>
        <name>Square</name>
        <Polygon><outerBoundaryIs><LinearRing><coordinates>
          -97.0,32.0 -96.0,32.0 -96.0,33.0 -97.0,33.0 -97.0,32.0
        </coordinates></LinearRing></outerBoundaryIs></Polygon>
      </Placemark>
    </Folder>
  </Document>
</kml>`

// apiFakeClient serves one record per scope and a fixed insight bucket set.
type apiFakeClient struct {
	mu       sync.Mutex
	scrolled map[string]bool
}

func (c *apiFakeClient) Scan(ctx context.Context, dataset dataaxle.Dataset, filter dataaxle.Filter) (*dataaxle.ScanResult, error) {
	return &dataaxle.ScanResult{Count: 1, ScrollID: "scroll-1"}, nil
}

func (c *apiFakeClient) Scroll(ctx context.Context, dataset dataaxle.Dataset, scrollID string) (*dataaxle.ScrollPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scrolled == nil {
		c.scrolled = map[string]bool{}
	}
	if c.scrolled[scrollID] {
		return &dataaxle.ScrollPage{}, nil
	}
	c.scrolled[scrollID] = true
	return &dataaxle.ScrollPage{
		Documents: []dataaxle.Record{{
			"name":      "Acme Widgets",
			"latitude":  32.5,
			"longitude": -96.5,
		}},
	}, nil
}

func (c *apiFakeClient) Insights(ctx context.Context, dataset dataaxle.Dataset, filter dataaxle.Filter, calc dataaxle.InsightCalc) (*dataaxle.InsightResult, error) {
	return &dataaxle.InsightResult{
		Count: 100,
		Buckets: []dataaxle.Bucket{
			{Value: "50000_75000", Lower: 50000, Upper: 75000, Count: 60},
			{Value: "75000_100000", Lower: 75000, Upper: 100000, Count: 40},
		},
	}, nil
}

func newTestServer(t *testing.T) *server {
	t.Helper()

	st, err := store.Open(context.Background(), store.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	testCfg := &config.Config{}
	testCfg.Area.MaxRingPoints = 500
	testCfg.Server.MaxUploadSizeMB = 8
	testCfg.Server.AllowedOrigins = []string{"*"}
	testCfg.Orchestrator.Concurrency = 2
	testCfg.Affluence = records.DefaultAffluenceConfig()

	return &server{cfg: testCfg, store: st, client: &apiFakeClient{}}
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(uploadFieldName, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadTestDoc(t *testing.T, h http.Handler) string {
	t.Helper()
	body, contentType := multipartUpload(t, "areas.kml", []byte(serverTestKML))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestHealth(t *testing.T) {
	h := newTestServer(t).routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestUploadAndFolders(t *testing.T) {
	h := newTestServer(t).routes()
	id := uploadTestDoc(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/folders?upload_id="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"North"`)
	assert.Contains(t, rec.Body.String(), `"Square"`)

	// Latest upload is the default.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/folders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
}

func TestUploadRejectsGarbage(t *testing.T) {
	h := newTestServer(t).routes()

	body, contentType := multipartUpload(t, "junk.kml", []byte("not a map"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadMissingField(t *testing.T) {
	h := newTestServer(t).routes()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFoldersNotFound(t *testing.T) {
	h := newTestServer(t).routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/folders?upload_id=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordsRun(t *testing.T) {
	h := newTestServer(t).routes()
	id := uploadTestDoc(t, h)

	body := `{"upload_id":"` + id + `","workflow":"business"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res records.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, records.StateCompleted, res.State)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "North", res.Records[0]["source_folder"])
	assert.Equal(t, "Square", res.Records[0]["source_polygon"])
}

func TestRecordsRejectsInsightsWorkflow(t *testing.T) {
	h := newTestServer(t).routes()
	uploadTestDoc(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"workflow":"insights"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordsUnknownFolder(t *testing.T) {
	h := newTestServer(t).routes()
	uploadTestDoc(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"folders":["Nowhere"]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsightsRun(t *testing.T) {
	h := newTestServer(t).routes()
	id := uploadTestDoc(t, h)

	body := `{"upload_id":"` + id + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/insights", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res records.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, records.StateCompleted, res.State)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, 100, res.Summaries[0].HouseholdCount)
	assert.Greater(t, res.Summaries[0].AffluenceScore, 0.0)
}

func TestExportCSV(t *testing.T) {
	h := newTestServer(t).routes()
	uploadTestDoc(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export/csv", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "source_folder")
	assert.Contains(t, rec.Body.String(), "Acme Widgets")
}

func TestExportUnknownFormat(t *testing.T) {
	h := newTestServer(t).routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export/pdf", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadsListAndDelete(t *testing.T) {
	h := newTestServer(t).routes()
	id := uploadTestDoc(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/uploads/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/uploads/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
