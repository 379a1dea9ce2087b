package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/areascope/internal/area"
	"github.com/sells-group/areascope/internal/config"
	"github.com/sells-group/areascope/internal/records"
	"github.com/sells-group/areascope/internal/store"
	"github.com/sells-group/areascope/pkg/dataaxle"
)

// uploadFieldName is the multipart form field carrying the area file.
const uploadFieldName = "geo_file"

// server holds the HTTP API's dependencies.
type server struct {
	cfg    *config.Config
	store  store.Store
	client dataaxle.Client
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/folders", s.handleFolders)
	r.Get("/uploads", s.handleListUploads)
	r.Delete("/uploads/{id}", s.handleDeleteUpload)
	r.Post("/records", s.handleRecords)
	r.Post("/insights", s.handleInsights)
	r.Post("/export/{format}", s.handleExport)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type folderInfo struct {
	Name     string   `json:"name"`
	Polygons []string `json:"polygons"`
}

func folderInfos(doc *area.Document) []folderInfo {
	infos := make([]folderInfo, 0, len(doc.Folders))
	for _, f := range doc.Folders {
		names := make([]string, 0, len(f.Polygons))
		for _, p := range f.Polygons {
			names = append(names, p.Name)
		}
		infos = append(infos, folderInfo{Name: f.Name, Polygons: names})
	}
	return infos
}

type uploadResponse struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	Format       string       `json:"format"`
	PolygonCount int          `json:"polygon_count"`
	Folders      []folderInfo `json:"folders"`
	Warnings     []string     `json:"warnings,omitempty"`
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Server.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, eris.Wrap(err, "parse upload"))
		return
	}
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrapf(err, "missing form field %q", uploadFieldName))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "read upload"))
		return
	}

	doc, err := area.NewParser(s.cfg.Area.MaxRingPoints).Parse(data, header.Filename)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	geojson, err := area.EncodeGeoJSON(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	up := &store.Upload{
		Filename:     header.Filename,
		Format:       string(doc.Format),
		PolygonCount: doc.PolygonCount(),
		GeoJSON:      geojson,
	}
	if err := s.store.SaveUpload(r.Context(), up); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	zap.L().Info("upload stored",
		zap.String("id", up.ID),
		zap.String("filename", up.Filename),
		zap.Int("polygons", up.PolygonCount),
	)
	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:           up.ID,
		Filename:     up.Filename,
		Format:       up.Format,
		PolygonCount: up.PolygonCount,
		Folders:      folderInfos(doc),
		Warnings:     doc.Warnings,
	})
}

// loadDocument resolves an upload (latest when id is empty) and rebuilds
// its document model.
func (s *server) loadDocument(ctx context.Context, id string) (*area.Document, *store.Upload, error) {
	var (
		up  *store.Upload
		err error
	)
	if id == "" {
		up, err = s.store.LatestUpload(ctx)
	} else {
		up, err = s.store.GetUpload(ctx, id)
	}
	if err != nil {
		return nil, nil, err
	}
	doc, err := area.DecodeGeoJSON(up.GeoJSON)
	if err != nil {
		return nil, nil, err
	}
	return doc, up, nil
}

func storeStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *server) handleFolders(w http.ResponseWriter, r *http.Request) {
	doc, up, err := s.loadDocument(r.Context(), r.URL.Query().Get("upload_id"))
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id": up.ID,
		"filename":  up.Filename,
		"folders":   folderInfos(doc),
	})
}

func (s *server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	ups, err := s.store.ListUploads(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ups == nil {
		ups = []store.Upload{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": ups})
}

func (s *server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteUpload(r.Context(), id); err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runRequest selects what to fetch from a stored upload.
type runRequest struct {
	UploadID        string   `json:"upload_id"`
	Workflow        string   `json:"workflow"`
	Folders         []string `json:"folders"`
	Polygons        []string `json:"polygons"`
	HeadOfHousehold bool     `json:"head_of_household"`
}

func decodeRunRequest(r *http.Request) (runRequest, error) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, eris.Wrap(err, "decode request")
	}
	return req, nil
}

// run executes one workflow over a stored upload's selected folders.
func (s *server) run(ctx context.Context, doc *area.Document, wf records.Workflow, req runRequest) (*records.Result, error) {
	fetcher := records.NewFetcher(s.client, s.cfg.Fetch)
	orch := records.NewOrchestrator(fetcher, wf, s.cfg.Orchestrator, s.cfg.Affluence)
	if err := orch.BuildScopes(doc, req.Folders, req.Polygons, req.HeadOfHousehold); err != nil {
		return nil, err
	}
	return orch.Run(ctx)
}

func (s *server) handleRecords(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Workflow == "" {
		req.Workflow = string(records.WorkflowBusiness)
	}
	wf, err := records.ParseWorkflow(req.Workflow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if wf == records.WorkflowInsights {
		writeError(w, http.StatusBadRequest, eris.New("use /insights for the insights workflow"))
		return
	}
	s.respondRun(w, r, wf, req)
}

func (s *server) handleInsights(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.respondRun(w, r, records.WorkflowInsights, req)
}

func (s *server) respondRun(w http.ResponseWriter, r *http.Request, wf records.Workflow, req runRequest) {
	doc, _, err := s.loadDocument(r.Context(), req.UploadID)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	res, err := s.run(r.Context(), doc, wf, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

var exportContentTypes = map[string]string{
	"csv":  "text/csv",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"kml":  "application/vnd.google-earth.kml+xml",
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	contentType, ok := exportContentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, eris.Errorf("unknown export format %q", format))
		return
	}

	req, err := decodeRunRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Workflow == "" {
		req.Workflow = string(records.WorkflowBusiness)
	}
	wf, err := records.ParseWorkflow(req.Workflow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc, _, err := s.loadDocument(r.Context(), req.UploadID)
	if err != nil {
		writeError(w, storeStatus(err), err)
		return
	}
	res, err := s.run(r.Context(), doc, wf, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(wf)+`.`+format+`"`)
	if err := writeResult(w, doc, res, format); err != nil {
		zap.L().Error("export write failed", zap.String("format", format), zap.Error(err))
	}
}
