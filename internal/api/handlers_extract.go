package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/finextract/internal/parser"
	"github.com/dgallion1/finextract/internal/pipeline"
	"github.com/dgallion1/finextract/internal/record"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		jsonError(w, "file is empty", http.StatusBadRequest)
		return
	}

	indexed := false
	if v := r.FormValue("indexed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, "indexed must be a boolean", http.StatusBadRequest)
			return
		}
		indexed = b
	}

	collectionID := strings.TrimSpace(r.FormValue("collection_id"))
	if collectionID == "" {
		collectionID = pipeline.ContentHashHex(data)
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:             uuid.NewString(),
		CollectionID:   collectionID,
		Status:         pipeline.StatusQueued,
		Phase:          "queued",
		Filename:       filename,
		Years:          parseYears(r.MultipartForm.Value["years"]),
		AlreadyIndexed: indexed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	job.SetFileData(data)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":        job.ID,
		"collection_id": job.CollectionID,
		"status":        job.Snapshot().Status,
		"poll_url":      fmt.Sprintf("/api/extract/%s/status", job.ID),
	})
}

func (s *Server) handleExtractStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	resp := map[string]any{
		"job_id":        snap.ID,
		"collection_id": snap.CollectionID,
		"status":        snap.Status,
		"phase":         snap.Phase,
		"progress":      snap.Progress,
	}
	if snap.Status == pipeline.StatusCompleted {
		resp["rows_url"] = fmt.Sprintf("/api/extract/%s/rows", snap.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExtractRows(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = record.FormatJSON
	}
	contentType := record.ContentType(format)
	if contentType == "" {
		jsonError(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}
	if status := job.Snapshot().Status; status != pipeline.StatusCompleted {
		jsonError(w, fmt.Sprintf("job is %s", status), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if format != record.FormatJSON {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, job.ID, format))
	}
	if err := record.Write(w, format, job.Rows()); err != nil {
		s.log.Error("write rows", "job_id", job.ID, "format", format, "error", err)
	}
}

// parseYears accepts repeated and comma-separated year values.
func parseYears(values []string) []string {
	var years []string
	for _, v := range values {
		for _, y := range strings.Split(v, ",") {
			if y = strings.TrimSpace(y); y != "" {
				years = append(years, y)
			}
		}
	}
	return years
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
