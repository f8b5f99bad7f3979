package expense

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sgrimes/expenselens/internal/category"
)

// Uploads are capped well above typical phone photos; high-resolution HEIC
// originals run 10-20MB.
const maxUploadSize = int64(50 << 20)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	setCORSHeaders(w)
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid receipt ID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRecords()
	if err != nil {
		s.logger.Error("listing records", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []*Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.logger.Error("parsing multipart form", "error", err)
		msg := "error parsing form"
		if err.Error() == "http: request body too large" {
			msg = "file is too large, maximum size is 50MB"
		}
		s.jsonError(w, http.StatusBadRequest, msg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		s.jsonError(w, http.StatusBadRequest, "file is too large, maximum size is 50MB")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Error("reading upload", "error", err, "filename", header.Filename)
		s.jsonError(w, http.StatusInternalServerError, "error reading file")
		return
	}

	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)

	rec, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		s.logger.Error("processing receipt", "filename", header.Filename, "error", err)
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, rec)
}

// uploadContentType falls back to the filename extension when the browser
// omits the MIME type. HEIC and HEIF survive untouched so the conversion
// step can see them.
func uploadContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.service.GetRecord(id)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "receipt not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	data, contentType, err := s.service.GetRecordFile(id)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteRecord(id); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "error deleting receipt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReassignCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.service.ReassignCategory(id, req.Category)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleClearReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.service.ClearReview(id)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "receipt not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.service.Rescan(r.Context(), id)
	if err != nil {
		s.logger.Error("rescanning receipt", "id", id, "error", err)
		s.jsonError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, category.All())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
