package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/equinoxcap/investor-portal-backend/internal/api/request"
	"github.com/equinoxcap/investor-portal-backend/internal/api/response"
	"github.com/equinoxcap/investor-portal-backend/internal/feeengine"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
)

// maxImportSize caps uploaded CSV files at 10 MB.
const maxImportSize = 10 << 20

// ImportsHandler serves the legacy fee CSV import endpoints.
type ImportsHandler struct {
	service *service.ImportService
}

// NewImportsHandler creates a new ImportsHandler.
func NewImportsHandler(service *service.ImportService) *ImportsHandler {
	return &ImportsHandler{service: service}
}

// Import validates and stages an uploaded fee CSV. The endpoint accepts
// the file three ways: raw text/csv body, multipart form upload under the
// "file" field, or a JSON body wrapping the content.
func (h *ImportsHandler) Import(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.service.ImportCSV(filename, content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	response.RespondJSON(w, status, result)
}

// Apply applies a staged import, or previews it with dryRun set.
func (h *ImportsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	var req request.ApplyImportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	result, err := h.service.ApplyImportedFees(importID, req.DryRun)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondJSON(w, http.StatusOK, result)
}

// Template serves the downloadable CSV template.
func (h *ImportsHandler) Template(w http.ResponseWriter, r *http.Request) {
	response.RespondCSV(w, "fee_import_template.csv", []byte(feeengine.GenerateTemplate()))
}

// Download returns the archived original file of a past import.
func (h *ImportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	filename, content, err := h.service.GetImportFile(importID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	response.RespondCSV(w, filename, content)
}

// readUpload extracts the CSV filename and content from whichever upload
// form the request used. Writes the error response itself on failure.
func readUpload(w http.ResponseWriter, r *http.Request) (filename, content string, ok bool) {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid multipart upload", err.Error())
			return "", "", false
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "missing file field", err.Error())
			return "", "", false
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "failed to read upload", err.Error())
			return "", "", false
		}
		return header.Filename, string(data), true

	case strings.HasPrefix(contentType, "application/json"):
		var req request.ImportCSVRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return "", "", false
		}
		if req.Content == "" {
			response.RespondError(w, http.StatusBadRequest, "content is required", nil)
			return "", "", false
		}
		if req.Filename == "" {
			req.Filename = "upload.csv"
		}
		return req.Filename, req.Content, true

	default:
		data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "failed to read upload", err.Error())
			return "", "", false
		}
		if len(data) == 0 {
			response.RespondError(w, http.StatusBadRequest, "empty upload", nil)
			return "", "", false
		}
		return "upload.csv", string(data), true
	}
}
