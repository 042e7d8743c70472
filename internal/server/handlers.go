package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/verdictlabs/verdict/internal/common"
	"github.com/verdictlabs/verdict/internal/ingest"
	"github.com/verdictlabs/verdict/internal/model"
	"github.com/verdictlabs/verdict/internal/service"
)

// handleSubmit accepts one application for the domain named in the query
// string. The body is the raw feature object.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	domain, err := requireDomain(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&input); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %w", common.ErrValidation, err))
		return
	}

	app, err := s.engine.Submit(r.Context(), domain, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	domain := model.Domain(r.URL.Query().Get("domain"))
	if domain != "" && !domain.Valid() {
		writeError(w, fmt.Errorf("%w: unknown domain %q", common.ErrValidation, domain))
		return
	}

	filter := service.ApplicationFilter(strings.ToLower(r.URL.Query().Get("filter")))
	if filter == "" {
		filter = service.FilterAll
	}

	apps, err := s.engine.List(r.Context(), domain, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps, "count": len(apps)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	app, err := s.engine.Get(r.Context(), chi.URLParam(r, "decision_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type reviewRequest struct {
	Decision    string `json:"decision"`
	Explanation string `json:"explanation"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %w", common.ErrValidation, err))
		return
	}

	app, err := s.engine.HumanDecide(r.Context(), chi.URLParam(r, "decision_id"), req.Decision, req.Explanation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

type explanationRequest struct {
	Explanation string `json:"explanation"`
}

func (s *Server) handleEditExplanation(w http.ResponseWriter, r *http.Request) {
	var req explanationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %w", common.ErrValidation, err))
		return
	}

	app, err := s.engine.EditExplanation(r.Context(), chi.URLParam(r, "decision_id"), req.Explanation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// handleBatch accepts a CSV or JSON upload, either as the raw request body or
// as a multipart "file" field. Rejected rows are reported per row; they never
// fail the upload.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	domain, err := requireDomain(r)
	if err != nil {
		writeError(w, err)
		return
	}

	data, format, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := ingest.ParseApplications(data, format)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, fmt.Errorf("%w: upload contains no applications", common.ErrValidation))
		return
	}

	result, err := s.engine.SubmitBatch(r.Context(), domain, rows, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": stats})
}

// readUpload extracts the upload payload, preferring a multipart "file" field
// when present so that curl -F and plain body uploads both work.
func readUpload(r *http.Request) ([]byte, ingest.Format, error) {
	format := ingest.Format(strings.ToLower(r.URL.Query().Get("format")))

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("%w: missing multipart field %q: %w", common.ErrValidation, "file", err)
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read upload: %w", err)
		}
		if format == ingest.FormatAuto {
			format = ingest.FormatForFilename(header.Filename)
		}
		return data, format, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	return data, format, nil
}

func requireDomain(r *http.Request) (model.Domain, error) {
	domain := model.Domain(r.URL.Query().Get("domain"))
	if !domain.Valid() {
		return "", fmt.Errorf("%w: unknown domain %q", common.ErrValidation, domain)
	}
	return domain, nil
}
