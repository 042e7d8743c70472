package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/verdictlabs/verdict/internal/common"
	"github.com/verdictlabs/verdict/internal/ingest"
	"github.com/verdictlabs/verdict/internal/model"
)

// handleListPolicies returns one domain's policies when ?domain= is given,
// otherwise the full policy map including the global scope.
func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("domain"); raw != "" {
		domain := model.Domain(raw)
		if !model.ValidPolicyDomain(domain) {
			writeError(w, fmt.Errorf("%w: unknown policy domain %q", common.ErrValidation, domain))
			return
		}
		policies, err := s.storage.ListPolicies(r.Context(), domain)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"domain": domain, "policies": policies})
		return
	}

	all, err := s.storage.ListAllPolicies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": all})
}

type addPolicyRequest struct {
	Domain model.Domain `json:"domain"`
	Text   string       `json:"text"`
}

func (s *Server) handleAddPolicy(w http.ResponseWriter, r *http.Request) {
	var req addPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %w", common.ErrValidation, err))
		return
	}
	if !model.ValidPolicyDomain(req.Domain) {
		writeError(w, fmt.Errorf("%w: unknown policy domain %q", common.ErrValidation, req.Domain))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, fmt.Errorf("%w: policy text is required", common.ErrValidation))
		return
	}

	policy, err := s.storage.AddPolicy(r.Context(), req.Domain, strings.TrimSpace(req.Text))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	domain := model.Domain(chi.URLParam(r, "domain"))
	if !model.ValidPolicyDomain(domain) {
		writeError(w, fmt.Errorf("%w: unknown policy domain %q", common.ErrValidation, domain))
		return
	}

	if err := s.storage.DeletePolicy(r.Context(), domain, chi.URLParam(r, "policy_id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleUploadPolicies ingests a policy file — plain text (one per line),
// CSV with a text/policy column, or a JSON array — into the domain named in
// the query string.
func (s *Server) handleUploadPolicies(w http.ResponseWriter, r *http.Request) {
	domain := model.Domain(r.URL.Query().Get("domain"))
	if !model.ValidPolicyDomain(domain) {
		writeError(w, fmt.Errorf("%w: unknown policy domain %q", common.ErrValidation, domain))
		return
	}

	data, format, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	lines, err := ingest.ParsePolicies(data, format)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(lines) == 0 {
		writeError(w, fmt.Errorf("%w: upload contains no policies", common.ErrValidation))
		return
	}

	added := make([]*model.Policy, 0, len(lines))
	for _, line := range lines {
		policy, addErr := s.storage.AddPolicy(r.Context(), domain, line)
		if addErr != nil {
			writeError(w, addErr)
			return
		}
		added = append(added, policy)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"domain": domain, "added": len(added), "policies": added})
}
