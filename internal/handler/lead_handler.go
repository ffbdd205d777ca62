package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/enrich"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/intake"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/service"
)

var errUnknownPhase = errors.New("unknown phase")

type LeadHandler struct {
	svc      *service.LeadService
	maxBytes int64
}

func NewLeadHandler(svc *service.LeadService, maxBytes int64) *LeadHandler {
	return &LeadHandler{svc: svc, maxBytes: maxBytes}
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.svc.GetLead(r.Context(), chi.URLParam(r, "leadId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Retry(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Retry(r.Context(), chi.URLParam(r, "leadId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *LeadHandler) Preview(w http.ResponseWriter, r *http.Request) {
	phase, ok := enrich.ParsePhase(chi.URLParam(r, "phase"))
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownPhase.Error())
		return
	}
	payload, err := intake.DecodeRequest(r, h.maxBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result, err := h.svc.Preview(r.Context(), phase, payload.Raw())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
