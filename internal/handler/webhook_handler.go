package handler

import (
	"bytes"
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/enrich"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/idempotency"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/intake"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/metrics"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/service"
)

// WebhookConfig holds the delivery settings for form webhooks.
type WebhookConfig struct {
	// Token, when set, must arrive as X-Webhook-Token or ?token=.
	Token          string
	DedupeTTL      time.Duration
	// ProcessTimeout bounds the pipeline, which runs detached from the
	// request so a disconnecting sender cannot strand a lead mid-phase.
	ProcessTimeout time.Duration
	MaxBytes       int64
}

type WebhookHandler struct {
	leads   *service.LeadService
	dedupe  idempotency.Store
	cfg     WebhookConfig
	log     *logging.Logger
	metrics *metrics.Metrics
}

func NewWebhookHandler(leads *service.LeadService, dedupe idempotency.Store, cfg WebhookConfig, log *logging.Logger, m *metrics.Metrics) *WebhookHandler {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = intake.DefaultMaxBytes
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 24 * time.Hour
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 5 * time.Minute
	}
	return &WebhookHandler{leads: leads, dedupe: dedupe, cfg: cfg, log: log.Named("webhook"), metrics: m}
}

func (h *WebhookHandler) PhaseOne(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, enrich.PhaseOne, func(ctx context.Context, raw fields.Raw) (any, error) {
		return h.leads.ProcessPhaseOne(ctx, raw)
	})
}

func (h *WebhookHandler) PhaseTwo(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, enrich.PhaseTwo, func(ctx context.Context, raw fields.Raw) (any, error) {
		return h.leads.ProcessPhaseTwo(ctx, raw)
	})
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, phase enrich.Phase, process func(context.Context, fields.Raw) (any, error)) {
	ctx := r.Context()
	name := phase.String()

	if !h.authorized(r) {
		h.metrics.Webhook(name, "unauthorized")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBytes))
	if err != nil {
		h.metrics.Webhook(name, "rejected")
		writeServiceError(w, err)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	payload, err := intake.DecodeRequest(r, h.cfg.MaxBytes)
	if err != nil {
		h.metrics.Webhook(name, "rejected")
		h.log.Warn(ctx, "undecodable delivery", zap.String("phase", name), zap.Error(err))
		writeServiceError(w, err)
		return
	}

	key := idempotency.Key(name, r.Header.Get("X-Delivery-ID"), body)
	if h.dedupe != nil {
		fresh, err := h.dedupe.Reserve(ctx, key, h.cfg.DedupeTTL)
		switch {
		case err != nil:
			h.log.Warn(ctx, "dedupe unavailable, processing anyway", zap.Error(err))
		case !fresh:
			h.metrics.Webhook(name, "duplicate")
			h.log.Info(ctx, "duplicate delivery", zap.String("phase", name), zap.String("key", key))
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate", "detail": models.ErrDuplicateDelivery.Error()})
			return
		}
	}

	h.log.Debug(ctx, "delivery decoded", zap.String("phase", name), zap.Stringer("shape", payload.Shape))
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.ProcessTimeout)
	defer cancel()
	result, err := process(pctx, payload.Raw())
	if err != nil {
		if h.dedupe != nil {
			if rerr := h.dedupe.Release(context.WithoutCancel(ctx), key); rerr != nil {
				h.log.Warn(ctx, "release delivery key", zap.Error(rerr))
			}
		}
		h.metrics.Webhook(name, "error")
		h.log.Error(ctx, "delivery failed", zap.String("phase", name), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	h.metrics.Webhook(name, "ok")
	writeJSON(w, http.StatusOK, result)
}

func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.cfg.Token == "" {
		return true
	}
	got := r.Header.Get("X-Webhook-Token")
	if got == "" {
		got = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.Token)) == 1
}
