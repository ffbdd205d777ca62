package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/attachments"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/enrich"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/materialize"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/metrics"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/notify"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provision"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/render"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/repository"
)

// Folders are the roots case folders are created under.
type Folders struct {
	PhaseOneRoot string
	PhaseTwoRoot string
}

// LeadDeps wires a LeadService. Attachments, Notifier and Metrics may be
// nil.
type LeadDeps struct {
	Normalizer   *fields.Normalizer
	Enricher     *enrich.Enricher
	Provisioner  *provision.Provisioner
	Orchestrator *materialize.Orchestrator
	Attachments  *attachments.Fetcher
	Leads        repository.LeadStore
	Notifier     notify.Notifier
	Templates    materialize.Templates
	Folders      Folders
	Log          *logging.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

type LeadService struct {
	normalizer   *fields.Normalizer
	enricher     *enrich.Enricher
	provisioner  *provision.Provisioner
	orchestrator *materialize.Orchestrator
	attachments  *attachments.Fetcher
	leads        repository.LeadStore
	notifier     notify.Notifier
	templates    materialize.Templates
	folders      Folders
	log          *logging.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewLeadService(d LeadDeps) *LeadService {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	s := &LeadService{
		normalizer:   d.Normalizer,
		enricher:     d.Enricher,
		provisioner:  d.Provisioner,
		orchestrator: d.Orchestrator,
		attachments:  d.Attachments,
		leads:        d.Leads,
		notifier:     d.Notifier,
		templates:    d.Templates,
		folders:      d.Folders,
		log:          d.Log.Named("leads"),
		metrics:      d.Metrics,
		now:          d.Now,
	}
	if s.normalizer == nil {
		s.normalizer = fields.NewNormalizer(nil)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(d.Log)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// PhaseOneResult reports what a phase-one run produced.
type PhaseOneResult struct {
	LeadID      string                     `json:"leadId"`
	Status      models.Status              `json:"status"`
	Existing    bool                       `json:"existing"`
	Folders     provision.FolderSet        `json:"folders"`
	Documents   []models.GeneratedDocument `json:"documents"`
	Attachments []provider.File            `json:"attachments,omitempty"`
}

// PhaseTwoResult reports what a phase-two run produced.
type PhaseTwoResult struct {
	LeadID      string                     `json:"leadId"`
	Status      models.Status              `json:"status"`
	Moved       bool                       `json:"movedPhaseOneFolder"`
	Folders     provision.FolderSet        `json:"folders"`
	Documents   []models.GeneratedDocument `json:"documents"`
	Attachments []provider.File            `json:"attachments,omitempty"`
}

// PreviewResult is a dry run of a phase.
type PreviewResult struct {
	Phase        string            `json:"phase"`
	LeadID       string            `json:"leadId,omitempty"`
	Fields       map[string]string `json:"fields"`
	Replacements map[string]string `json:"replacements"`
	Documents    []string          `json:"documents"`
}

// ProcessPhaseOne provisions the case folder, generates the phase-one
// documents and records the lead. Re-running the same submission reuses
// the folder, the documents and the lead.
func (s *LeadService) ProcessPhaseOne(ctx context.Context, raw fields.Raw) (*PhaseOneResult, error) {
	canonical := s.normalizer.Normalize(raw)
	enriched, err := s.enricher.Enrich(canonical, raw, enrich.PhaseOne)
	if err != nil {
		return nil, err
	}
	name := enriched.Get(fields.BusinessLegalName)
	if name == "" {
		return nil, &models.ValidationError{Field: string(fields.BusinessLegalName), Msg: "required"}
	}

	set, err := s.provisioner.EnsureSet(ctx, name, s.folders.PhaseOneRoot, materialize.PhaseOneFolders)
	if err != nil {
		return nil, fmt.Errorf("provision phase-one folders: %w", err)
	}

	docs, err := s.orchestrator.Materialize(ctx, materialize.Request{
		Phase:        enrich.PhaseOne.String(),
		BusinessName: name,
		Plan:         materialize.PhaseOnePlan(s.templates, enriched.Get(fields.FinancingType)),
		Folders:      set.Subfolders,
		Replacements: render.Expand(enriched),
	})
	if err != nil {
		return nil, err
	}

	files := s.attach(ctx, enriched.Get(fields.IDDocumentURL), materialize.DocumentName(name, "Identification Document"), set.Subfolders[materialize.FolderInternal])
	files = append(files, s.attach(ctx, enriched.Get(fields.PitchDeckURL), materialize.DocumentName(name, "Pitch Deck"), set.Subfolders[materialize.FolderInternal])...)

	lead, existing, err := s.recordPhaseOne(ctx, name, set.CaseID, enriched)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithLead(ctx, lead.ID)
	s.log.Info(ctx, "phase one complete",
		zap.String("business", name),
		zap.Bool("existing", existing),
		zap.Int("documents", len(docs)),
	)
	if !existing {
		s.metrics.LeadTransition(string(lead.Status))
	}
	s.publish(ctx, notify.Event{
		Name:         notify.EventPhaseOneComplete,
		LeadID:       lead.ID,
		Status:       lead.Status,
		BusinessName: name,
		FolderID:     set.CaseID,
		Documents:    docs,
	})

	return &PhaseOneResult{
		LeadID:      lead.ID,
		Status:      lead.Status,
		Existing:    existing,
		Folders:     set,
		Documents:   docs,
		Attachments: files,
	}, nil
}

// recordPhaseOne finds the lead already created for the case folder or
// creates it. A lead still in PHASE_1_COMPLETE gets the fresh snapshot.
func (s *LeadService) recordPhaseOne(ctx context.Context, name, folderID string, data fields.Canonical) (*models.Lead, bool, error) {
	lead, err := s.leads.FindLeadByFolder(ctx, folderID)
	switch {
	case errors.Is(err, models.ErrLeadNotFound):
		lead, err = s.leads.CreateLead(ctx, models.NewLead{
			BusinessLegalName: name,
			Phase1FolderID:    folderID,
			Phase1Data:        data.Strings(),
		})
		if err != nil {
			return nil, false, err
		}
		return lead, false, nil
	case err != nil:
		return nil, false, err
	}

	if lead.Status == models.StatusPhase1Complete {
		updated, err := s.leads.UpdateIfVersion(ctx, lead.ID, lead.Version, models.LeadPatch{
			BusinessLegalName: models.StringPtr(name),
			Phase1Data:        data.Strings(),
		})
		if err != nil {
			return nil, true, err
		}
		lead = updated
	}
	return lead, true, nil
}

// ProcessPhaseTwo merges a phase-two submission into its lead and
// generates the phase-two documents. The lead must be PHASE_1_COMPLETE.
func (s *LeadService) ProcessPhaseTwo(ctx context.Context, raw fields.Raw) (*PhaseTwoResult, error) {
	canonical := enrich.WithRaw(s.normalizer.Normalize(raw), raw)
	id := canonical.Get(fields.LeadID)
	if id == "" {
		return nil, &models.ValidationError{Field: string(fields.LeadID), Msg: "required"}
	}
	ctx = logging.WithLead(ctx, id)

	lead, err := s.leads.GetLeadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Status != models.StatusPhase1Complete {
		return nil, &models.TransitionError{From: lead.Status, To: models.StatusPhase2InProgress}
	}
	lead, err = s.leads.UpdateIfVersion(ctx, id, lead.Version, models.LeadPatch{
		Status:     models.StatusPhase2InProgress,
		Phase2Data: canonical.Strings(),
	})
	if err != nil {
		return nil, err
	}
	return s.runPhaseTwo(ctx, lead, canonical, raw)
}

// runPhaseTwo does the phase-two work for a lead already moved to
// PHASE_2_IN_PROGRESS. Any failure ends in ERROR.
func (s *LeadService) runPhaseTwo(ctx context.Context, lead *models.Lead, phaseTwo fields.Canonical, raw fields.Raw) (*PhaseTwoResult, error) {
	s.metrics.LeadTransition(string(lead.Status))
	s.publish(ctx, notify.Event{Name: notify.EventPhaseTwoStarted, LeadID: lead.ID, Status: lead.Status, BusinessName: lead.BusinessLegalName})

	res, err := s.phaseTwo(ctx, lead, phaseTwo, raw)
	if err != nil {
		// Record ERROR even when the caller's context is gone.
		ctx = context.WithoutCancel(ctx)
		s.log.Error(ctx, "phase two failed", zap.Error(err))
		repository.RecordError(ctx, s.leads, s.log, lead.ID, err)
		s.metrics.LeadTransition(string(models.StatusError))
		s.publish(ctx, notify.Event{Name: notify.EventError, LeadID: lead.ID, Status: models.StatusError, Error: err.Error()})
		return nil, err
	}
	return res, nil
}

func (s *LeadService) phaseTwo(ctx context.Context, lead *models.Lead, phaseTwo fields.Canonical, raw fields.Raw) (*PhaseTwoResult, error) {
	merged := enrich.MergePhases(fields.FromStrings(lead.Phase1Data), phaseTwo)
	enriched, err := s.enricher.Enrich(merged, raw, enrich.PhaseTwo)
	if err != nil {
		return nil, err
	}
	name := enriched.Get(fields.BusinessLegalName)
	if name == "" {
		name = lead.BusinessLegalName
	}

	caseFolder, err := s.provisioner.EnsureFolder(ctx, name, s.folders.PhaseTwoRoot)
	if err != nil {
		return nil, fmt.Errorf("provision phase-two folder: %w", err)
	}
	moved := false
	if lead.Phase1FolderID != "" {
		moved, err = s.provisioner.MoveIfNeeded(ctx, lead.Phase1FolderID, caseFolder.ID)
		if err != nil {
			return nil, fmt.Errorf("move phase-one folder: %w", err)
		}
	}
	set, err := s.provisioner.EnsureSubfolders(ctx, caseFolder, materialize.PhaseTwoFolders)
	if err != nil {
		return nil, fmt.Errorf("provision phase-two subfolders: %w", err)
	}

	docs, err := s.orchestrator.Materialize(ctx, materialize.Request{
		Phase:        enrich.PhaseTwo.String(),
		BusinessName: name,
		Plan:         materialize.PhaseTwoPlan(s.templates),
		Folders:      set.Subfolders,
		Replacements: render.Expand(enriched),
	})
	if err != nil {
		return nil, err
	}
	files := s.attach(ctx, enriched.Get(fields.FinancialStatementsURL), materialize.DocumentName(name, "Financial Statements"), set.Subfolders[materialize.FolderFinancialStatements])

	updated, err := s.leads.UpdateIfVersion(ctx, lead.ID, lead.Version, models.LeadPatch{
		Status:         models.StatusPhase2Complete,
		Phase2FolderID: models.StringPtr(caseFolder.ID),
		ErrorDetails:   models.StringPtr(""),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "phase two complete", zap.Bool("moved", moved), zap.Int("documents", len(docs)))
	s.metrics.LeadTransition(string(updated.Status))
	s.publish(ctx, notify.Event{
		Name:         notify.EventPhaseTwoComplete,
		LeadID:       updated.ID,
		Status:       updated.Status,
		BusinessName: name,
		FolderID:     caseFolder.ID,
		Documents:    docs,
	})
	return &PhaseTwoResult{
		LeadID:      updated.ID,
		Status:      updated.Status,
		Moved:       moved,
		Folders:     set,
		Documents:   docs,
		Attachments: files,
	}, nil
}

// Retry is the operator action for a lead in ERROR: it is reset to
// PHASE_1_COMPLETE and phase two runs again from the stored snapshot.
func (s *LeadService) Retry(ctx context.Context, id string) (*PhaseTwoResult, error) {
	ctx = logging.WithLead(ctx, id)
	lead, err := s.leads.GetLeadByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lead.Status.CanReset() {
		return nil, &models.TransitionError{From: lead.Status, To: models.StatusPhase1Complete}
	}
	lead, err = s.leads.UpdateIfVersion(ctx, id, lead.Version, models.LeadPatch{
		Status:       models.StatusPhase1Complete,
		Reset:        true,
		ErrorDetails: models.StringPtr(""),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "lead reset by operator", zap.Int("retry_count", lead.RetryCount))
	s.publish(ctx, notify.Event{Name: notify.EventReset, LeadID: id, Status: lead.Status})

	lead, err = s.leads.UpdateIfVersion(ctx, id, lead.Version, models.LeadPatch{Status: models.StatusPhase2InProgress})
	if err != nil {
		return nil, err
	}
	return s.runPhaseTwo(ctx, lead, fields.FromStrings(lead.Phase2Data), nil)
}

// GetLead returns the stored lead.
func (s *LeadService) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	return s.leads.GetLeadByID(ctx, id)
}

// Preview builds the replacement map a phase would use, without touching
// folders, documents or the lead. A phase-two preview merges the stored
// phase-one snapshot when the submission names a known lead.
func (s *LeadService) Preview(ctx context.Context, phase enrich.Phase, raw fields.Raw) (*PreviewResult, error) {
	canonical := s.normalizer.Normalize(raw)
	res := &PreviewResult{Phase: phase.String()}

	var plan []materialize.Document
	if phase == enrich.PhaseTwo {
		if id := canonical.Get(fields.LeadID); id != "" {
			lead, err := s.leads.GetLeadByID(ctx, id)
			switch {
			case err == nil:
				canonical = enrich.MergePhases(fields.FromStrings(lead.Phase1Data), canonical)
				res.LeadID = id
			case !errors.Is(err, models.ErrLeadNotFound):
				return nil, err
			}
		}
		plan = materialize.PhaseTwoPlan(s.templates)
	}

	enriched, err := s.enricher.Enrich(canonical, raw, phase)
	if err != nil {
		return nil, err
	}
	if phase == enrich.PhaseOne {
		plan = materialize.PhaseOnePlan(s.templates, enriched.Get(fields.FinancingType))
	}
	name := enriched.Get(fields.BusinessLegalName)
	for _, d := range plan {
		res.Documents = append(res.Documents, materialize.DocumentName(name, d.Title))
	}
	res.Fields = enriched.Strings()
	res.Replacements = render.Expand(enriched)
	return res, nil
}

func (s *LeadService) attach(ctx context.Context, urls, name, folderID string) []provider.File {
	if s.attachments == nil || urls == "" || folderID == "" {
		return nil
	}
	files, err := s.attachments.Attach(ctx, urls, name, folderID)
	if err != nil {
		s.log.Warn(ctx, "attachments incomplete", zap.String("name", name), zap.Error(err))
	}
	return files
}

func (s *LeadService) publish(ctx context.Context, ev notify.Event) {
	ev.At = s.now().UTC()
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn(ctx, "notify failed", zap.String("event", ev.Name), zap.Error(err))
	}
}
