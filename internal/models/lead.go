package models

import "time"

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusPhase1Complete   Status = "PHASE_1_COMPLETE"
	StatusPhase2InProgress Status = "PHASE_2_IN_PROGRESS"
	StatusPhase2Complete   Status = "PHASE_2_COMPLETE"
	StatusError            Status = "ERROR"
)

var transitions = map[Status][]Status{
	StatusPhase1Complete:   {StatusPhase2InProgress},
	StatusPhase2InProgress: {StatusPhase2Complete, StatusError},
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPhase1Complete, StatusPhase2InProgress, StatusPhase2Complete, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no regular transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusPhase2Complete || s == StatusError
}

// CanTransition reports whether a lead in state s may move to next.
// Staying in the same state is always allowed so column-only updates
// and repeated error recording pass through.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanReset reports whether an operator may put the lead back to
// PHASE_1_COMPLETE for another phase-two attempt.
func (s Status) CanReset() bool {
	return s == StatusError
}

// Lead is one case tracked through phase one and phase two.
type Lead struct {
	ID                string            `json:"lead_id"`
	Status            Status            `json:"status"`
	BusinessLegalName string            `json:"business_legal_name"`
	Phase1FolderID    string            `json:"phase1_folder_id"`
	Phase2FolderID    string            `json:"phase2_folder_id"`
	Phase1Data        map[string]string `json:"phase1_submission_data"`
	Phase2Data        map[string]string `json:"phase2_submission_data"`
	CreatedAt         time.Time         `json:"created_at"`
	LastUpdated       time.Time         `json:"last_updated"`
	ErrorDetails      string            `json:"error_details,omitempty"`
	RetryCount        int               `json:"retry_count"`
	Version           int               `json:"version"`
}

// NewLead carries what phase one knows when the record is first written.
type NewLead struct {
	BusinessLegalName string
	Phase1FolderID    string
	Phase1Data        map[string]string
}

// LeadPatch lists explicit column updates. Nil pointers and nil maps are
// left untouched.
type LeadPatch struct {
	Status            Status
	BusinessLegalName *string
	Phase1FolderID    *string
	Phase2FolderID    *string
	Phase1Data        map[string]string
	Phase2Data        map[string]string
	ErrorDetails      *string
	RetryCount        *int

	// Reset allows the operator-only ERROR -> PHASE_1_COMPLETE move.
	Reset bool
}

// Apply validates the transition and mutates l in place.
func (p LeadPatch) Apply(l *Lead, now time.Time) error {
	if p.Status != "" {
		switch {
		case p.Reset && l.Status.CanReset() && p.Status == StatusPhase1Complete:
		case l.Status.CanTransition(p.Status):
		default:
			return &TransitionError{From: l.Status, To: p.Status}
		}
		l.Status = p.Status
	}
	if p.BusinessLegalName != nil {
		l.BusinessLegalName = *p.BusinessLegalName
	}
	if p.Phase1FolderID != nil {
		l.Phase1FolderID = *p.Phase1FolderID
	}
	if p.Phase2FolderID != nil {
		l.Phase2FolderID = *p.Phase2FolderID
	}
	if p.Phase1Data != nil {
		l.Phase1Data = p.Phase1Data
	}
	if p.Phase2Data != nil {
		l.Phase2Data = p.Phase2Data
	}
	if p.ErrorDetails != nil {
		l.ErrorDetails = *p.ErrorDetails
	}
	if p.RetryCount != nil {
		l.RetryCount = *p.RetryCount
	}
	l.LastUpdated = now
	l.Version++
	return nil
}

// StringPtr is a small helper for building patches.
func StringPtr(s string) *string { return &s }

// IntPtr is a small helper for building patches.
func IntPtr(n int) *int { return &n }
