// Package enrich composes normalized fields, address decomposition,
// identity resolution and system-derived values into the flat variable map
// documents are rendered from.
package enrich

import (
	"strconv"
	"strings"
	"time"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/address"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/identity"
)

// Phase selects which submission stamp is written.
type Phase int

const (
	PhaseOne Phase = iota + 1
	PhaseTwo
)

func (p Phase) String() string {
	switch p {
	case PhaseOne:
		return "phase-one"
	case PhaseTwo:
		return "phase-two"
	}
	return "phase-" + strconv.Itoa(int(p))
}

// ParsePhase accepts "1", "one", "phase-one" and the phase-two spellings.
func ParsePhase(s string) (Phase, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "one", "phase-one", "phase1", "phase_one":
		return PhaseOne, true
	case "2", "two", "phase-two", "phase2", "phase_two":
		return PhaseTwo, true
	}
	return 0, false
}

const (
	dateLayout  = "January 2, 2006"
	timeLayout  = "3:04 PM MST"
	stampLayout = "January 2, 2006 3:04 PM MST"
)

// Defaults are applied when the submission leaves them blank.
type Defaults struct {
	FinancingType    string
	FundingTargetMin string
	FundingTargetMax string
}

// Enricher is safe for concurrent use.
type Enricher struct {
	identity *identity.Resolver
	defaults Defaults
	now      func() time.Time
	loc      *time.Location
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// WithLocation sets the zone render-time stamps are formatted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Enricher) { e.loc = loc }
}

func New(res *identity.Resolver, d Defaults, opts ...Option) *Enricher {
	e := &Enricher{identity: res, defaults: d, now: time.Now, loc: time.UTC}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich returns a new map; c and raw are not modified. The only error is
// a *models.ValidationError from a strict identity resolver.
func (e *Enricher) Enrich(c fields.Canonical, raw fields.Raw, phase Phase) (fields.Canonical, error) {
	out := c.Clone()
	fillFromRaw(out, raw)

	decompose(out, fields.BusinessAddress, address.RoleIssuer)
	decompose(out, fields.ProjectAddress, address.RoleProject)
	out[fields.FullAddressIssuer] = oneLine(out, address.RoleIssuer)
	out[fields.FullAddressProject] = oneLine(out, address.RoleProject)

	out, err := e.identity.Resolve(out)
	if err != nil {
		return nil, err
	}

	now := e.now().In(e.loc)
	out[fields.CurrentDate] = now.Format(dateLayout)
	out[fields.CurrentTime] = now.Format(timeLayout)
	out[fields.CurrentYear] = strconv.Itoa(now.Year())
	switch phase {
	case PhaseOne:
		out[fields.PhaseOneSubmission] = now.Format(stampLayout)
	case PhaseTwo:
		out[fields.PhaseTwoSubmission] = now.Format(stampLayout)
	}

	setDefault(out, fields.FinancingType, e.defaults.FinancingType)
	setDefault(out, fields.FundingTargetMin, e.defaults.FundingTargetMin)
	setDefault(out, fields.FundingTargetMax, e.defaults.FundingTargetMax)
	if name := out.Get(fields.BusinessLegalName); name != "" {
		setDefault(out, fields.ProjectName, name+" Project")
	}
	return out, nil
}

// MergePhases overlays phase-two values on the phase-one snapshot. A blank
// phase-two value is absent and never clears a phase-one value.
func MergePhases(phaseOne, phaseTwo fields.Canonical) fields.Canonical {
	out := phaseOne.Clone()
	for k, v := range phaseTwo {
		if v != "" {
			out[k] = v
			continue
		}
		if _, ok := out[k]; !ok {
			out[k] = ""
		}
	}
	return out
}

// WithRaw returns a copy of c with blank fields filled from raw labels.
// The result is what a phase-two snapshot stores, so a rerun without the
// original submission sees the same values.
func WithRaw(c fields.Canonical, raw fields.Raw) fields.Canonical {
	out := c.Clone()
	fillFromRaw(out, raw)
	return out
}

// fillFromRaw fills blank fields from raw keys whose snake_case spelling is
// a vocabulary name, e.g. "Business Phone" -> business_phone.
func fillFromRaw(out fields.Canonical, raw fields.Raw) {
	for k, v := range raw {
		f, ok := fields.Lookup(snake(k))
		if !ok || out.Get(f) != "" {
			continue
		}
		if s := fields.Stringify(v); s != "" {
			out[f] = s
		}
	}
}

func snake(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
}

// decompose overwrites the role's derived address fields only when the
// source address is present, so values carried over from an earlier phase
// survive an empty resubmission.
func decompose(out fields.Canonical, src fields.Field, role string) {
	raw := out.Get(src)
	if raw == "" {
		for k := range (address.Address{}).Fields(role) {
			if _, ok := out[fields.Field(k)]; !ok {
				out[fields.Field(k)] = ""
			}
		}
		return
	}
	for k, v := range address.Decompose(raw, role) {
		out[fields.Field(k)] = v
	}
}

func oneLine(out fields.Canonical, role string) string {
	return address.Address{
		Street: out.Get(fields.Field("address_" + role)),
		City:   out.Get(fields.Field("city_" + role)),
		State:  out.Get(fields.Field("state_" + role)),
		Zip:    out.Get(fields.Field("zip_" + role)),
	}.OneLine()
}

func setDefault(out fields.Canonical, f fields.Field, v string) {
	if out.Get(f) == "" && v != "" {
		out[f] = v
	}
}
