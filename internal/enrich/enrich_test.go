package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/identity"
)

var fixed = time.Date(2025, time.March, 4, 15, 30, 0, 0, time.UTC)

func newEnricher() *Enricher {
	return New(
		identity.NewResolver(false, identity.Defaults{}),
		Defaults{FinancingType: "Construction", FundingTargetMin: "$250,000", FundingTargetMax: "$5,000,000"},
		WithClock(func() time.Time { return fixed }),
	)
}

func TestEnrich_PhaseOne(t *testing.T) {
	in := fields.Canonical{
		fields.BusinessLegalName: "Sunrise Solar LLC",
		fields.BusinessAddress:   "123 Main St\nAnytown, CA 90210",
		fields.FirstNamePOC:      "Bob",
		fields.LastNamePOC:       "Jones",
		fields.EmailPOC:          "bob@sunrise.test",
	}

	out, err := newEnricher().Enrich(in, nil, PhaseOne)
	require.NoError(t, err)

	assert.Equal(t, "123 Main St", out.Get(fields.AddressIssuer))
	assert.Equal(t, "Anytown", out.Get(fields.CityIssuer))
	assert.Equal(t, "CA", out.Get(fields.StateIssuer))
	assert.Equal(t, "90210", out.Get(fields.ZipIssuer))
	assert.Equal(t, "123 Main St, Anytown, CA 90210", out.Get(fields.FullAddressIssuer))
	assert.Equal(t, "", out.Get(fields.FullAddressProject))

	assert.Equal(t, "Bob Jones", out.Get(fields.FullName))
	assert.Equal(t, "March 4, 2025", out.Get(fields.CurrentDate))
	assert.Equal(t, "2025", out.Get(fields.CurrentYear))
	assert.Equal(t, "March 4, 2025 3:30 PM UTC", out.Get(fields.PhaseOneSubmission))
	assert.Empty(t, out.Get(fields.PhaseTwoSubmission))

	assert.Equal(t, "Construction", out.Get(fields.FinancingType))
	assert.Equal(t, "$5,000,000", out.Get(fields.FundingTargetMax))
	assert.Equal(t, "Sunrise Solar LLC Project", out.Get(fields.ProjectName))

	assert.NotContains(t, in, fields.AddressIssuer, "input must not be mutated")
}

func TestEnrich_KeepsSubmittedValuesOverDefaults(t *testing.T) {
	in := fields.Canonical{
		fields.FinancingType: "Bridge Loan",
		fields.ProjectName:   "Rooftop Array",
	}
	out, err := newEnricher().Enrich(in, nil, PhaseOne)
	require.NoError(t, err)
	assert.Equal(t, "Bridge Loan", out.Get(fields.FinancingType))
	assert.Equal(t, "Rooftop Array", out.Get(fields.ProjectName))
}

func TestEnrich_RawFallbackLayer(t *testing.T) {
	in := fields.Canonical{fields.BusinessPhone: ""}
	raw := fields.Raw{"Business Phone": "555-0100", "Unrelated Question": "x"}

	out, err := newEnricher().Enrich(in, raw, PhaseOne)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", out.Get(fields.BusinessPhone))
}

func TestEnrich_PhaseTwoKeepsPhaseOneStamp(t *testing.T) {
	phaseOne, err := newEnricher().Enrich(fields.Canonical{
		fields.BusinessLegalName: "Acme",
		fields.ProjectAddress:    "9 Wind Rd\nBoise ID 83702",
	}, nil, PhaseOne)
	require.NoError(t, err)

	later := New(
		identity.NewResolver(false, identity.Defaults{}),
		Defaults{},
		WithClock(func() time.Time { return fixed.Add(48 * time.Hour) }),
	)
	merged := MergePhases(phaseOne, fields.Canonical{
		fields.LeadID:         "L-1",
		fields.ProjectAddress: "",
	})
	out, err := later.Enrich(merged, nil, PhaseTwo)
	require.NoError(t, err)

	assert.Equal(t, "March 4, 2025 3:30 PM UTC", out.Get(fields.PhaseOneSubmission))
	assert.Equal(t, "March 6, 2025 3:30 PM UTC", out.Get(fields.PhaseTwoSubmission))
	assert.Equal(t, "Boise", out.Get(fields.CityProject))
	assert.Equal(t, "9 Wind Rd, Boise, ID 83702", out.Get(fields.FullAddressProject))
}

func TestEnrich_MissingAddressKeepsDerivedKeys(t *testing.T) {
	out, err := newEnricher().Enrich(fields.Canonical{fields.BusinessLegalName: "Acme"}, nil, PhaseOne)
	require.NoError(t, err)

	for _, f := range []fields.Field{fields.AddressProject, fields.CityProject, fields.ZipProject} {
		v, ok := out[f]
		assert.True(t, ok, f)
		assert.Empty(t, v, f)
	}

	carried := fields.Canonical{fields.CityProject: "Boise"}
	out, err = newEnricher().Enrich(carried, nil, PhaseTwo)
	require.NoError(t, err)
	assert.Equal(t, "Boise", out.Get(fields.CityProject))
}

func TestWithRaw(t *testing.T) {
	in := fields.Canonical{fields.LeadID: "L-1"}
	out := WithRaw(in, fields.Raw{"Total Revenue": "$900,000"})

	assert.Equal(t, "$900,000", out.Get(fields.TotalRevenue))
	assert.Equal(t, "L-1", out.Get(fields.LeadID))
	assert.NotContains(t, in, fields.TotalRevenue)
	assert.Equal(t, in, WithRaw(in, nil))
}

func TestMergePhases(t *testing.T) {
	p1 := fields.Canonical{fields.BusinessLegalName: "Acme", fields.EIN: "12-3456789"}
	p2 := fields.Canonical{fields.BusinessLegalName: "Acme Holdings", fields.EIN: "", fields.TotalRevenue: ""}

	out := MergePhases(p1, p2)
	assert.Equal(t, "Acme Holdings", out.Get(fields.BusinessLegalName))
	assert.Equal(t, "12-3456789", out.Get(fields.EIN))
	assert.Contains(t, out, fields.TotalRevenue)
	assert.Equal(t, "Acme", p1.Get(fields.BusinessLegalName))
}

func TestParsePhase(t *testing.T) {
	for in, want := range map[string]Phase{"1": PhaseOne, "phase-one": PhaseOne, "Two": PhaseTwo, "phase2": PhaseTwo} {
		got, ok := ParsePhase(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParsePhase("three")
	assert.False(t, ok)
}
