// Package fields owns the canonical variable vocabulary and the alias table
// that maps raw form labels onto it.
//
// The vocabulary is closed: a Field value that is not declared here never
// reaches the canonical set. New form spellings are added to aliases.yaml,
// not to code.
package fields

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VocabularyVersion is bumped whenever a field is added, renamed or removed.
const VocabularyVersion = 3

// Field is a canonical variable name.
type Field string

// Business.
const (
	BusinessLegalName    Field = "business_legal_name"
	BusinessDBA          Field = "business_dba"
	EntityType           Field = "entity_type"
	StateOfIncorporation Field = "state_of_incorporation"
	EIN                  Field = "ein"
	BusinessAddress      Field = "business_address"
	BusinessWebsite      Field = "business_website"
	BusinessPhone        Field = "business_phone"
	BusinessDescription  Field = "business_description"
	YearFounded          Field = "year_founded"
)

// Point of contact and signer.
const (
	FirstNamePOC   Field = "first_name_poc"
	LastNamePOC    Field = "last_name_poc"
	TitlePOC       Field = "title_poc"
	EmailPOC       Field = "email_poc"
	MobilePhonePOC Field = "mobile_phone_poc"
	LinkedInPOC    Field = "linkedin_poc"

	FirstNameSign   Field = "first_name_sign"
	LastNameSign    Field = "last_name_sign"
	TitleSign       Field = "title_sign"
	EmailSign       Field = "email_sign"
	MobilePhoneSign Field = "mobile_phone_sign"
	LinkedInSign    Field = "linkedin_sign"
)

// Project and financing.
const (
	ProjectName        Field = "project_name"
	ProjectAddress     Field = "project_address"
	ProjectType        Field = "project_type"
	ProjectSize        Field = "project_size"
	ProjectStage       Field = "project_stage"
	ProjectDescription Field = "project_description"
	ProjectCost        Field = "project_cost"

	FinancingType    Field = "financing_type"
	FundingTargetMin Field = "funding_target_min"
	FundingTargetMax Field = "funding_target_max"
	UseOfFunds       Field = "use_of_funds"
	InterestRate     Field = "interest_rate"
	LoanTerm         Field = "loan_term"
)

// Phase two.
const (
	LeadID          Field = "lead_id"
	LegalCounsel    Field = "legal_counsel"
	Accountant      Field = "accountant"
	FiscalYearEnd   Field = "fiscal_year_end"
	TotalRevenue    Field = "total_revenue"
	NetIncome       Field = "net_income"
	TotalAssets     Field = "total_assets"
	EmployeeCount   Field = "employee_count"
	EscrowBank      Field = "escrow_bank"
	CampaignTagline Field = "campaign_tagline"
)

// Attachments.
const (
	IDDocumentURL          Field = "id_document_url"
	FinancialStatementsURL Field = "financial_statements_url"
	PitchDeckURL           Field = "pitch_deck_url"
)

// Derived by the enricher.
const (
	AddressIssuer     Field = "address_issuer"
	CityIssuer        Field = "city_issuer"
	StateIssuer       Field = "state_issuer"
	ZipIssuer         Field = "zip_issuer"
	FullAddressIssuer Field = "full_address_issuer"

	AddressProject     Field = "address_project"
	CityProject        Field = "city_project"
	StateProject       Field = "state_project"
	ZipProject         Field = "zip_project"
	FullAddressProject Field = "full_address_project"

	FirstName   Field = "first_name"
	LastName    Field = "last_name"
	FullName    Field = "full_name"
	Title       Field = "title"
	Email       Field = "email"
	MobilePhone Field = "mobile_phone"
	LinkedIn    Field = "linkedin"

	CurrentDate        Field = "current_date"
	CurrentTime        Field = "current_time"
	CurrentYear        Field = "current_year"
	PhaseOneSubmission Field = "phase_one_submission"
	PhaseTwoSubmission Field = "phase_two_submission"
)

// Definition describes one vocabulary entry.
type Definition struct {
	Field   Field
	Label   string
	Derived bool
}

var vocabulary = []Definition{
	{Field: BusinessLegalName},
	{Field: BusinessDBA, Label: "Business DBA"},
	{Field: EntityType},
	{Field: StateOfIncorporation},
	{Field: EIN, Label: "EIN"},
	{Field: BusinessAddress},
	{Field: BusinessWebsite},
	{Field: BusinessPhone},
	{Field: BusinessDescription},
	{Field: YearFounded},

	{Field: FirstNamePOC, Label: "First Name POC"},
	{Field: LastNamePOC, Label: "Last Name POC"},
	{Field: TitlePOC, Label: "Title POC"},
	{Field: EmailPOC, Label: "Email POC"},
	{Field: MobilePhonePOC, Label: "Mobile Phone POC"},
	{Field: LinkedInPOC, Label: "LinkedIn POC"},
	{Field: FirstNameSign},
	{Field: LastNameSign},
	{Field: TitleSign},
	{Field: EmailSign},
	{Field: MobilePhoneSign},
	{Field: LinkedInSign, Label: "LinkedIn Sign"},

	{Field: ProjectName},
	{Field: ProjectAddress},
	{Field: ProjectType},
	{Field: ProjectSize},
	{Field: ProjectStage},
	{Field: ProjectDescription},
	{Field: ProjectCost},
	{Field: FinancingType},
	{Field: FundingTargetMin},
	{Field: FundingTargetMax},
	{Field: UseOfFunds},
	{Field: InterestRate},
	{Field: LoanTerm},

	{Field: LeadID, Label: "Lead ID"},
	{Field: LegalCounsel},
	{Field: Accountant},
	{Field: FiscalYearEnd},
	{Field: TotalRevenue},
	{Field: NetIncome},
	{Field: TotalAssets},
	{Field: EmployeeCount},
	{Field: EscrowBank},
	{Field: CampaignTagline},

	{Field: IDDocumentURL, Label: "ID Document URL"},
	{Field: FinancialStatementsURL, Label: "Financial Statements URL"},
	{Field: PitchDeckURL, Label: "Pitch Deck URL"},

	{Field: AddressIssuer, Derived: true},
	{Field: CityIssuer, Derived: true},
	{Field: StateIssuer, Derived: true},
	{Field: ZipIssuer, Label: "ZIP Issuer", Derived: true},
	{Field: FullAddressIssuer, Derived: true},
	{Field: AddressProject, Derived: true},
	{Field: CityProject, Derived: true},
	{Field: StateProject, Derived: true},
	{Field: ZipProject, Label: "ZIP Project", Derived: true},
	{Field: FullAddressProject, Derived: true},
	{Field: FirstName, Derived: true},
	{Field: LastName, Derived: true},
	{Field: FullName, Derived: true},
	{Field: Title, Derived: true},
	{Field: Email, Derived: true},
	{Field: MobilePhone, Derived: true},
	{Field: LinkedIn, Label: "LinkedIn", Derived: true},
	{Field: CurrentDate, Derived: true},
	{Field: CurrentTime, Derived: true},
	{Field: CurrentYear, Derived: true},
	{Field: PhaseOneSubmission, Derived: true},
	{Field: PhaseTwoSubmission, Derived: true},
}

var byName = func() map[Field]int {
	m := make(map[Field]int, len(vocabulary))
	for i := range vocabulary {
		if vocabulary[i].Label == "" {
			vocabulary[i].Label = TitleCase(string(vocabulary[i].Field))
		}
		m[vocabulary[i].Field] = i
	}
	return m
}()

// Vocabulary returns every definition in declaration order.
func Vocabulary() []Definition {
	out := make([]Definition, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// Lookup resolves an exact canonical name.
func Lookup(name string) (Field, bool) {
	f := Field(strings.TrimSpace(name))
	_, ok := byName[f]
	return f, ok
}

// Known reports whether f is declared in the vocabulary.
func (f Field) Known() bool {
	_, ok := byName[f]
	return ok
}

// Label is the human-readable name used in bracketed placeholders.
func (f Field) Label() string {
	if i, ok := byName[f]; ok {
		return vocabulary[i].Label
	}
	return TitleCase(string(f))
}

func (f Field) String() string { return string(f) }

// TitleCase turns snake_case into "Title Case". A Caser keeps state, so
// one is built per call.
func TitleCase(name string) string {
	return cases.Title(language.AmericanEnglish).String(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
}
