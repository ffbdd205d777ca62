package materialize

import "strings"

// Subfolder names provisioned under each case folder.
const (
	FolderInternal            = "Internal"
	FolderExternal            = "External"
	FolderDataRoom            = "Data Room"
	FolderEscrowAccount       = "Escrow Account"
	FolderFinancialStatements = "Financial Statements"
	FolderFormC               = "Form C"
	FolderContent             = "Content"
)

// PhaseOneFolders and PhaseTwoFolders list the subfolders in creation order.
var (
	PhaseOneFolders = []string{FolderInternal, FolderExternal}
	PhaseTwoFolders = []string{FolderDataRoom, FolderEscrowAccount, FolderFinancialStatements, FolderFormC, FolderContent}
)

// TermSheet is the financing-specific term sheet variant.
type TermSheet string

const (
	TermSheetPreDevelopment TermSheet = "pre-development"
	TermSheetBridge         TermSheet = "bridge"
	TermSheetConstruction   TermSheet = "construction"
)

// SelectTermSheet picks the variant by keyword. Anything unrecognized,
// including an empty string, gets the construction term sheet.
func SelectTermSheet(financingType string) TermSheet {
	s := strings.ToLower(strings.TrimSpace(financingType))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	switch {
	case strings.Contains(s, "pre-dev"), strings.Contains(s, "predev"):
		return TermSheetPreDevelopment
	case strings.Contains(s, "bridge"):
		return TermSheetBridge
	}
	return TermSheetConstruction
}

// Templates holds provider template ids.
type Templates struct {
	NDA                     string `koanf:"nda"`
	PowerOfAttorney         string `koanf:"power_of_attorney"`
	ProjectOverview         string `koanf:"project_overview"`
	IdentificationForm      string `koanf:"identification_form"`
	TermSheetPreDevelopment string `koanf:"term_sheet_pre_development"`
	TermSheetBridge         string `koanf:"term_sheet_bridge"`
	TermSheetConstruction   string `koanf:"term_sheet_construction"`
	FormC                   string `koanf:"form_c"`
	EscrowAgreement         string `koanf:"escrow_agreement"`
	FinancialStatements     string `koanf:"financial_statements"`
	ContentBrief            string `koanf:"content_brief"`
}

func (t Templates) termSheet(v TermSheet) string {
	switch v {
	case TermSheetPreDevelopment:
		return t.TermSheetPreDevelopment
	case TermSheetBridge:
		return t.TermSheetBridge
	}
	return t.TermSheetConstruction
}

// Document is one entry of a plan.
type Document struct {
	Title      string
	TemplateID string
	Folder     string
}

// PhaseOnePlan is NDA, power of attorney, project overview,
// identification form and the selected term sheet, in that order.
func PhaseOnePlan(t Templates, financingType string) []Document {
	return []Document{
		{Title: "NDA", TemplateID: t.NDA, Folder: FolderExternal},
		{Title: "Power of Attorney", TemplateID: t.PowerOfAttorney, Folder: FolderExternal},
		{Title: "Project Overview", TemplateID: t.ProjectOverview, Folder: FolderInternal},
		{Title: "Identification Form", TemplateID: t.IdentificationForm, Folder: FolderInternal},
		{Title: "Term Sheet", TemplateID: t.termSheet(SelectTermSheet(financingType)), Folder: FolderExternal},
	}
}

// PhaseTwoPlan lists the regulatory filings, each in its own subfolder.
func PhaseTwoPlan(t Templates) []Document {
	return []Document{
		{Title: "Form C", TemplateID: t.FormC, Folder: FolderFormC},
		{Title: "Escrow Agreement", TemplateID: t.EscrowAgreement, Folder: FolderEscrowAccount},
		{Title: "Financial Statements Certification", TemplateID: t.FinancialStatements, Folder: FolderFinancialStatements},
		{Title: "Campaign Content Brief", TemplateID: t.ContentBrief, Folder: FolderContent},
	}
}

// DocumentName is the file name used for a plan entry.
func DocumentName(businessName, title string) string {
	if businessName == "" {
		return title
	}
	return businessName + " - " + title
}
