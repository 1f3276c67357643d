package wizard

import (
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
	"github.com/garyjia/backoffice-wizard/pkg/utils"
)

// Onboarding record field paths touched by hooks and uploads
const (
	FieldPAN               = "personalInfo.pan"
	FieldIFSC              = "financialProfile.ifscCode"
	FieldUploadedDocuments = "documentation.uploadedDocuments"
)

// OnboardingRules builds the client-onboarding rule catalog
func OnboardingRules() *RuleSet {
	docs := make([]RequiredDocument, 0, len(entity.RequiredOnboardingDocuments))
	for _, d := range entity.RequiredOnboardingDocuments {
		docs = append(docs, RequiredDocument{ID: d.ID, Message: d.Label + " is required"})
	}

	return NewRuleSet().
		Section(SectionPersonal,
			Required("personalInfo.fullName", "Full name is required"),
			Required("personalInfo.email", "Email is required"),
			Pattern("personalInfo.email", utils.EmailPattern, "Please enter a valid email address"),
			Required("personalInfo.mobile", "Mobile number is required"),
			Pattern("personalInfo.mobile", utils.MobilePattern, "Mobile number must be 10 digits"),
			Required(FieldPAN, "PAN is required"),
			Pattern(FieldPAN, utils.PANPattern, "Invalid PAN format (e.g. ABCDE1234F)"),
			Required("personalInfo.dateOfBirth", "Date of birth is required"),
			Date("personalInfo.dateOfBirth", "Date of birth must be a valid date (YYYY-MM-DD)"),
			Required("personalInfo.address", "Address is required"),
			Required("personalInfo.city", "City is required"),
			Required("personalInfo.state", "State is required"),
			Required("personalInfo.pincode", "PIN code is required"),
			Pattern("personalInfo.pincode", utils.PINPattern, "PIN code must be 6 digits"),
		).
		Section(SectionFinancial,
			Required("financialProfile.occupation", "Occupation is required"),
			Required("financialProfile.annualIncome", "Annual income is required"),
			Required("financialProfile.netWorth", "Net worth is required"),
			Required("financialProfile.bankName", "Bank name is required"),
			Required("financialProfile.accountNumber", "Account number is required"),
			Required(FieldIFSC, "IFSC code is required"),
			Pattern(FieldIFSC, utils.IFSCPattern, "Invalid IFSC code (e.g. HDFC0001234)"),
		).
		Section(SectionPreferences,
			AtLeastOne("investmentPreferences.locations", "Select at least one preferred location"),
			AtLeastOne("investmentPreferences.strategies", "Select at least one investment strategy"),
		).
		Section(SectionDocumentation,
			Checked("documentation.termsAccepted", "You must accept the terms and conditions"),
			Checked("documentation.privacyAccepted", "You must accept the privacy policy"),
			Checked("documentation.kycConsent", "KYC consent is required"),
			HasDocuments(FieldUploadedDocuments, docs...),
		)
}
