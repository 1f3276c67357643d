package entity

// OnboardingApplication is the record assembled by the client-onboarding wizard
type OnboardingApplication struct {
	PersonalInfo          PersonalInfo          `json:"personalInfo"`
	FinancialProfile      FinancialProfile      `json:"financialProfile"`
	InvestmentPreferences InvestmentPreferences `json:"investmentPreferences"`
	Documentation         Documentation         `json:"documentation"`
}

// PersonalInfo holds the client's identity and contact details
type PersonalInfo struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	PAN         string `json:"pan"`
	DateOfBirth string `json:"dateOfBirth"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Pincode     string `json:"pincode"`
}

// FinancialProfile holds income, wealth and bank details
type FinancialProfile struct {
	Occupation           string `json:"occupation"`
	AnnualIncome         string `json:"annualIncome"`
	NetWorth             string `json:"netWorth"`
	BankName             string `json:"bankName"`
	AccountNumber        string `json:"accountNumber"`
	IFSCCode             string `json:"ifscCode"`
	InvestmentExperience string `json:"investmentExperience"`
}

// InvestmentPreferences captures where and how the client wants to invest
type InvestmentPreferences struct {
	Locations         []string `json:"locations"`
	Strategies        []string `json:"strategies"`
	BudgetRange       string   `json:"budgetRange"`
	RiskAppetite      string   `json:"riskAppetite"`
	InvestmentHorizon string   `json:"investmentHorizon"`
}

// Documentation holds consents and uploaded KYC documents
type Documentation struct {
	TermsAccepted     bool       `json:"termsAccepted"`
	PrivacyAccepted   bool       `json:"privacyAccepted"`
	KYCConsent        bool       `json:"kycConsent"`
	UploadedDocuments []Document `json:"uploadedDocuments"`
}

// NewOnboardingApplication returns the empty record an onboarding flow starts from
func NewOnboardingApplication() OnboardingApplication {
	return OnboardingApplication{
		InvestmentPreferences: InvestmentPreferences{
			Locations:  []string{},
			Strategies: []string{},
		},
		Documentation: Documentation{
			UploadedDocuments: []Document{},
		},
	}
}
