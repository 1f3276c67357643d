package entity

// Request type catalog
const (
	RequestTypeLeave       = "leave"
	RequestTypeExpense     = "expense"
	RequestTypePurchase    = "purchase"
	RequestTypeTravel      = "travel"
	RequestTypeEquipment   = "equipment"
	RequestTypeTraining    = "training"
	RequestTypeMaintenance = "maintenance"
	RequestTypeAccess      = "access"
	RequestTypeOther       = "other"
)

// RequestTypes lists the catalog in display order
var RequestTypes = []string{
	RequestTypeLeave,
	RequestTypeExpense,
	RequestTypePurchase,
	RequestTypeTravel,
	RequestTypeEquipment,
	RequestTypeTraining,
	RequestTypeMaintenance,
	RequestTypeAccess,
	RequestTypeOther,
}

var costBearingTypes = map[string]bool{
	RequestTypeExpense:     true,
	RequestTypePurchase:    true,
	RequestTypeTravel:      true,
	RequestTypeEquipment:   true,
	RequestTypeTraining:    true,
	RequestTypeMaintenance: true,
}

// Priority levels
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

// Priorities lists the priority levels from most to least urgent
var Priorities = []string{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// Currencies accepted for cost-bearing requests
var Currencies = []string{"INR", "USD", "EUR", "GBP", "AED"}

// Upload states of a document
const (
	UploadStatePending   = "pending"
	UploadStateUploading = "uploading"
	UploadStateUploaded  = "uploaded"
	UploadStateFailed    = "failed"
)

// Submission statuses
const (
	SubmissionStatusPending = "pending"
	SubmissionStatusDraft   = "draft"
)

// Required onboarding documents, by upload id
const (
	DocPANCard       = "pan_card"
	DocAddressProof  = "address_proof"
	DocBankStatement = "bank_statement"
	DocPhotograph    = "photograph"
)

// RequiredOnboardingDocuments maps each mandatory document id to its label
var RequiredOnboardingDocuments = []struct {
	ID    string
	Label string
}{
	{DocPANCard, "PAN card"},
	{DocAddressProof, "Address proof"},
	{DocBankStatement, "Bank statement"},
	{DocPhotograph, "Photograph"},
}
