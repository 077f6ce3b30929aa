package intake

// Status is the workflow state of a start form.
type Status string

const (
	StatusNew                   Status = "new"
	StatusReviewing             Status = "reviewing"
	StatusBenefitsInvestigation Status = "benefits-investigation"
	StatusComplete              Status = "complete"
	StatusIncomplete            Status = "incomplete"
)

// Priority is the triage bucket for a referral.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

const (
	DefaultSource        = "Salesforce Health Cloud"
	DefaultNextAction    = "Review and verify completeness"
	IncompleteNextAction = "Request additional information from provider"

	UnknownCarrier    = "Unknown Carrier"
	UnknownMedication = "Unknown Medication"
)

// StartForm is the internal referral record built from a Salesforce webhook.
type StartForm struct {
	ID                string      `json:"id"`
	SalesforceID      string      `json:"salesforceId,omitempty"`
	PatientName       string      `json:"patientName"`
	Source            string      `json:"source"`
	ReceivedAt        string      `json:"receivedAt"`
	PagesReceived     int         `json:"pagesReceived"`
	Patient           PatientInfo `json:"patient"`
	Insurance         *Insurance  `json:"insurance,omitempty"`
	Prescriber        *Prescriber `json:"prescriber,omitempty"`
	Medication        *Medication `json:"medication,omitempty"`
	Status            Status      `json:"status"`
	Priority          Priority    `json:"priority"`
	PriorityDefaulted bool        `json:"priorityDefaulted"`
	MissingInfo       []string    `json:"missingInfo"`
	NextAction        string      `json:"nextAction"`
	PDFPath           string      `json:"pdfPath,omitempty"`
}

// PatientInfo holds demographic and contact details. Fields may be empty.
type PatientInfo struct {
	DOB     string `json:"dob"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Insurance is derived from a FHIR Coverage.
type Insurance struct {
	Carrier           string `json:"carrier"`
	PolicyNumber      string `json:"policyNumber"`
	GroupNumber       string `json:"groupNumber"`
	Verified          bool   `json:"verified"`
	EligibilityStatus string `json:"eligibilityStatus"`
}

// Prescriber is derived from a FHIR Practitioner.
type Prescriber struct {
	Name  string `json:"name"`
	NPI   string `json:"npi"`
	Phone string `json:"phone"`
}

// Medication is derived from a FHIR MedicationRequest.
type Medication struct {
	Name          string `json:"name"`
	Dosage        string `json:"dosage"`
	DiagnosisCode string `json:"diagnosisCode"`
}

// ValidationResult lists the labels of required values that are absent.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	MissingInfo []string `json:"missingInfo"`
}
