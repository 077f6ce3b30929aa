package salesforce

// Shapes of the referral payload Salesforce Health Cloud posts to the webhook.
// Fragments follow FHIR R4 field names; every field is optional.

// WebhookPayload is the referral bundle delivered by the Health Cloud flow.
type WebhookPayload struct {
	ExternalReferralID string             `json:"External_Referral_Id__c,omitempty"`
	Source             string             `json:"Source__c,omitempty"`
	ReceivedDate       string             `json:"Received_Date__c,omitempty"`
	DocumentPageCount  float64            `json:"Document_Page_Count__c,omitempty"`
	PagesReceived      float64            `json:"Pages_Received__c,omitempty"`
	ContentVersionID   string             `json:"ContentVersionId__c,omitempty"`
	ContentDocumentID  string             `json:"ContentDocumentId__c,omitempty"`
	Patient            *Patient           `json:"Patient__c,omitempty"`
	Coverage           *Coverage          `json:"Coverage__c,omitempty"`
	Practitioner       *Practitioner      `json:"Practitioner__c,omitempty"`
	MedicationRequest  *MedicationRequest `json:"MedicationRequest__c,omitempty"`
	ServiceRequest     *ServiceRequest    `json:"ServiceRequest__c,omitempty"`
}

// Patient represents a FHIR Patient resource
type Patient struct {
	ResourceType string         `json:"resourceType,omitempty"`
	ID           string         `json:"id,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	BirthDate    string         `json:"birthDate,omitempty"` // YYYY-MM-DD
	Address      []Address      `json:"address,omitempty"`
}

// Coverage represents a FHIR Coverage resource
type Coverage struct {
	ResourceType string          `json:"resourceType,omitempty"`
	ID           string          `json:"id,omitempty"`
	Status       string          `json:"status,omitempty"` // active, cancelled, draft, entered-in-error
	SubscriberID string          `json:"subscriberId,omitempty"`
	Payor        []Reference     `json:"payor,omitempty"`
	Class        []CoverageClass `json:"class,omitempty"`
}

// CoverageClass carries plan/group classifiers on a Coverage.
type CoverageClass struct {
	Type  CodeableConcept `json:"type"`
	Value string          `json:"value,omitempty"`
	Name  string          `json:"name,omitempty"`
}

// Practitioner represents a FHIR Practitioner resource
type Practitioner struct {
	ResourceType string         `json:"resourceType,omitempty"`
	ID           string         `json:"id,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
}

// MedicationRequest represents a FHIR MedicationRequest resource
type MedicationRequest struct {
	ResourceType              string            `json:"resourceType,omitempty"`
	ID                        string            `json:"id,omitempty"`
	Status                    string            `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept  `json:"medicationCodeableConcept,omitempty"`
	DosageInstruction         []Dosage          `json:"dosageInstruction,omitempty"`
	ReasonCode                []CodeableConcept `json:"reasonCode,omitempty"`
}

// ServiceRequest represents a FHIR ServiceRequest resource
type ServiceRequest struct {
	ResourceType string `json:"resourceType,omitempty"`
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
	Intent       string `json:"intent,omitempty"`
	Priority     string `json:"priority,omitempty"` // routine, urgent, asap, stat (plus org-specific values)
	AuthoredOn   string `json:"authoredOn,omitempty"`
}

// HumanName represents a person's name
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
	Prefix []string `json:"prefix,omitempty"`
	Suffix []string `json:"suffix,omitempty"`
}

// ContactPoint represents a contact detail (phone, email, etc.)
type ContactPoint struct {
	System string `json:"system,omitempty"` // phone, fax, email, pager, url, sms, other
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

// Address represents a physical address
type Address struct {
	Use        string   `json:"use,omitempty"`
	Text       string   `json:"text,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
}

// Identifier is a business identifier such as an NPI.
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Reference represents a reference to another FHIR resource
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// CodeableConcept represents a coded value with optional text
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding represents a specific code from a code system
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Dosage carries free-text dosage instructions.
type Dosage struct {
	Text string `json:"text,omitempty"`
}
