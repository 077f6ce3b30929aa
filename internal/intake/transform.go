package intake

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/patient-support-platform/internal/salesforce"
)

var (
	now   = time.Now
	newID = uuid.NewString
)

// TransformPatient returns the display name and contact block for a Patient
// fragment. A nil patient yields an empty name and an empty block.
func TransformPatient(p *salesforce.Patient) (string, PatientInfo) {
	if p == nil {
		return "", PatientInfo{}
	}
	info := PatientInfo{
		DOB:   formatBirthDate(p.BirthDate),
		Phone: firstTelecom(p.Telecom, "phone"),
		Email: firstTelecom(p.Telecom, "email"),
	}
	if len(p.Address) > 0 {
		info.Address = formatAddress(p.Address[0])
	}
	var name string
	if len(p.Name) > 0 {
		name = displayName(p.Name[0], false)
	}
	return name, info
}

// TransformCoverage maps a Coverage fragment. A nil coverage returns nil.
func TransformCoverage(c *salesforce.Coverage) *Insurance {
	if c == nil {
		return nil
	}
	carrier := UnknownCarrier
	if len(c.Payor) > 0 && strings.TrimSpace(c.Payor[0].Display) != "" {
		carrier = strings.TrimSpace(c.Payor[0].Display)
	}
	var group string
	for _, class := range c.Class {
		if hasCode(class.Type, "group") {
			group = class.Value
			break
		}
	}
	eligibility := "inactive"
	if c.Status == "active" {
		eligibility = "active"
	}
	return &Insurance{
		Carrier:           carrier,
		PolicyNumber:      c.SubscriberID,
		GroupNumber:       group,
		Verified:          false,
		EligibilityStatus: eligibility,
	}
}

// TransformPractitioner maps a Practitioner fragment. A nil practitioner returns nil.
func TransformPractitioner(p *salesforce.Practitioner) *Prescriber {
	if p == nil {
		return nil
	}
	prescriber := &Prescriber{Phone: firstTelecom(p.Telecom, "phone")}
	if len(p.Name) > 0 {
		prescriber.Name = displayName(p.Name[0], true)
	}
	for _, id := range p.Identifier {
		if strings.Contains(strings.ToLower(id.System), "npi") {
			prescriber.NPI = id.Value
			break
		}
	}
	return prescriber
}

// TransformMedication maps a MedicationRequest fragment. A nil request returns nil.
func TransformMedication(m *salesforce.MedicationRequest) *Medication {
	if m == nil {
		return nil
	}
	med := &Medication{Name: UnknownMedication}
	if cc := m.MedicationCodeableConcept; cc != nil {
		switch {
		case strings.TrimSpace(cc.Text) != "":
			med.Name = strings.TrimSpace(cc.Text)
		case len(cc.Coding) > 0 && strings.TrimSpace(cc.Coding[0].Display) != "":
			med.Name = strings.TrimSpace(cc.Coding[0].Display)
		}
	}
	if len(m.DosageInstruction) > 0 {
		med.Dosage = m.DosageInstruction[0].Text
	}
	if len(m.ReasonCode) > 0 {
		reason := m.ReasonCode[0]
		if len(reason.Coding) > 0 && reason.Coding[0].Code != "" && reason.Coding[0].Display != "" {
			med.DiagnosisCode = reason.Coding[0].Code + " (" + reason.Coding[0].Display + ")"
		} else {
			med.DiagnosisCode = reason.Text
		}
	}
	return med
}

// TransformPriority buckets a ServiceRequest priority. Every input maps to one
// of the three priorities; defaulted is true when no bucket matched.
func TransformPriority(external string) (priority Priority, defaulted bool) {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "high", "urgent", "stat", "asap":
		return PriorityHigh, false
	case "low", "routine":
		return PriorityLow, false
	case "medium":
		return PriorityMedium, false
	default:
		return PriorityMedium, true
	}
}

// TransformSalesforceToStartForm builds a new StartForm from a webhook bundle.
// pdfPath is the public path of a downloaded attachment, or empty.
func TransformSalesforceToStartForm(payload *salesforce.WebhookPayload, pdfPath string) *StartForm {
	if payload == nil {
		payload = &salesforce.WebhookPayload{}
	}
	name, patient := TransformPatient(payload.Patient)

	var serviceRequestID, externalPriority string
	if sr := payload.ServiceRequest; sr != nil {
		serviceRequestID = strings.TrimSpace(sr.ID)
		externalPriority = sr.Priority
	}
	priority, defaulted := TransformPriority(externalPriority)

	id := strings.TrimSpace(payload.ExternalReferralID)
	switch {
	case id != "":
	case serviceRequestID != "":
		id = "SF-" + serviceRequestID
	default:
		id = "SF-" + newID()
	}

	source := strings.TrimSpace(payload.Source)
	if source == "" {
		source = DefaultSource
	}

	pages := int(payload.DocumentPageCount)
	if pages <= 0 {
		pages = int(payload.PagesReceived)
	}
	if pages < 0 {
		pages = 0
	}

	return &StartForm{
		ID:                id,
		SalesforceID:      serviceRequestID,
		PatientName:       name,
		Source:            source,
		ReceivedAt:        receivedAt(payload.ReceivedDate),
		PagesReceived:     pages,
		Patient:           patient,
		Insurance:         TransformCoverage(payload.Coverage),
		Prescriber:        TransformPractitioner(payload.Practitioner),
		Medication:        TransformMedication(payload.MedicationRequest),
		Status:            StatusNew,
		Priority:          priority,
		PriorityDefaulted: defaulted,
		MissingInfo:       []string{},
		NextAction:        DefaultNextAction,
		PDFPath:           pdfPath,
	}
}

func displayName(n salesforce.HumanName, withPrefix bool) string {
	if text := strings.TrimSpace(n.Text); text != "" {
		return text
	}
	var parts []string
	if withPrefix {
		parts = append(parts, n.Prefix...)
	}
	parts = append(parts, n.Given...)
	parts = append(parts, n.Family)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func firstTelecom(points []salesforce.ContactPoint, system string) string {
	for _, cp := range points {
		if cp.System == system {
			return cp.Value
		}
	}
	return ""
}

func formatAddress(a salesforce.Address) string {
	if text := strings.TrimSpace(a.Text); text != "" {
		return text
	}
	var parts []string
	for _, line := range a.Line {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	if city := strings.TrimSpace(a.City); city != "" {
		parts = append(parts, city)
	}
	if statePostal := strings.TrimSpace(strings.TrimSpace(a.State) + " " + strings.TrimSpace(a.PostalCode)); statePostal != "" {
		parts = append(parts, statePostal)
	}
	return strings.Join(parts, ", ")
}

// formatBirthDate rewrites YYYY-MM-DD as MM/DD/YYYY without calendar checks.
func formatBirthDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return parts[1] + "/" + parts[2] + "/" + parts[0]
}

func hasCode(cc salesforce.CodeableConcept, code string) bool {
	for _, c := range cc.Coding {
		if c.Code == code {
			return true
		}
	}
	return false
}

// receivedDateLayouts are the Received_Date__c shapes Salesforce emits:
// RFC 3339, its own datetime serialization, and a plain date field.
var receivedDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02",
}

// receivedAt normalizes the upstream received date to UTC RFC 3339. Missing or
// unparseable values fall back to server time.
func receivedAt(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range receivedDateLayouts {
		if raw == "" {
			break
		}
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return now().UTC().Format(time.RFC3339)
}
