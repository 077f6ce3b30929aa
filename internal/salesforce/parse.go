package salesforce

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseWebhook decodes a referral bundle. Missing fields are fine; a body that is
// not a JSON object, has mistyped fields, or carries a fragment whose
// resourceType names a different resource is rejected with ErrInvalidPayload.
func ParseWebhook(body []byte) (*WebhookPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPayload)
	}

	var payload WebhookPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	type fragment struct{ field, resourceType, expected string }
	var fragments []fragment
	if payload.Patient != nil {
		fragments = append(fragments, fragment{"Patient__c", payload.Patient.ResourceType, "Patient"})
	}
	if payload.Coverage != nil {
		fragments = append(fragments, fragment{"Coverage__c", payload.Coverage.ResourceType, "Coverage"})
	}
	if payload.Practitioner != nil {
		fragments = append(fragments, fragment{"Practitioner__c", payload.Practitioner.ResourceType, "Practitioner"})
	}
	if payload.MedicationRequest != nil {
		fragments = append(fragments, fragment{"MedicationRequest__c", payload.MedicationRequest.ResourceType, "MedicationRequest"})
	}
	if payload.ServiceRequest != nil {
		fragments = append(fragments, fragment{"ServiceRequest__c", payload.ServiceRequest.ResourceType, "ServiceRequest"})
	}
	for _, f := range fragments {
		if f.resourceType != "" && f.resourceType != f.expected {
			return nil, fmt.Errorf("%w: %s has resourceType %q, expected %q", ErrInvalidPayload, f.field, f.resourceType, f.expected)
		}
	}

	return &payload, nil
}

