package intake

import "strings"

// ValidateStartForm checks the nine required values and reports the label of
// each missing one, in a fixed order. The form is not modified.
func ValidateStartForm(form *StartForm) ValidationResult {
	if form == nil {
		form = &StartForm{}
	}
	var insurance Insurance
	if form.Insurance != nil {
		insurance = *form.Insurance
	}
	var medication Medication
	if form.Medication != nil {
		medication = *form.Medication
	}
	var prescriber Prescriber
	if form.Prescriber != nil {
		prescriber = *form.Prescriber
	}

	checks := []struct {
		label   string
		present bool
	}{
		{"Date of birth", present(form.Patient.DOB)},
		{"Patient contact (phone or email)", present(form.Patient.Phone) || present(form.Patient.Email)},
		{"Patient address", present(form.Patient.Address)},
		{"Insurance carrier", present(insurance.Carrier)},
		{"Insurance policy number", present(insurance.PolicyNumber)},
		{"Medication name", present(medication.Name)},
		{"Diagnosis code", present(medication.DiagnosisCode)},
		{"Prescriber name", present(prescriber.Name)},
		{"Prescriber NPI", present(prescriber.NPI)},
	}

	missing := []string{}
	for _, c := range checks {
		if !c.present {
			missing = append(missing, c.label)
		}
	}
	return ValidationResult{Valid: len(missing) == 0, MissingInfo: missing}
}

// ApplyValidation demotes form to incomplete when required values are missing.
// It only touches the workflow fields.
func ApplyValidation(form *StartForm) ValidationResult {
	result := ValidateStartForm(form)
	if form == nil {
		return result
	}
	if !result.Valid {
		form.Status = StatusIncomplete
		form.MissingInfo = result.MissingInfo
		form.NextAction = IncompleteNextAction
	}
	return result
}

func present(value string) bool {
	return strings.TrimSpace(value) != ""
}
