package domain

import "time"

// Filing form types that qualify as holdings reports. NPORT-P/A is an
// amendment and supersedes the original filing for the same period.
const (
	FormTypeNPORT        = "NPORT-P"
	FormTypeNPORTAmended = "NPORT-P/A"
)

// FilingReference identifies one retrievable EDGAR document. Created by
// the filing index resolver; never mutated.
type FilingReference struct {
	CIK             string    `json:"cik"`
	AccessionNumber string    `json:"accession_number"`
	FilingDate      time.Time `json:"filing_date"`
	FormType        string    `json:"form_type"`
}

// IsHoldingsReport reports whether a form type is a qualifying N-PORT
// holdings disclosure.
func IsHoldingsReport(formType string) bool {
	return formType == FormTypeNPORT || formType == FormTypeNPORTAmended
}
