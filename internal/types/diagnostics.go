package types

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

const (
	DiagAPIKeyRequired     = "api_key_required"
	DiagSiteKeyRequired    = "site_key_required"
	DiagStubSiteKey        = "stub_sitekey_warning"
	DiagSettingsTestFailed = "settings_test_failed"
	DiagSettingsUntested   = "settings_untested"
)

// Diagnostic is a non-fatal finding reported to the operator after a settings save.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type Diagnostics []Diagnostic

func (d *Diagnostics) Error(code, msg string) {
	*d = append(*d, Diagnostic{Code: code, Severity: SeverityError, Message: msg})
}

func (d *Diagnostics) Warning(code, msg string) {
	*d = append(*d, Diagnostic{Code: code, Severity: SeverityWarning, Message: msg})
}

func (d Diagnostics) HasErrors() bool {
	for _, x := range d {
		if x.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Has reports whether a diagnostic with the given code was recorded.
func (d Diagnostics) Has(code string) bool {
	for _, x := range d {
		if x.Code == code {
			return true
		}
	}
	return false
}
