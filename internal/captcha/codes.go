package captcha

// VerifyCode is the result code returned by the /verify endpoint.
type VerifyCode int

const (
	NoError VerifyCode = iota
	ErrorOther
	DuplicateSolutionsError
	InvalidSolutionError
	ParseResponseError
	PuzzleExpiredError
	InvalidPropertyError
	WrongOwnerError
	VerifiedBeforeError
	MaintenanceModeError
	TestPropertyError
	IntegrityError
)

// SelfTestPassCode is the code the API returns when a stub solution is submitted for a real
// property. Receiving it proves the API key and site key authenticate against that property.
// The self-test depends on this remote contract; if the API changes the code, every
// self-test fails closed and gating integrations stay disabled.
const SelfTestPassCode = TestPropertyError

var codeText = map[VerifyCode]string{
	NoError:                 "no_error",
	ErrorOther:              "error_other",
	DuplicateSolutionsError: "duplicate_solutions",
	InvalidSolutionError:    "invalid_solution",
	ParseResponseError:      "parse_response",
	PuzzleExpiredError:      "puzzle_expired",
	InvalidPropertyError:    "invalid_property",
	WrongOwnerError:         "wrong_owner",
	VerifiedBeforeError:     "verified_before",
	MaintenanceModeError:    "maintenance_mode",
	TestPropertyError:       "test_property",
	IntegrityError:          "integrity",
}

func (c VerifyCode) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return "unknown"
}

// VerifyOutput is the decoded /verify response.
type VerifyOutput struct {
	Success   bool       `json:"success"`
	Code      VerifyCode `json:"code"`
	Origin    string     `json:"origin,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
}

// OK reports a fully successful verification.
func (o *VerifyOutput) OK() bool {
	return o != nil && o.Success && o.Code == NoError
}
