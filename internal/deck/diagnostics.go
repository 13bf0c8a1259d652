package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Diagnostic codes, grouped by what they concern.
// D001-D099: models
// D100-D199: notes
// D200-D299: deck-wide settings
// D300-D399: templates
const (
	ErrDuplicateModel   = "D001"
	ErrNoFields         = "D002"
	ErrDuplicateField   = "D003"
	ErrTemplatePair     = "D004"
	ErrUnknownModelType = "D005"
	ErrEmptyModelName   = "D006"
	WarnUnusedModel     = "D050"

	ErrUnknownModel  = "D100"
	ErrUnknownField  = "D101"
	ErrDuplicateGUID = "D102"
	ErrEmptyNote     = "D103"
	WarnDerivedGUID  = "D150"

	ErrUnknownCommonField = "D200"
	ErrEmptyMediaName     = "D201"

	ErrTemplateCompile = "D300"
)

// Severity represents the severity level of a diagnostic
type Severity int

const (
	Warning Severity = iota
	Error
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Location points into a definitions file.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
	// Path is the entry the diagnostic concerns, e.g. models[2] or notes[0].fields.Back.
	Path string `json:"path"`
}

func (l Location) String() string {
	switch {
	case l.File != "" && l.Line > 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	case l.File != "":
		return l.File
	default:
		return l.Path
	}
}

// Diagnostic is one problem found in a definitions file.
type Diagnostic struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Location Location `json:"location"`
	// Subject is the unresolved name for lookup failures.
	Subject string `json:"subject,omitempty"`
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Code, d.Message)
}

// IsError reports whether the diagnostic blocks a build.
func (d Diagnostic) IsError() bool {
	return d.Severity == Error
}

// Diagnostics is the result of validating definitions.
type Diagnostics []Diagnostic

// Errors returns only the blocking diagnostics.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the non-blocking diagnostics.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if !d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any diagnostic blocks a build.
func (ds Diagnostics) HasErrors() bool {
	return len(ds.Errors()) > 0
}

// JSONOutput is the machine-readable form of a validation run.
type JSONOutput struct {
	Status   string      `json:"status"`
	Errors   Diagnostics `json:"errors"`
	Warnings Diagnostics `json:"warnings"`
	Summary  Summary     `json:"summary"`
}

// Summary contains error and warning counts
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
}

// FormatJSON renders diagnostics as indented JSON.
func (ds Diagnostics) FormatJSON() (string, error) {
	errs := ds.Errors()
	warns := ds.Warnings()

	status := "success"
	if len(errs) > 0 {
		status = "error"
	} else if len(warns) > 0 {
		status = "warning"
	}

	if errs == nil {
		errs = Diagnostics{}
	}
	if warns == nil {
		warns = Diagnostics{}
	}

	data, err := json.MarshalIndent(JSONOutput{
		Status:   status,
		Errors:   errs,
		Warnings: warns,
		Summary: Summary{
			ErrorCount:   len(errs),
			WarningCount: len(warns),
		},
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ValidationError is returned when definitions contain blocking diagnostics.
type ValidationError struct {
	Diagnostics Diagnostics
}

func (e *ValidationError) Error() string {
	errs := e.Diagnostics.Errors()
	if len(errs) == 1 {
		return "invalid definitions: " + errs[0].Error()
	}

	lines := make([]string, len(errs))
	for i, d := range errs {
		lines[i] = "  " + d.Error()
	}
	return fmt.Sprintf("invalid definitions (%d errors):\n%s", len(errs), strings.Join(lines, "\n"))
}
