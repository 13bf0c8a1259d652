package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/apkgbuild/internal/deck"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message block with optional suggestions and help
// commands.
//
// Example output:
//
//	❌ MODEL NOT FOUND: Cannot find model 'Vocb'.
//	   Cannot find model 'Vocb'.
//
//	   Did you mean: Vocab?
//
//	   → Validate definitions: apkgbuild check
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	default:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	}
	accent := color.New(color.FgYellow)
	help := color.New(color.FgCyan)

	if opts.NoColor {
		for _, c := range []*color.Color{headerColor, bodyColor, accent, help} {
			c.DisableColor()
		}
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Problem != "" && opts.Context != "" {
		bodyColor.Fprintf(&b, "   %s\n", opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		accent.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			help.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ModelNotFoundError reports a model name missing from the definitions
func ModelNotFoundError(name string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "MODEL NOT FOUND",
		Problem:     fmt.Sprintf("Cannot find model '%s'.", name),
		Suggestions: suggestions,
		HelpCommands: []string{
			"Validate definitions: apkgbuild check",
		},
		NoColor: noColor,
	})
}

// BuildError reports a failed build
func BuildError(message string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "BUILD FAILED",
		Problem:     message,
		Consequence: "No package was written.",
		Suggestions: suggestions,
		HelpCommands: []string{
			"Validate definitions: apkgbuild check",
			"Get help: apkgbuild build --help",
		},
		NoColor: noColor,
	})
}

// ConfigError reports an unusable configuration
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "CONFIGURATION ERROR",
		Problem: message,
		HelpCommands: []string{
			"View config: cat apkgbuild.yml",
			"Get help: apkgbuild --help",
		},
		NoColor: noColor,
	})
}

// DiagnosticMessage renders a definitions diagnostic. Unresolved model and
// field names get suggestions drawn from candidates.
func DiagnosticMessage(d deck.Diagnostic, candidates []string, noColor bool) string {
	level := ErrorLevelError
	if !d.IsError() {
		level = ErrorLevelWarning
	}

	var suggestions []string
	if d.Subject != "" && len(candidates) > 0 &&
		(d.Code == deck.ErrUnknownModel || d.Code == deck.ErrUnknownField || d.Code == deck.ErrUnknownCommonField) {
		suggestions = FindSimilar(d.Subject, candidates, nil)
	}

	return FormatError(ErrorOptions{
		Level:       level,
		Context:     d.Code,
		Problem:     d.Message,
		Consequence: d.Location.String(),
		Suggestions: suggestions,
		NoColor:     noColor,
	})
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelWarning,
		Problem: message,
		NoColor: noColor,
	})
}
