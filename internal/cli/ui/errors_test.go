package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/conduit-lang/apkgbuild/internal/deck"
)

func TestFormatError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
		excludes []string
	}{
		{
			name: "basic error",
			opts: ErrorOptions{
				Level:   ErrorLevelError,
				Context: "model not found",
				Problem: "Cannot find model 'Vocb'.",
			},
			contains: []string{"❌", "MODEL NOT FOUND: Cannot find model 'Vocb'.", "   Cannot find model 'Vocb'."},
			excludes: []string{"Did you mean"},
		},
		{
			name: "suggestions",
			opts: ErrorOptions{
				Problem:     "Cannot find model 'Vocb'.",
				Suggestions: []string{"Vocab", "Vocab Reverse"},
			},
			contains: []string{"Did you mean: Vocab, Vocab Reverse?"},
		},
		{
			name: "help commands",
			opts: ErrorOptions{
				Problem:      "missing partial",
				HelpCommands: []string{"Validate definitions: apkgbuild check"},
			},
			contains: []string{"→ Validate definitions: apkgbuild check"},
		},
		{
			name: "warning",
			opts: ErrorOptions{
				Level:   ErrorLevelWarning,
				Problem: "model has no notes",
			},
			contains: []string{"⚠️ model has no notes"},
		},
		{
			name: "info with consequence",
			opts: ErrorOptions{
				Level:       ErrorLevelInfo,
				Problem:     "package is up to date",
				Consequence: "Use --force to rebuild.",
			},
			contains: []string{"ℹ️ package is up to date", "   Use --force to rebuild."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatError(tt.opts)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(out, unwanted) {
					t.Errorf("expected output not to contain %q, got:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestModelNotFoundError(t *testing.T) {
	out := ModelNotFoundError("Vocb", []string{"Vocab"}, true)

	for _, want := range []string{"MODEL NOT FOUND", "Cannot find model 'Vocb'.", "Did you mean: Vocab?", "apkgbuild check"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestBuildError(t *testing.T) {
	out := BuildError("failed to read source front.html", nil, true)

	for _, want := range []string{"BUILD FAILED", "failed to read source front.html", "No package was written.", "apkgbuild build --help"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestConfigError(t *testing.T) {
	out := ConfigError("apkg_file must end with .apkg", true)

	if !strings.Contains(out, "CONFIGURATION ERROR") || !strings.Contains(out, "cat apkgbuild.yml") {
		t.Errorf("unexpected config error:\n%s", out)
	}
}

func TestDiagnosticMessage(t *testing.T) {
	d := deck.Diagnostic{
		Code:     deck.ErrUnknownModel,
		Message:  `note references unknown model "Vocb"`,
		Severity: deck.Error,
		Location: deck.Location{File: "deck.yml", Line: 12},
		Subject:  "Vocb",
	}

	out := DiagnosticMessage(d, []string{"Vocab", "Cloze"}, true)
	for _, want := range []string{"❌ D100", "unknown model", "deck.yml:12", "Did you mean: Vocab?"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}

	warn := deck.Diagnostic{
		Code:     deck.WarnUnusedModel,
		Message:  `model "Cloze" has no notes`,
		Severity: deck.Warning,
		Subject:  "Cloze",
		Location: deck.Location{Path: "models[1]"},
	}
	out = DiagnosticMessage(warn, []string{"Cloze"}, true)
	if !strings.Contains(out, "⚠️ D050") {
		t.Errorf("expected warning header, got:\n%s", out)
	}
	if strings.Contains(out, "Did you mean") {
		t.Errorf("expected no suggestions for a warning, got:\n%s", out)
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{Problem: "boom", NoColor: true})

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected written error, got %q", buf.String())
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "Created dist/deck.apkg", true)

	if buf.String() != "✓ Created dist/deck.apkg\n" {
		t.Errorf("unexpected success line %q", buf.String())
	}
}

func TestWarning(t *testing.T) {
	out := Warning("note has no guid", true)
	if !strings.Contains(out, "⚠️ note has no guid") {
		t.Errorf("unexpected warning %q", out)
	}
}
