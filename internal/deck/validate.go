package deck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var guidNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("apkgbuild.note"))

// ResolveGUID returns the note's guid, deriving a stable one from the model
// name and the value of the model's first field when none is declared.
func (d *Definitions) ResolveGUID(note *NoteDef) string {
	if note.GUID != "" {
		return note.GUID
	}

	var first string
	if m, ok := d.Model(note.Model); ok && len(m.Fields) > 0 {
		first = note.Fields[m.Fields[0]]
	}
	return uuid.NewSHA1(guidNamespace, []byte(note.Model+"\x1f"+first)).String()
}

// Validate checks that every reference in the definitions resolves.
func (d *Definitions) Validate() Diagnostics {
	var ds Diagnostics

	report := func(sev Severity, code string, line int, path, subject, format string, args ...any) {
		ds = append(ds, Diagnostic{
			Code:     code,
			Message:  fmt.Sprintf(format, args...),
			Severity: sev,
			Location: Location{File: d.Path, Line: line, Path: path},
			Subject:  subject,
		})
	}

	seenModels := make(map[string]bool)
	declared := make(map[string]bool)
	for i, m := range d.Models {
		path := fmt.Sprintf("models[%d]", i)

		if strings.TrimSpace(m.Name) == "" {
			report(Error, ErrEmptyModelName, m.Line, path, "", "model has no name")
		} else if seenModels[m.Name] {
			report(Error, ErrDuplicateModel, m.Line, path, m.Name, "model %q is declared more than once", m.Name)
		}
		seenModels[m.Name] = true

		if m.Type != TypeStandard && m.Type != TypeCloze {
			report(Error, ErrUnknownModelType, m.Line, path+".type", m.Type,
				"unknown model type %q (expected %s or %s)", m.Type, TypeStandard, TypeCloze)
		}

		if len(m.Fields) == 0 {
			report(Error, ErrNoFields, m.Line, path+".fields", m.Name, "model %q has no fields", m.Name)
		}
		seenFields := make(map[string]bool)
		for _, f := range m.Fields {
			if seenFields[f] {
				report(Error, ErrDuplicateField, m.Line, path+".fields", f,
					"model %q declares field %q more than once", m.Name, f)
			}
			seenFields[f] = true
			declared[f] = true
		}

		if len(m.HTML) != 2 || m.Front() == "" || m.Back() == "" {
			report(Error, ErrTemplatePair, m.Line, path+".html", m.Name,
				"model %q must list exactly a front and a back template", m.Name)
		}
	}

	for _, f := range d.CommonFields {
		if !declared[f] {
			report(Error, ErrUnknownCommonField, 0, "common_fields", f,
				"common field %q is not a field of any model", f)
		}
	}

	used := make(map[string]bool)
	guids := make(map[string]int)
	for i := range d.Notes {
		n := &d.Notes[i]
		path := fmt.Sprintf("notes[%d]", i)
		used[n.Model] = true

		if len(n.Fields) == 0 {
			report(Error, ErrEmptyNote, n.Line, path+".fields", "", "note has no field values")
		}

		m, ok := d.Model(n.Model)
		if !ok {
			report(Error, ErrUnknownModel, n.Line, path+".model", n.Model,
				"note references unknown model %q", n.Model)
		} else {
			names := make([]string, 0, len(n.Fields))
			for name := range n.Fields {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				if !contains(m.Fields, name) {
					report(Error, ErrUnknownField, n.Line, path+".fields."+name, name,
						"model %q has no field %q", m.Name, name)
				}
			}
		}

		if n.GUID == "" {
			report(Warning, WarnDerivedGUID, n.Line, path+".guid", "",
				"note has no guid; one will be derived from its first field")
		}

		guid := d.ResolveGUID(n)
		if prev, dup := guids[guid]; dup {
			report(Error, ErrDuplicateGUID, n.Line, path+".guid", guid,
				"guid %q is already used by notes[%d]", guid, prev)
		} else {
			guids[guid] = i
		}
	}

	for i, m := range d.Models {
		if m.Name != "" && !used[m.Name] {
			report(Warning, WarnUnusedModel, m.Line, fmt.Sprintf("models[%d]", i), m.Name,
				"model %q has no notes", m.Name)
		}
	}

	for i, name := range d.Media {
		if strings.TrimSpace(name) == "" {
			report(Error, ErrEmptyMediaName, 0, fmt.Sprintf("media[%d]", i), "", "media entry is empty")
		}
	}

	return ds
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
