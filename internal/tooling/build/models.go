package build

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/apkgbuild/internal/anki"
	"github.com/conduit-lang/apkgbuild/internal/deck"
)

// CompiledModel holds the rendered templates and stylesheet of a model.
type CompiledModel struct {
	Name  string
	Front string
	Back  string
	CSS   string
}

// CompileModel expands the fragments a model definition refers to.
func (s *System) CompileModel(def *deck.ModelDef) (*CompiledModel, error) {
	front, err := s.sources.CompileFile(def.Front())
	if err != nil {
		return nil, fmt.Errorf("model %s: front template: %w", def.Name, err)
	}
	back, err := s.sources.CompileFile(def.Back())
	if err != nil {
		return nil, fmt.Errorf("model %s: back template: %w", def.Name, err)
	}
	css, err := s.sources.CompileCSS(def.CSS)
	if err != nil {
		return nil, fmt.Errorf("model %s: stylesheet: %w", def.Name, err)
	}

	return &CompiledModel{
		Name:  def.Name,
		Front: front,
		Back:  back,
		CSS:   css,
	}, nil
}

// Check validates the definitions and compiles every model's templates.
// Compile failures are reported as diagnostics next to the validation ones.
func (s *System) Check() (deck.Diagnostics, error) {
	s.sources.Reset()

	defs, diags, err := s.LoadDefinitions()
	if err != nil {
		if _, ok := err.(*deck.ValidationError); !ok {
			return nil, err
		}
	}

	for i := range defs.Models {
		def := &defs.Models[i]
		if len(def.HTML) != 2 {
			// Already reported as a template pair error.
			continue
		}
		if _, err := s.CompileModel(def); err != nil {
			diags = append(diags, deck.Diagnostic{
				Code:     deck.ErrTemplateCompile,
				Message:  err.Error(),
				Severity: deck.Error,
				Location: deck.Location{
					File: defs.Path,
					Line: def.Line,
					Path: fmt.Sprintf("models[%d].html", i),
				},
				Subject: def.Name,
			})
		}
	}
	return diags, nil
}

func (s *System) createModels(col *anki.Collection, defs *deck.Definitions) error {
	for i := range defs.Models {
		if err := s.createModel(col, defs, &defs.Models[i]); err != nil {
			return err
		}
	}
	return nil
}

// createModel registers one model: fields in declared order with the common
// ones sticky, sorting on the first field, no LaTeX preamble and a single
// template named after the model.
func (s *System) createModel(col *anki.Collection, defs *deck.Definitions, def *deck.ModelDef) error {
	compiled, err := s.CompileModel(def)
	if err != nil {
		return err
	}

	model := col.Models.New(def.Name)
	if def.IsCloze() {
		model.Type = anki.ModelCloze
	}

	for _, name := range def.Fields {
		field := col.Models.NewField(name)
		field.Sticky = defs.IsCommon(name)
		if err := col.Models.AddField(model, field); err != nil {
			return err
		}
	}

	model.SortField = 0
	model.LatexPre = ""
	model.LatexPost = ""
	model.CSS = compiled.CSS

	tmpl := col.Models.NewTemplate(def.Name)
	tmpl.QuestionFormat = compiled.Front
	tmpl.AnswerFormat = compiled.Back
	if err := col.Models.AddTemplate(model, tmpl); err != nil {
		return err
	}

	if err := col.Models.Add(model); err != nil {
		return err
	}
	s.logger.Debug("added model",
		zap.String("name", model.Name),
		zap.Stringer("type", model.Type),
		zap.Int("fields", len(model.Fields)))
	return nil
}

func (s *System) createNotes(ctx context.Context, col *anki.Collection, defs *deck.Definitions) error {
	for i := range defs.Notes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.createNote(ctx, col, defs, &defs.Notes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) createNote(ctx context.Context, col *anki.Collection, defs *deck.Definitions, def *deck.NoteDef) error {
	model, ok := col.Models.ByName(def.Model)
	if !ok {
		return fmt.Errorf("note at line %d: unknown model %q", def.Line, def.Model)
	}

	note := anki.NewNote(model)
	note.GUID = defs.ResolveGUID(def)

	// Map iteration order is random; set fields in a fixed order so errors
	// are reproducible.
	names := make([]string, 0, len(def.Fields))
	for name := range def.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := note.Set(name, def.Fields[name]); err != nil {
			return fmt.Errorf("note at line %d: %w", def.Line, err)
		}
	}
	note.Tags = def.Tags

	if err := col.AddNote(ctx, note); err != nil {
		return err
	}
	return nil
}

// pruneModels removes every model the definitions do not declare, which
// drops the stock models a new collection starts with.
func (s *System) pruneModels(ctx context.Context, col *anki.Collection, defs *deck.Definitions) ([]string, error) {
	var pruned []string
	for _, model := range col.Models.All() {
		if _, ok := defs.Model(model.Name); ok {
			continue
		}
		if err := col.Models.Remove(ctx, model.ID); err != nil {
			return pruned, fmt.Errorf("failed to prune model %s: %w", model.Name, err)
		}
		s.logger.Debug("pruned model", zap.String("name", model.Name))
		pruned = append(pruned, model.Name)
	}
	return pruned, nil
}
