package build

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apkgbuild/internal/deck"
)

const projectDefinitions = `deck: Interactive Demo
deck_config: Interactive Demo
common_fields: [Source]
models:
  - name: Vocab
    fields: [Word, Meaning, Source]
    css: [css/base.css, css/vocab.css]
    html: [vocab/front.html, vocab/back.html]
  - name: Cloze Demo
    type: cloze
    fields: [Text, Source]
    css: [css/base.css]
    html: [cloze/front.html, cloze/back.html]
notes:
  - model: Vocab
    fields:
      Word: "<b>hola</b>"
      Meaning: hello
    tags: [spanish]
  - model: Cloze Demo
    guid: fixed-guid
    fields:
      Text: "{{c1::Paris}} is the capital of {{c2::France}}"
`

var projectSources = map[string]string{
	"css/base.css":         "body { margin: 0; }",
	"css/vocab.css":        ".word { font-weight: bold; }",
	"partials/header.html": "<header>{{Source}}</header>",
	"vocab/front.html":     "{{> partials/header}}<div class=\"word\">{{Word}}</div>",
	"vocab/back.html":      "{{FrontSide}}<hr id=answer>{{Meaning}}<script src=\"js/app.js\"></script>",
	"js/app.js":            "console.log(1);",
	"cloze/front.html":     "{{cloze:Text}}",
	"cloze/back.html":      "{{cloze:Text}}<br>{{Source}}",
}

// newProject lays out a deck project in a temp dir and returns options
// pointing at it.
func newProject(t *testing.T, definitions string) *BuildOptions {
	t.Helper()
	root := t.TempDir()

	for name, content := range projectSources {
		writeFile(t, filepath.Join(root, "src", name), content)
	}
	writeFile(t, filepath.Join(root, "deck.yml"), definitions)

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &BuildOptions{
		SourceDir:       filepath.Join(root, "src"),
		BuildDir:        filepath.Join(root, "build"),
		DistDir:         filepath.Join(root, "dist"),
		DefinitionsPath: filepath.Join(root, "deck.yml"),
		CollectionPath:  filepath.Join(root, "build", "collection.anki2"),
		PackagePath:     filepath.Join(root, "dist", "deck.apkg"),
		Clock:           func() time.Time { return fixed },
	}
}

func TestNewSystem(t *testing.T) {
	sys, err := NewSystem(nil)
	require.NoError(t, err)
	assert.Equal(t, "src", sys.Options().SourceDir)
	assert.Equal(t, "src", sys.Sources().Root())

	_, err = NewSystem(&BuildOptions{SourceDir: "src"})
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	result, err := sys.Build(context.Background())
	require.NoError(t, err)

	assert.False(t, result.UpToDate)
	assert.Equal(t, 2, result.Models)
	assert.Equal(t, 2, result.Notes)
	assert.Equal(t, []string{"Basic"}, result.Pruned)
	assert.Equal(t, opts.PackagePath, result.PackagePath)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, deck.WarnDerivedGUID, result.Warnings[0].Code)

	db, err := sql.Open("sqlite3", opts.CollectionPath)
	require.NoError(t, err)
	defer db.Close()

	var cards int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM cards").Scan(&cards))
	assert.Equal(t, 3, cards, "one vocab card plus two cloze cards")

	var guid, tags string
	require.NoError(t, db.QueryRow("SELECT tags FROM notes WHERE guid = ?", "fixed-guid").Scan(&tags))
	assert.Equal(t, "", tags)
	require.NoError(t, db.QueryRow("SELECT guid, tags FROM notes WHERE guid != ?", "fixed-guid").Scan(&guid, &tags))
	defs, err := deck.Parse([]byte(projectDefinitions))
	require.NoError(t, err)
	assert.Equal(t, defs.ResolveGUID(&defs.Notes[0]), guid)
	assert.Equal(t, " spanish ", tags)

	var modelsJSON, decksJSON, dconfJSON string
	require.NoError(t, db.QueryRow("SELECT models, decks, dconf FROM col").Scan(&modelsJSON, &decksJSON, &dconfJSON))

	var models map[string]struct {
		Name  string `json:"name"`
		Type  int    `json:"type"`
		CSS   string `json:"css"`
		Sortf int    `json:"sortf"`
		Flds  []struct {
			Name   string `json:"name"`
			Sticky bool   `json:"sticky"`
		} `json:"flds"`
		Tmpls []struct {
			Name string `json:"name"`
			Qfmt string `json:"qfmt"`
			Afmt string `json:"afmt"`
		} `json:"tmpls"`
		LatexPre string `json:"latexPre"`
	}
	require.NoError(t, json.Unmarshal([]byte(modelsJSON), &models))
	require.Len(t, models, 2)

	seen := make(map[string]bool)
	for id, m := range models {
		seen[m.Name] = true
		switch m.Name {
		case "Vocab":
			assert.Equal(t, 0, m.Type)
			assert.Equal(t, 0, m.Sortf)
			assert.Equal(t, "", m.LatexPre)
			assert.Equal(t, "body { margin: 0; }\n.word { font-weight: bold; }", m.CSS)
			require.Len(t, m.Flds, 3)
			assert.False(t, m.Flds[0].Sticky)
			assert.True(t, m.Flds[2].Sticky, "common field is sticky")
			require.Len(t, m.Tmpls, 1)
			assert.Equal(t, "Vocab", m.Tmpls[0].Name)
			assert.Equal(t, "<header>{{Source}}</header><div class=\"word\">{{Word}}</div>", m.Tmpls[0].Qfmt)
			assert.Contains(t, m.Tmpls[0].Afmt, "<script>console.log(1);</script>\n")
		case "Cloze Demo":
			assert.Equal(t, 1, m.Type)
		default:
			t.Errorf("unexpected model %s (%s)", m.Name, id)
		}
	}
	assert.Len(t, seen, 2)

	assert.Contains(t, decksJSON, `"name":"Interactive Demo"`)

	var dconf map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(dconfJSON), &dconf))
	assert.Len(t, dconf, 2)

	entries := readPackage(t, opts.PackagePath)
	assert.Equal(t, []string{"collection.anki2", "media"}, sortedKeys(entries))
	assert.Equal(t, "{}", entries["media"])
}

func TestBuildSkipsWhenFresh(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	_, err = sys.Build(context.Background())
	require.NoError(t, err)

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, result.UpToDate)

	// A changed partial invalidates the fingerprint.
	writeFile(t, filepath.Join(opts.SourceDir, "partials", "header.html"), "<h1>{{Source}}</h1>")
	result, err = sys.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, result.UpToDate)

	opts.Force = true
	result, err = sys.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, result.UpToDate)
	assert.Equal(t, 2, result.Notes)
}

func TestBuildReplacesExistingCollection(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	writeFile(t, opts.CollectionPath, "not a database")

	sys, err := NewSystem(opts)
	require.NoError(t, err)

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Notes)
}

func TestBuildWithMedia(t *testing.T) {
	defs := projectDefinitions + "media: [audio/hola.mp3]\n"
	opts := newProject(t, defs)
	writeFile(t, filepath.Join(opts.SourceDir, "audio", "hola.mp3"), "ID3")

	sys, err := NewSystem(opts)
	require.NoError(t, err)

	_, err = sys.Build(context.Background())
	require.NoError(t, err)

	entries := readPackage(t, opts.PackagePath)
	assert.Equal(t, "ID3", entries["0"])
	assert.JSONEq(t, `{"0": "audio/hola.mp3"}`, entries["media"])
}

func TestBuildValidationError(t *testing.T) {
	defs := projectDefinitions + `  - model: Missing
    fields:
      Word: x
`
	opts := newProject(t, defs)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	_, err = sys.Build(context.Background())
	require.Error(t, err)

	var verr *deck.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, deck.ErrUnknownModel, verr.Diagnostics.Errors()[0].Code)

	_, statErr := os.Stat(opts.PackagePath)
	assert.True(t, os.IsNotExist(statErr), "no package is written for invalid definitions")
}

func TestBuildMissingFragment(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	require.NoError(t, os.Remove(filepath.Join(opts.SourceDir, "partials", "header.html")))

	sys, err := NewSystem(opts)
	require.NoError(t, err)

	_, err = sys.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "model Vocab")
}

func TestBuildCancelled(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sys.Build(ctx)
	assert.Error(t, err)
}

func TestBuildForceClearsFingerprint(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	_, err = sys.Build(context.Background())
	require.NoError(t, err)
	require.True(t, sys.cache.Fresh(opts.DefinitionsPath, opts.PackagePath))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts.Force = true
	_, err = sys.Build(ctx)
	require.Error(t, err)
	assert.False(t, sys.cache.Fresh(opts.DefinitionsPath, opts.PackagePath))

	opts.Force = false
	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, result.UpToDate)
}

func TestBuildEmptyQuestionFields(t *testing.T) {
	defs := `models:
  - name: Vocab
    fields: [Word, Meaning, Source]
    html: [vocab/front.html, vocab/back.html]
notes:
  - model: Vocab
    guid: g1
    fields:
      Meaning: hello
`
	opts := newProject(t, defs)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	diags, err := sys.Check()
	require.NoError(t, err)
	assert.False(t, diags.HasErrors())

	result, err := sys.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Notes)

	db, err := sql.Open("sqlite3", opts.CollectionPath)
	require.NoError(t, err)
	defer db.Close()

	var cards, ord int
	require.NoError(t, db.QueryRow("SELECT count(*), min(ord) FROM cards").Scan(&cards, &ord))
	assert.Equal(t, 1, cards)
	assert.Equal(t, 0, ord)
}

func TestCompileModel(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	defs, _, err := sys.LoadDefinitions()
	require.NoError(t, err)

	def, ok := defs.Model("Vocab")
	require.True(t, ok)

	compiled, err := sys.CompileModel(def)
	require.NoError(t, err)
	assert.Equal(t, "Vocab", compiled.Name)
	assert.NotContains(t, compiled.Front, "{{>")
	assert.Equal(t, "{{FrontSide}}<hr id=answer>{{Meaning}}<script>console.log(1);</script>\n", compiled.Back)
	assert.Equal(t, "body { margin: 0; }\n.word { font-weight: bold; }", compiled.CSS)
}

func TestCheck(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	diags, err := sys.Check()
	require.NoError(t, err)
	assert.False(t, diags.HasErrors())

	require.NoError(t, os.Remove(filepath.Join(opts.SourceDir, "cloze", "back.html")))

	diags, err = sys.Check()
	require.NoError(t, err)
	require.Len(t, diags.Errors(), 1)
	assert.Equal(t, deck.ErrTemplateCompile, diags.Errors()[0].Code)
	assert.Equal(t, "Cloze Demo", diags.Errors()[0].Subject)
}

func TestCheckMissingDefinitions(t *testing.T) {
	opts := newProject(t, projectDefinitions)
	opts.DefinitionsPath = filepath.Join(t.TempDir(), "missing.yml")
	sys, err := NewSystem(opts)
	require.NoError(t, err)

	_, err = sys.Check()
	assert.Error(t, err)
}

func readPackage(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
