package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apkgbuild/internal/deck"
)

func TestValidateProjectName(t *testing.T) {
	testCases := []struct {
		name        string
		projectName string
		errorMsg    string
	}{
		{name: "valid name", projectName: "my-deck"},
		{name: "valid name with underscores", projectName: "my_deck"},
		{name: "valid name alphanumeric", projectName: "deck123"},
		{name: "empty string", projectName: "", errorMsg: "must be 1-100 characters"},
		{name: "whitespace only", projectName: "   ", errorMsg: "must be 1-100 characters"},
		{name: "too long", projectName: "a" + string(make([]byte, 100)), errorMsg: "must be 1-100 characters"},
		{name: "contains slash", projectName: "my/deck", errorMsg: "can only contain letters, numbers, dashes, and underscores"},
		{name: "contains dot", projectName: "my.deck", errorMsg: "can only contain letters, numbers, dashes, and underscores"},
		{name: "path traversal attempt", projectName: "../deck", errorMsg: "can only contain letters, numbers, dashes, and underscores"},
		{name: "absolute path", projectName: "/usr/bin/deck", errorMsg: "cannot be an absolute path"},
		{name: "contains special chars", projectName: "my@deck!", errorMsg: "can only contain letters, numbers, dashes, and underscores"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateProjectName(tc.projectName)
			if tc.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorMsg)
		})
	}
}

func TestNewNewCommand(t *testing.T) {
	cmd := NewNewCommand()

	assert.Equal(t, "new [project-name]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	for _, name := range []string{"interactive", "deck", "model"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "expected --%s flag", name)
	}
	assert.Equal(t, "Basic Card", cmd.Flags().Lookup("model").DefValue)
}

func TestScaffoldProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "verbs")
	require.NoError(t, scaffoldProject(dir, projectData{
		Slug:      "verbs",
		DeckName:  `Spanish::"Irregular" Verbs`,
		ModelName: "Verb",
	}))

	for _, f := range projectFiles {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(f.dest)))
		assert.NoError(t, err, "expected %s", f.dest)
	}

	defs, err := deck.Load(filepath.Join(dir, "deck.yml"))
	require.NoError(t, err)
	assert.Equal(t, `Spanish::"Irregular" Verbs`, defs.Deck)
	assert.Equal(t, []string{"Verb"}, defs.ModelNames())
	assert.Empty(t, defs.Validate())

	header, err := os.ReadFile(filepath.Join(dir, "src", "header.html"))
	require.NoError(t, err)
	assert.Contains(t, string(header), "Spanish::&#34;Irregular&#34; Verbs")
}

func TestNewCommand(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	out, err := runCommand(t, nil, "new", "french", "--deck", "French::Nouns", "--model", "Noun")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created project: french")
	assert.Contains(t, out, "apkgbuild build")

	defs, err := deck.Load(filepath.Join(tmpDir, "french", "deck.yml"))
	require.NoError(t, err)
	assert.Equal(t, "French::Nouns", defs.Deck)
	assert.Equal(t, "french-hola", defs.Notes[0].GUID)

	_, err = runCommand(t, nil, "new", "french")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runCommand(t, nil, "new", "my.deck")
	require.Error(t, err)
}
