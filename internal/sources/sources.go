// Package sources reads template fragments from the source directory and
// compiles them into self-contained card templates.
//
// Two directives are understood:
//
//	{{> name}}                   replaced by the contents of name.html
//	<script src="file"></script> replaced by an inline <script> block
//
// Partials are expanded recursively. Script tags are inlined once, after all
// partials have been expanded, so scripts referenced from partials are inlined
// too.
package sources

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	partialPattern = regexp.MustCompile(`\{\{> (.*?)\}\}`)
	scriptPattern  = regexp.MustCompile(`<script src="(.*?)"></script>`)
)

// CycleError is returned when partials include each other.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("partial include cycle: %s", strings.Join(e.Chain, " -> "))
}

// Sources is a lazily filled cache of fragment files keyed by their path
// relative to the source root.
type Sources struct {
	root  string
	fsys  fs.FS
	mu    sync.Mutex
	cache map[string]string
	order []string
}

// New creates a cache over the directory at root.
func New(root string) *Sources {
	s := NewFS(os.DirFS(root))
	s.root = root
	return s
}

// NewFS creates a cache over an arbitrary file system.
func NewFS(fsys fs.FS) *Sources {
	return &Sources{
		fsys:  fsys,
		cache: make(map[string]string),
	}
}

// Root returns the source directory, or "" for caches built with NewFS.
func (s *Sources) Root() string {
	return s.root
}

// Get returns the contents of name, reading it on first access.
func (s *Sources) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content, ok := s.cache[name]; ok {
		return content, nil
	}

	data, err := fs.ReadFile(s.fsys, path.Clean(filepath.ToSlash(name)))
	if err != nil {
		return "", fmt.Errorf("failed to read source %s: %w", name, err)
	}

	content := string(data)
	s.cache[name] = content
	s.order = append(s.order, name)
	return content, nil
}

// Loaded returns the names read so far, in first-read order.
func (s *Sources) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Reset drops every cached file.
func (s *Sources) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]string)
	s.order = nil
}

// CompileHTML expands partials and inlines scripts in html.
func (s *Sources) CompileHTML(html string) (string, error) {
	expanded, err := s.expandPartials(html, nil)
	if err != nil {
		return "", err
	}
	return s.inlineScripts(expanded)
}

// CompileFile compiles the contents of the named file.
func (s *Sources) CompileFile(name string) (string, error) {
	html, err := s.Get(name)
	if err != nil {
		return "", err
	}

	expanded, err := s.expandPartials(html, []string{name})
	if err != nil {
		return "", err
	}
	return s.inlineScripts(expanded)
}

// CompileCSS concatenates the listed stylesheets with newlines. Entries with
// glob metacharacters expand to every matching file in sorted order.
func (s *Sources) CompileCSS(list []string) (string, error) {
	parts := make([]string, 0, len(list))

	for _, entry := range list {
		names, err := s.expand(entry)
		if err != nil {
			return "", err
		}
		for _, name := range names {
			content, err := s.Get(name)
			if err != nil {
				return "", err
			}
			parts = append(parts, content)
		}
	}

	return strings.Join(parts, "\n"), nil
}

func (s *Sources) expand(entry string) ([]string, error) {
	if !strings.ContainsAny(entry, "*?[{") {
		return []string{entry}, nil
	}

	if !doublestar.ValidatePattern(entry) {
		return nil, fmt.Errorf("invalid stylesheet pattern %q", entry)
	}

	matches, err := doublestar.Glob(s.fsys, entry, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to expand stylesheet pattern %q: %w", entry, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("stylesheet pattern %q matched no files", entry)
	}

	sort.Strings(matches)
	return matches, nil
}

// expandPartials replaces every {{> name}} with the expanded contents of
// name.html. stack holds the files currently being expanded.
func (s *Sources) expandPartials(html string, stack []string) (string, error) {
	matches := partialPattern.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return html, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(html[last:m[0]])
		last = m[1]

		name := html[m[2]:m[3]] + ".html"
		for _, open := range stack {
			if open == name {
				chain := append(append([]string{}, stack...), name)
				return "", &CycleError{Chain: chain}
			}
		}

		content, err := s.Get(name)
		if err != nil {
			return "", err
		}

		expanded, err := s.expandPartials(content, append(stack, name))
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
	}
	b.WriteString(html[last:])

	return b.String(), nil
}

func (s *Sources) inlineScripts(html string) (string, error) {
	matches := scriptPattern.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return html, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(html[last:m[0]])
		last = m[1]

		content, err := s.Get(html[m[2]:m[3]])
		if err != nil {
			return "", err
		}
		b.WriteString("<script>")
		b.WriteString(content)
		b.WriteString("</script>\n")
	}
	b.WriteString(html[last:])

	return b.String(), nil
}
