package anki

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// fieldSeparator joins field values in notes.flds.
const fieldSeparator = "\x1f"

var (
	htmlTagPattern  = regexp.MustCompile(`(?s)<[^>]*>`)
	mediaPattern    = regexp.MustCompile(`(?i)\[sound:[^\]]+\]|<img[^>]*>`)
	clozeOrdPattern = regexp.MustCompile(`\{\{c(\d+)::`)
)

// Note is a note bound to a model. Fields are kept in model order.
type Note struct {
	ID     int64
	GUID   string
	Model  *Model
	Fields []string
	Tags   []string
}

// NewNote returns an empty note for model.
func NewNote(model *Model) *Note {
	return &Note{
		Model:  model,
		Fields: make([]string, len(model.Fields)),
	}
}

// Set assigns a field value by name.
func (n *Note) Set(field, value string) error {
	idx := n.Model.FieldIndex(field)
	if idx < 0 {
		return fmt.Errorf("model %s has no field %q", n.Model.Name, field)
	}
	n.Fields[idx] = value
	return nil
}

// AddNote inserts the note and generates its cards in the default deck.
func (c *Collection) AddNote(ctx context.Context, note *Note) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if note.Model == nil {
		return fmt.Errorf("note has no model")
	}
	if _, ok := c.Models.Get(note.Model.ID); !ok {
		return fmt.Errorf("model %s is not registered", note.Model.Name)
	}
	if len(note.Fields) != len(note.Model.Fields) {
		return fmt.Errorf("note has %d fields, model %s has %d",
			len(note.Fields), note.Model.Name, len(note.Model.Fields))
	}
	if note.GUID == "" {
		return fmt.Errorf("note of model %s has no guid", note.Model.Name)
	}

	ords := cardOrdinals(note)

	note.ID = c.newID()
	mod := c.modTime()
	sortValue := StripHTML(note.Fields[note.Model.SortField])

	if _, err := c.tx.ExecContext(ctx, insertNoteSQL,
		note.ID,
		note.GUID,
		note.Model.ID,
		mod,
		joinTags(note.Tags),
		strings.Join(note.Fields, fieldSeparator),
		sortValue,
		FieldChecksum(note.Fields[0]),
	); err != nil {
		return fmt.Errorf("failed to insert note %s: %w", note.GUID, err)
	}

	due := c.nextPos
	c.nextPos++
	for _, ord := range ords {
		if _, err := c.tx.ExecContext(ctx, insertCardSQL,
			c.newID(),
			note.ID,
			DefaultDeckID,
			ord,
			mod,
			due,
		); err != nil {
			return fmt.Errorf("failed to insert card %d of note %s: %w", ord, note.GUID, err)
		}
	}

	return nil
}

// cardOrdinals returns the template ordinals to generate cards for. Standard
// models get a card per template whose referenced fields are not all empty;
// cloze models get one card per cloze number. A note always gets at least
// the card at ordinal 0.
func cardOrdinals(note *Note) []int {
	if note.Model.Type == ModelCloze {
		seen := make(map[int]bool)
		for _, value := range note.Fields {
			for _, m := range clozeOrdPattern.FindAllStringSubmatch(value, -1) {
				n, err := strconv.Atoi(m[1])
				if err == nil && n > 0 {
					seen[n-1] = true
				}
			}
		}
		if len(seen) == 0 {
			return []int{0}
		}
		ords := make([]int, 0, len(seen))
		for ord := range seen {
			ords = append(ords, ord)
		}
		sort.Ints(ords)
		return ords
	}

	var ords []int
	for _, t := range note.Model.Templates {
		refs := referencedFields(note.Model, t.QuestionFormat)
		if len(refs) == 0 {
			ords = append(ords, t.Ord)
			continue
		}
		for _, idx := range refs {
			if strings.TrimSpace(note.Fields[idx]) != "" {
				ords = append(ords, t.Ord)
				break
			}
		}
	}
	if len(ords) == 0 {
		return []int{0}
	}
	return ords
}

// StripHTML removes tags and media references and decodes entities, the way
// sort fields and checksums are normalized.
func StripHTML(s string) string {
	s = mediaPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

// FieldChecksum returns the duplicate-detection checksum of a first field:
// the first 32 bits of the SHA-1 of its stripped text.
func FieldChecksum(field string) int64 {
	sum := sha1.Sum([]byte(StripHTML(field)))
	n, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)
	return n
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}
