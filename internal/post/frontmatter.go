package post

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the metadata block at the top of a document.
// Known keys get typed fields; everything else is preserved in Custom.
type FrontMatter struct {
	Layout      string
	Title       string
	Description string
	Author      string
	Category    string
	Tags        []string
	Date        time.Time
	Draft       bool
	Slug        string
	Custom      map[string]any
}

// Front matter parse failures. Lint reports these as front-matter-syntax
// findings instead of aborting the run.
var (
	// ErrNoFrontMatter: the document does not start with a --- delimiter.
	ErrNoFrontMatter = errors.New("document has no front matter block")

	// ErrUnterminatedFrontMatter: an opening --- with no closing delimiter.
	ErrUnterminatedFrontMatter = errors.New("front matter block is never closed")

	// ErrNotMapping: the block is valid YAML but not a key/value mapping.
	ErrNotMapping = errors.New("front matter is not a key/value mapping")
)

var (
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	delimiter = []byte("---")
)

// splitFrontMatter separates the metadata block from the body and decodes it.
// The returned body has the single newline after the closing delimiter
// removed but is otherwise untouched.
func splitFrontMatter(src []byte) (FrontMatter, []byte, error) {
	var fm FrontMatter

	src = bytes.TrimPrefix(src, utf8BOM)

	firstLine, rest, found := bytes.Cut(src, []byte("\n"))
	if !found || !bytes.Equal(bytes.TrimRight(firstLine, "\r"), delimiter) {
		return fm, nil, ErrNoFrontMatter
	}

	var block []byte
	var body []byte
	closed := false

	remaining := rest
	offset := 0
	for {
		line, after, more := bytes.Cut(remaining, []byte("\n"))
		if bytes.Equal(bytes.TrimRight(line, "\r"), delimiter) {
			block = rest[:offset]
			body = after
			closed = true
			break
		}
		if !more {
			break
		}
		offset += len(line) + 1
		remaining = after
	}

	if !closed {
		return fm, nil, ErrUnterminatedFrontMatter
	}

	if err := decodeFrontMatter(block, &fm); err != nil {
		return fm, nil, err
	}

	return fm, body, nil
}

// decodeFrontMatter decodes the YAML block into typed fields plus Custom.
func decodeFrontMatter(block []byte, fm *FrontMatter) error {
	raw := map[string]any{}
	if err := yaml.Unmarshal(block, &raw); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %v", ErrNotMapping, err)
		}
		return fmt.Errorf("front matter: %w", err)
	}

	for key, value := range raw {
		if err := assignField(fm, key, value); err != nil {
			return err
		}
	}

	return nil
}

// assignField routes one front matter key into the typed struct or Custom.
func assignField(fm *FrontMatter, key string, value any) error {
	switch key {
	case "layout":
		return assignString(&fm.Layout, key, value)
	case "title":
		return assignString(&fm.Title, key, value)
	case "description":
		return assignString(&fm.Description, key, value)
	case "author":
		return assignString(&fm.Author, key, value)
	case "category":
		return assignString(&fm.Category, key, value)
	case "slug":
		return assignString(&fm.Slug, key, value)
	case "tags":
		tags, err := toStringSlice(value)
		if err != nil {
			return fmt.Errorf("front matter: field %q: %w", key, err)
		}
		fm.Tags = tags
		return nil
	case "date":
		d, err := toDate(value)
		if err != nil {
			return fmt.Errorf("front matter: field %q: %w", key, err)
		}
		fm.Date = d
		return nil
	case "draft", "published":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("front matter: field %q: expected a boolean, got %T", key, value)
		}
		// published is the legacy inverse spelling of draft.
		if key == "published" {
			b = !b
		}
		fm.Draft = b
		return nil
	default:
		if fm.Custom == nil {
			fm.Custom = map[string]any{}
		}
		fm.Custom[key] = value
		return nil
	}
}

func assignString(dst *string, key string, value any) error {
	switch v := value.(type) {
	case string:
		*dst = v
		return nil
	case nil:
		*dst = ""
		return nil
	default:
		return fmt.Errorf("front matter: field %q: expected a string, got %T", key, value)
	}
}

// toStringSlice accepts either a YAML sequence of strings or a single
// scalar (a common shorthand for one tag).
func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string list, found %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string list, got %T", value)
	}
}

// dateLayouts are the accepted textual date forms, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// toDate normalizes the date field. yaml.v3 resolves timestamp-shaped plain
// scalars to time.Time on its own; everything else arrives as a string.
func toDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, v); err == nil {
				return d, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q (want 2006-01-02 or RFC3339)", v)
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("expected a date, got %T", value)
	}
}
