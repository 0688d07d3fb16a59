package lint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"platen/internal/post"
)

// SchemaRule validates every post's front matter against a user-supplied
// JSON schema. It covers site-specific conventions the built-in rules
// cannot know about (required custom keys, enum values, formats).
type SchemaRule struct {
	schema *jsonschema.Schema
}

// NewSchemaRule compiles the schema at path.
func NewSchemaRule(path string) (*SchemaRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	unmarshaled, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("frontmatter.schema.json", unmarshaled); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("frontmatter.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &SchemaRule{schema: schema}, nil
}

func (*SchemaRule) ID() string { return "schema" }

func (r *SchemaRule) Check(p *post.Post, _ *Context) []Finding {
	// Round-trip through JSON so the validator sees json-decoded types,
	// whatever YAML produced.
	raw, err := json.Marshal(frontMatterDocument(p.Meta))
	if err != nil {
		return one("schema", SeverityError, p, fmt.Sprintf("front matter is not schema-checkable: %v", err))
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return one("schema", SeverityError, p, fmt.Sprintf("front matter is not schema-checkable: %v", err))
	}

	if err := r.schema.Validate(doc); err != nil {
		return one("schema", SeverityError, p, err.Error())
	}
	return nil
}

// frontMatterDocument flattens the typed front matter back into the
// document shape schemas are written against. Zero-valued known fields are
// omitted, matching what the author actually wrote.
func frontMatterDocument(fm post.FrontMatter) map[string]any {
	doc := make(map[string]any, len(fm.Custom)+8)
	for k, v := range fm.Custom {
		doc[k] = v
	}

	set := func(key, value string) {
		if value != "" {
			doc[key] = value
		}
	}
	set("layout", fm.Layout)
	set("title", fm.Title)
	set("description", fm.Description)
	set("author", fm.Author)
	set("category", fm.Category)
	set("slug", fm.Slug)

	if len(fm.Tags) > 0 {
		doc["tags"] = fm.Tags
	}
	if !fm.Date.IsZero() {
		doc["date"] = fm.Date.Format(time.RFC3339)
	}
	if fm.Draft {
		doc["draft"] = true
	}
	return doc
}
