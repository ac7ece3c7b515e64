package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema names for request bodies.
const (
	SchemaDrinkCreate = "drink-create"
	SchemaDrinkUpdate = "drink-update"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrInvalidDocument is matched by every error caused by the document itself
// (malformed JSON or a schema violation), as opposed to a broken schema.
var ErrInvalidDocument = errors.New("document does not match schema")

// DocumentError describes why a document was rejected.
type DocumentError struct {
	Schema string
	Path   string
	Detail string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: validation failed at '%s': %s", e.Schema, e.Path, e.Detail)
}

func (e *DocumentError) Is(target error) bool { return target == ErrInvalidDocument }

// Validator validates raw JSON documents against a named schema.
type Validator interface {
	Validate(schema string, body []byte) error
}

// SchemaValidator implements Validator using santhosh-tekuri/jsonschema/v6
// and the schemas embedded in this package.
type SchemaValidator struct {
	schemaCache *lru.Cache[string, *jsonschema.Schema]
}

// NewSchemaValidator creates a new validator with LRU caching for compiled schemas
func NewSchemaValidator(cacheSize int) (*SchemaValidator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &SchemaValidator{schemaCache: cache}, nil
}

// Validate parses body and checks it against the named schema. Errors caused
// by the body match ErrInvalidDocument.
func (v *SchemaValidator) Validate(name string, body []byte) error {
	schema, err := v.schema(name)
	if err != nil {
		return err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &DocumentError{Schema: name, Path: "$", Detail: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if err := schema.Validate(doc); err != nil {
		return v.documentError(name, err)
	}
	return nil
}

func (v *SchemaValidator) schema(name string) (*jsonschema.Schema, error) {
	if cached, found := v.schemaCache.Get(name); found {
		return cached, nil
	}

	schema, err := compileSchema(name)
	if err != nil {
		return nil, err
	}
	v.schemaCache.Add(name, schema)
	return schema, nil
}

// compileSchema compiles an embedded schema. Each schema gets its own
// compiler so the resource URLs never collide.
func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", name, err)
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	schemaURL := name + ".json"
	if err := compiler.AddResource(schemaURL, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// documentError converts a jsonschema failure into a DocumentError with a
// JSON path, e.g. "$.recipe.0.parts".
func (v *SchemaValidator) documentError(name string, err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &DocumentError{Schema: name, Path: "$", Detail: err.Error()}
	}

	path := "$"
	var parts []string
	for _, part := range ve.InstanceLocation {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		path = "$." + strings.Join(parts, ".")
	}

	detail := ve.Error()
	if len(detail) > 200 {
		detail = detail[:200] + "... (truncated)"
	}
	return &DocumentError{Schema: name, Path: path, Detail: detail}
}

// GetCacheSize returns the number of compiled schemas held in the cache.
func (v *SchemaValidator) GetCacheSize() int {
	return v.schemaCache.Len()
}
