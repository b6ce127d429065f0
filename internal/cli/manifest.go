package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Manifest kinds accepted by "products apply".
const (
	KindCategory = "Category"
	KindProduct  = "Product"
)

// manifestSchema describes one document of a catalogue manifest.
const manifestSchema = `{
  "type": "object",
  "required": ["kind"],
  "properties": {
    "kind": {"enum": ["Category", "Product"]}
  },
  "allOf": [
    {
      "if": {"properties": {"kind": {"const": "Category"}}},
      "then": {
        "required": ["name"],
        "additionalProperties": false,
        "properties": {
          "kind": true,
          "name": {"type": "string", "minLength": 1, "maxLength": 80}
        }
      }
    },
    {
      "if": {"properties": {"kind": {"const": "Product"}}},
      "then": {
        "required": ["sku", "name", "price"],
        "additionalProperties": false,
        "oneOf": [
          {"required": ["category_id"], "not": {"required": ["category"]}},
          {"required": ["category"], "not": {"required": ["category_id"]}}
        ],
        "properties": {
          "kind": true,
          "id": {"type": "string", "maxLength": 20},
          "sku": {"type": "string", "minLength": 1, "maxLength": 40},
          "name": {"type": "string", "minLength": 1, "maxLength": 120},
          "price": {"type": "integer", "minimum": 0},
          "stock": {"type": "integer", "minimum": 0},
          "category_id": {"type": "integer", "minimum": 1},
          "category": {"type": "string", "minLength": 1},
          "image": {"type": "string", "minLength": 1}
        }
      }
    }
  ]
}`

// ManifestCategory is a category document.
type ManifestCategory struct {
	Name string `mapstructure:"name"`
}

// ManifestProduct is a product document. The category is given either by id or by name.
// Image is a path relative to the manifest file.
type ManifestProduct struct {
	ID         string `mapstructure:"id"`
	SKU        string `mapstructure:"sku"`
	Name       string `mapstructure:"name"`
	Price      int64  `mapstructure:"price"`
	Stock      int    `mapstructure:"stock"`
	CategoryID int    `mapstructure:"category_id"`
	Category   string `mapstructure:"category"`
	Image      string `mapstructure:"image"`
}

// Manifest is a parsed catalogue manifest, in document order per kind.
type Manifest struct {
	Dir        string
	Categories []ManifestCategory
	Products   []ManifestProduct
}

var (
	manifestSchemaOnce     sync.Once
	manifestSchemaCompiled *jsonschema.Schema
	manifestSchemaErr      error
)

func compiledManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("inline://manifest", strings.NewReader(manifestSchema)); err != nil {
			manifestSchemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		manifestSchemaCompiled, manifestSchemaErr = compiler.Compile("inline://manifest")
	})
	return manifestSchemaCompiled, manifestSchemaErr
}

// LoadManifest reads, expands and validates a manifest file.
func LoadManifest(filename string) (*Manifest, error) {
	docs, err := ParseMultiYAML(filename)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(docs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	m.Dir = filepath.Dir(filename)
	return m, nil
}

// ParseManifest validates each document against the manifest schema and decodes it.
func ParseManifest(docs []map[string]any) (*Manifest, error) {
	schema, err := compiledManifestSchema()
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	for i, doc := range docs {
		if err := validateDocument(schema, doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		switch doc["kind"] {
		case KindCategory:
			var c ManifestCategory
			if err := decodeDocument(doc, &c); err != nil {
				return nil, fmt.Errorf("document %d: %w", i+1, err)
			}
			m.Categories = append(m.Categories, c)
		case KindProduct:
			var p ManifestProduct
			if err := decodeDocument(doc, &p); err != nil {
				return nil, fmt.Errorf("document %d: %w", i+1, err)
			}
			m.Products = append(m.Products, p)
		}
	}
	return m, nil
}

func validateDocument(schema *jsonschema.Schema, doc map[string]any) error {
	// the validator expects JSON values, so numbers go through a JSON round trip
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return errors.New(schemaMessage(verr))
		}
		return err
	}
	return nil
}

// schemaMessage returns the most specific message of a validation error.
func schemaMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	loc := strings.TrimPrefix(verr.InstanceLocation, "/")
	if loc == "" {
		return verr.Message
	}
	return loc + ": " + verr.Message
}

func decodeDocument(doc map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(doc)
}

// ParseMultiYAML reads a file of YAML documents, expanding {{ .ENV.NAME }} placeholders first.
func ParseMultiYAML(filename string) ([]map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	data = bytes.ReplaceAll(data, []byte("\t"), []byte("    "))

	data, err = PreprocessYAML(data)
	if err != nil {
		return nil, err
	}

	return ParseMultiYAMLFromBytes(data)
}

// ParseMultiYAMLFromBytes splits data into YAML documents. Empty documents are skipped.
func ParseMultiYAMLFromBytes(data []byte) ([]map[string]any, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	result := []map[string]any{}

	for {
		var doc map[string]any
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		if len(doc) > 0 {
			result = append(result, doc)
		}
	}

	return result, nil
}

var missingKeyRegex = regexp.MustCompile(`map has no entry for key "(.*?)"`)

// PreprocessYAML replaces {{ .ENV.VAR }} placeholders with values from the environment or
// from a .env file in the working directory. Variables already set win over the file.
func PreprocessYAML(input []byte) ([]byte, error) {
	_ = godotenv.Load() // no error if .env doesn't exist

	env := map[string]string{}
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	tmpl, err := template.New("manifest").Option("missingkey=error").Parse(string(input))
	if err != nil {
		return nil, fmt.Errorf("template error: %w", err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, struct{ ENV map[string]string }{ENV: env}); err != nil {
		if m := missingKeyRegex.FindStringSubmatch(err.Error()); len(m) == 2 {
			return nil, fmt.Errorf("missing environment variable: %s (set it in your shell or .env file)", m[1])
		}
		return nil, fmt.Errorf("template error: %w", err)
	}
	return out.Bytes(), nil
}
