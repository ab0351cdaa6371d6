package spec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

var testSchema = jsonschema.MustCompileString("test.schema.json", schemaJSON)

// Extensions lists the file extensions Load understands.
var Extensions = []string{".json", ".yaml", ".yml", ".cue"}

// Load stages, reported in LoadError.Stage.
const (
	StageRead     = "read"
	StageParse    = "parse"
	StageSchema   = "schema"
	StageDecode   = "decode"
	StageValidate = "validate"
)

// LoadError reports why a test file could not be loaded.
type LoadError struct {
	Path  string
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a LoadError at the given stage. An
// empty stage matches any stage.
func IsLoadError(err error, stage string) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return stage == "" || le.Stage == stage
	}
	return false
}

// SupportedFile reports whether path has an extension Load understands.
func SupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads, schema-checks, decodes and validates a test file.
func Load(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Stage: StageRead, Err: err}
	}
	return Parse(path, data)
}

// Parse is Load for data already in memory. name selects the format by
// its extension and is used in error messages.
func Parse(name string, data []byte) (*TestSpec, error) {
	doc, err := toJSON(name, data)
	if err != nil {
		return nil, &LoadError{Path: name, Stage: StageParse, Err: err}
	}

	var generic any
	if err := json.Unmarshal(doc, &generic); err != nil {
		return nil, &LoadError{Path: name, Stage: StageParse, Err: err}
	}
	if err := testSchema.Validate(generic); err != nil {
		return nil, &LoadError{Path: name, Stage: StageSchema, Err: err}
	}

	var s TestSpec
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, &LoadError{Path: name, Stage: StageDecode, Err: err}
	}
	s.Source = name

	if errs := s.Validate(); len(errs) > 0 {
		return nil, &LoadError{Path: name, Stage: StageValidate, Err: errs}
	}
	return &s, nil
}

// toJSON converts a YAML or CUE document to JSON. JSON passes through.
func toJSON(name string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return json.Marshal(doc)
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, err
		}
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, err
		}
		return v.MarshalJSON()
	default:
		return data, nil
	}
}
