// Package suites manages built-in and user-defined test suites.
package suites

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pario-ai/routebench/pkg/models"
)

//go:embed builtin.json
var builtinJSON []byte

//go:embed suite.schema.json
var schemaJSON string

// DefaultSuiteID is used when a caller does not name a suite.
const DefaultSuiteID = "general-purpose-v1"

var printer = message.NewPrinter(language.English)

var suiteSchema = mustCompileSchema(schemaJSON, "suite.schema.json")

var loadBuiltin = sync.OnceValue(func() []models.TestSuite {
	var doc struct {
		Suites []models.TestSuite `json:"suites"`
	}
	if err := json.Unmarshal(builtinJSON, &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded builtin.json: %v", err))
	}
	return doc.Suites
})

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Builtin returns a copy of the suites shipped with the binary.
func Builtin() []models.TestSuite {
	src := loadBuiltin()
	out := make([]models.TestSuite, len(src))
	for i, s := range src {
		out[i] = clone(s)
	}
	return out
}

// Merge combines built-in and custom suites keyed by id. A custom suite
// replaces the built-in with the same id in place; new ids are appended in
// the order they appear.
func Merge(builtin, custom []models.TestSuite) []models.TestSuite {
	out := make([]models.TestSuite, 0, len(builtin)+len(custom))
	index := make(map[string]int, len(builtin)+len(custom))
	put := func(s models.TestSuite) {
		if i, ok := index[s.ID]; ok {
			out[i] = s
			return
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	for _, s := range builtin {
		put(s)
	}
	for _, s := range custom {
		put(s)
	}
	return out
}

// Find returns the suite with the given id.
func Find(all []models.TestSuite, id string) (models.TestSuite, bool) {
	for _, s := range all {
		if s.ID == id {
			return s, true
		}
	}
	return models.TestSuite{}, false
}

// ValidationError lists every schema violation found in a suite document.
type ValidationError struct {
	SuiteID  string
	Problems []string
}

func (e *ValidationError) Error() string {
	id := e.SuiteID
	if id == "" {
		id = "<unnamed>"
	}
	return fmt.Sprintf("invalid suite %s: %s", id, strings.Join(e.Problems, "; "))
}

// ValidateDocument checks a decoded JSON value against the suite schema.
func ValidateDocument(doc any) error {
	var problems []string
	if err := suiteSchema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("schema: %w", err)
		}
		collectSchemaErrors(ve, &problems)
	}

	id := ""
	if m, ok := doc.(map[string]any); ok {
		id, _ = m["id"].(string)
		problems = append(problems, duplicateCaseIDs(m["cases"])...)
	}
	if len(problems) > 0 {
		return &ValidationError{SuiteID: id, Problems: problems}
	}
	return nil
}

// Validate checks a typed suite against the schema.
func Validate(s models.TestSuite) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode suite: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode suite: %w", err)
	}
	return ValidateDocument(doc)
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(printer)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

func duplicateCaseIDs(v any) []string {
	cases, ok := v.([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(cases))
	var problems []string
	for i, c := range cases {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		if seen[id] {
			problems = append(problems, fmt.Sprintf("/cases/%d/id: duplicate case id %q", i, id))
		}
		seen[id] = true
	}
	return problems
}

// Normalize trims identifiers and fills a missing case name from its id.
func Normalize(s models.TestSuite) models.TestSuite {
	s = clone(s)
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	for i := range s.Cases {
		c := &s.Cases[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			c.Name = c.ID
		}
		if len(c.Tags) == 0 {
			c.Tags = nil
		}
		if c.Params != nil && *c.Params == (models.TestParams{}) {
			c.Params = nil
		}
	}
	return s
}

func clone(s models.TestSuite) models.TestSuite {
	out := s
	if s.Iterations != nil {
		n := *s.Iterations
		out.Iterations = &n
	}
	out.Cases = make([]models.TestCase, len(s.Cases))
	for i, c := range s.Cases {
		cc := c
		if c.Tags != nil {
			cc.Tags = append([]string(nil), c.Tags...)
		}
		if c.Params != nil {
			p := *c.Params
			cc.Params = &p
		}
		if c.Weight != nil {
			w := *c.Weight
			cc.Weight = &w
		}
		out.Cases[i] = cc
	}
	return out
}
