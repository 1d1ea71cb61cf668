package llm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiled holds schemas keyed by name and definition digest, so two stages
// that reuse a name with different shapes never share a validator.
var compiled sync.Map // string -> *jsonschema.Schema

// validateResponse recovers the JSON object in a structured reply, checks it
// against schema and returns the object alone. Fenced, prose-wrapped and
// slightly malformed replies are repaired by ExtractJSON first. Failures are
// *ErrInvalidResponse carrying the reply as received.
func validateResponse(schema *Schema, raw json.RawMessage) (json.RawMessage, error) {
	if schema == nil {
		return raw, nil
	}
	invalid := func(format string, args ...any) error {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf(format, args...)}
	}

	obj, ok := ExtractJSON(string(raw))
	if !ok {
		return nil, invalid("no JSON object in reply")
	}
	// Numbers stay json.Number so integer keywords are checked exactly.
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(obj))
	if err != nil {
		return nil, invalid("invalid JSON: %w", err)
	}

	sch, err := compileSchema(schema)
	if err != nil {
		return nil, invalid("compile schema %q: %w", schema.Name, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, invalid("reply does not match %q: %w", schema.Name, err)
	}
	return obj, nil
}

func compileSchema(schema *Schema) (*jsonschema.Schema, error) {
	def, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal definition: %w", err)
	}
	sum := sha256.Sum256(def)
	key := schema.Name + "@" + hex.EncodeToString(sum[:8])
	if s, ok := compiled.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	url := "mem://schemas/" + key + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	actual, _ := compiled.LoadOrStore(key, s)
	return actual.(*jsonschema.Schema), nil
}
