package symbols

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed compilation.schema.json
var compilationSchema []byte

const schemaURL = "mem://schemas/compilation.schema.json"

var (
	compileOnce sync.Once
	schema      *jsonschema.Schema
	compileErr  error
)

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(compilationSchema))
		if err != nil {
			compileErr = fmt.Errorf("decode compilation schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("register compilation schema: %w", err)
			return
		}
		schema, compileErr = c.Compile(schemaURL)
	})
	return schema, compileErr
}

// Decode validates a JSON symbol dump against the compilation schema and
// decodes it.
func Decode(data []byte) (*Compilation, error) {
	sch, err := getSchema()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing symbol dump: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid symbol dump: %w", err)
	}

	var c Compilation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding symbol dump: %w", err)
	}
	return &c, nil
}
