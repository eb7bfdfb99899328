package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

var schemaFiles = map[string]string{
	TypeHello:     "hello.schema.json",
	TypeQueueTask: "queue_task.schema.json",
}

func loadSchemas() {
	schemas = map[string]*jsonschema.Schema{}
	for typ, name := range schemaFiles {
		src, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemasErr = err
			return
		}
		s, err := jsonschema.CompileString("file:///protocol/"+name, string(src))
		if err != nil {
			schemasErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		schemas[typ] = s
	}
}

// Validate checks a client message of the given type against its schema.
// Types without a schema are accepted.
func Validate(typ string, raw []byte) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[typ]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
