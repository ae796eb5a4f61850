// Package schema reflects Go types into JSON schemas used for structured
// output and tool parameters.
package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Faker is implemented by types that provide their own example value
// for format instructions.
type Faker interface {
	Fake() any
}

// Schema is the reflected schema of a Go type.
type Schema struct {
	// Root is the schema as reflected.
	Root *jsonschema.Schema
	// Parameters is the root object with definitions inlined,
	// as accepted by function and response format parameters.
	Parameters *jsonschema.Schema
}

var cache sync.Map // reflect.Type -> *Schema

// New returns the schema of the type. Schemas are cached per type.
func New(t reflect.Type) (*Schema, error) {
	if s, ok := cache.Load(t); ok {
		return s.(*Schema), nil
	}

	root := Reflect(t)
	s := &Schema{
		Root:       root,
		Parameters: parameters(root),
	}
	actual, _ := cache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// String returns the indented JSON of the parameters.
func (s *Schema) String() string {
	js, _ := json.MarshalIndent(s.Parameters, "", "\t")
	return string(js)
}

// Reflect returns the JSON schema of the type.
// Structs are expanded in place, and objects allow additional properties
// unless the struct tags say otherwise.
func Reflect(t reflect.Type) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		Namer:                     definitionName,
	}
	return r.ReflectFromType(t)
}

// definitionName qualifies struct names with a hash of the package path,
// so equally named structs of different packages do not share a definition.
func definitionName(t reflect.Type) string {
	if t.Kind() != reflect.Struct {
		return t.Name()
	}
	return t.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(t.PkgPath()+"/"+t.Name()), 10)
}

const defsPrefix = "#/$defs/"

// parameters returns the root object of the schema with references
// to definitions replaced by the definitions.
func parameters(sc *jsonschema.Schema) *jsonschema.Schema {
	root := sc
	defs := map[string]*jsonschema.Schema{}
	rootName := strings.TrimPrefix(sc.Ref, defsPrefix)
	for name, def := range sc.Definitions {
		if name == rootName {
			root = def
			continue
		}
		defs[name] = def
	}

	res := &jsonschema.Schema{
		Type:       root.Type,
		Properties: root.Properties,
		Required:   root.Required,
	}
	inline(res.Properties, defs)
	return res
}

func inline(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs map[string]*jsonschema.Schema) {
	if props == nil {
		return
	}
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		if def := lookup(pair.Value, defs); def != nil {
			pair.Value = def
		}
		child := pair.Value
		inline(child.Properties, defs)
		if def := lookup(child.Items, defs); def != nil {
			child.Items = def
		}
	}
}

// lookup returns the definition of a reference, or nil.
// Unknown references are left in place.
func lookup(sc *jsonschema.Schema, defs map[string]*jsonschema.Schema) *jsonschema.Schema {
	if sc == nil || sc.Ref == "" {
		return nil
	}
	return defs[strings.TrimPrefix(sc.Ref, defsPrefix)]
}
