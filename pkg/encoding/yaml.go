package encoding

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llmutils"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/effective-security/xlog"
	"gopkg.in/yaml.v3"
)

// CommentStyle is where field descriptions go in the YAML example.
type CommentStyle int

const (
	NoComment CommentStyle = iota
	HeadComment
	LineComment
	FootComment
)

// YAMLEncoder describes the output with a YAML example.
type YAMLEncoder struct {
	typ          reflect.Type
	commentStyle CommentStyle
}

// NewYAMLEncoder returns a YAML encoder for values of type t.
func NewYAMLEncoder(t reflect.Type) *YAMLEncoder {
	return &YAMLEncoder{typ: t}
}

// WithCommentStyle sets where the `comment` or jsonschema description
// of a field is written in the example.
func (e *YAMLEncoder) WithCommentStyle(style CommentStyle) *YAMLEncoder {
	e.commentStyle = style
	return e
}

func (e *YAMLEncoder) Marshal(v any) ([]byte, error) {
	if e.commentStyle == NoComment {
		return yaml.Marshal(v)
	}
	node, err := e.node(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func (e *YAMLEncoder) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(llmutils.BytesTrimBackticks(data), v)
}

func (e *YAMLEncoder) Validate(v any) error {
	return validateStruct(v)
}

func (e *YAMLEncoder) GetFormatInstructions() string {
	bs, err := e.Marshal(example(e.typ))
	if err != nil {
		logger.KV(xlog.DEBUG, "reason", "example", "type", e.typ, "err", err.Error())
		return ""
	}
	var b bytes.Buffer
	b.WriteString("\nRespond with YAML in the following YAML schema without comments:\n")
	b.WriteString("```yaml\n")
	b.Write(bs)
	b.WriteString("```")
	b.WriteString("\nMake sure to return an instance of the YAML, not the schema itself.\n")
	return b.String()
}

func (e *YAMLEncoder) node(v reflect.Value) (*yaml.Node, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}

	switch v.Kind() {
	case reflect.Struct:
		return e.structNode(v)
	case reflect.Map:
		n := &yaml.Node{Kind: yaml.MappingNode}
		iter := v.MapRange()
		for iter.Next() {
			val, err := e.node(iter.Value())
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, scalar(iter.Key()), val)
		}
		return n, nil
	case reflect.Slice, reflect.Array:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for i := range v.Len() {
			val, err := e.node(v.Index(i))
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, val)
		}
		return n, nil
	default:
		return scalar(v), nil
	}
}

func (e *YAMLEncoder) structNode(v reflect.Value) (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		key, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if !f.IsExported() || key == "-" {
			continue
		}
		if key == "" {
			key = strings.ToLower(f.Name)
		}

		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		if comment := fieldComment(f); comment != "" {
			switch e.commentStyle {
			case HeadComment:
				keyNode.HeadComment = comment
			case LineComment:
				keyNode.LineComment = comment
			case FootComment:
				keyNode.FootComment = comment
			}
		}
		val, err := e.node(v.Field(i))
		if err != nil {
			return nil, errors.WithMessagef(err, "field %s", f.Name)
		}
		n.Content = append(n.Content, keyNode, val)
	}
	return n, nil
}

func scalar(v reflect.Value) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch v.Kind() {
	case reflect.String:
		n.Value = v.String()
	case reflect.Bool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n.Tag, n.Value = "!!int", strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n.Tag, n.Value = "!!int", strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		n.Tag, n.Value = "!!float", strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		n.Value = fmt.Sprint(v.Interface())
	}
	return n
}

// fieldComment returns the `comment` tag, or the description of the jsonschema tag.
func fieldComment(f reflect.StructField) string {
	if c := f.Tag.Get("comment"); c != "" {
		return c
	}
	for _, kv := range strings.Split(f.Tag.Get("jsonschema"), ",") {
		if d, ok := strings.CutPrefix(kv, "description="); ok {
			return strings.TrimSpace(d)
		}
	}
	return ""
}

// example returns a value of type t filled by its Faker or by the `fake` tags.
func example(t reflect.Type) any {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ptr := reflect.New(t)
	if f, ok := ptr.Elem().Interface().(schema.Faker); ok {
		return f.Fake()
	}
	if f, ok := ptr.Interface().(schema.Faker); ok {
		return f.Fake()
	}
	if err := gofakeit.Struct(ptr.Interface()); err != nil {
		logger.KV(xlog.DEBUG, "reason", "fake", "type", t, "err", err.Error())
	}
	return ptr.Interface()
}
