// Package tools holds the tool registry and executor used during inference.
// A tool is a plain Go function; its JSON schema is derived from the input
// struct by reflection, and incoming arguments are validated against that
// schema before the function ever runs.
package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"runtime"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Definition describes one callable tool: the name and schema sent to the
// model, plus the wrapped Go function that serves calls.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Tags        []string           `json:"tags,omitempty"`

	fn toolFunc
}

type toolFunc struct {
	value     reflect.Value
	inputType reflect.Type
	takesCtx  bool
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// NewToolFromFunc wraps a Go function as a tool. Supported signatures:
//
//	func(Input) (Result, error)
//	func(context.Context, Input) (Result, error)
//	func(context.Context) (Result, error)
//	func() (Result, error)
//
// where Input is a struct whose fields (via json tags) become the tool's
// parameter schema. An empty name is derived from the function's Go name,
// converted to snake case, so GetTime becomes get_time.
func NewToolFromFunc(name string, description string, fn interface{}) (*Definition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}

	if funcType.NumOut() == 0 || funcType.NumOut() > 2 {
		return nil, errors.New("tool function must return (result) or (result, error)")
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errType) {
		return nil, errors.New("second return value must be an error")
	}

	takesCtx, inputType, err := splitSignature(funcType)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = functionName(fn)
	}

	schema, err := schemaForInput(inputType)
	if err != nil {
		return nil, errors.Wrapf(err, "could not derive schema for tool %s", name)
	}

	return &Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		fn: toolFunc{
			value:     reflect.ValueOf(fn),
			inputType: inputType,
			takesCtx:  takesCtx,
		},
	}, nil
}

// MustNewToolFromFunc panics on a bad signature, for package level tool
// tables.
func MustNewToolFromFunc(name string, description string, fn interface{}) *Definition {
	def, err := NewToolFromFunc(name, description, fn)
	if err != nil {
		panic(err)
	}
	return def
}

func splitSignature(funcType reflect.Type) (takesCtx bool, inputType reflect.Type, err error) {
	switch funcType.NumIn() {
	case 0:
		return false, nil, nil
	case 1:
		if funcType.In(0) == ctxType {
			return true, nil, nil
		}
		return false, funcType.In(0), nil
	case 2:
		if funcType.In(0) != ctxType {
			return false, nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		return true, funcType.In(1), nil
	default:
		return false, nil, errors.Errorf("tool function takes %d parameters, at most (context.Context, Input) is supported", funcType.NumIn())
	}
}

func functionName(fn interface{}) string {
	full := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		full = full[idx+1:]
	}
	full = strings.TrimSuffix(full, "-fm")
	return strcase.ToSnake(full)
}

func schemaForInput(inputType reflect.Type) (*jsonschema.Schema, error) {
	if inputType == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}

	instance := reflect.New(inputType).Elem().Interface()
	reflector := jsonschema.Reflector{
		// expand definitions inline instead of emitting $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(instance)
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	return schema, nil
}

// Call invokes the wrapped function with JSON arguments.
func (d *Definition) Call(ctx context.Context, args []byte) (interface{}, error) {
	if !d.fn.value.IsValid() {
		return nil, errors.Errorf("tool %s has no function attached", d.Name)
	}

	in := make([]reflect.Value, 0, 2)
	if d.fn.takesCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	if d.fn.inputType != nil {
		input := reflect.New(d.fn.inputType)
		if len(args) > 0 {
			if err := json.Unmarshal(args, input.Interface()); err != nil {
				return nil, errors.Wrapf(err, "could not unmarshal arguments for tool %s", d.Name)
			}
		}
		in = append(in, input.Elem())
	}

	return extractResults(d.fn.value.Call(in))
}

func extractResults(results []reflect.Value) (interface{}, error) {
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		result := results[0].Interface()
		if errVal := results[1].Interface(); errVal != nil {
			if err, ok := errVal.(error); ok {
				return result, err
			}
			return result, errors.Errorf("unexpected error type: %T", errVal)
		}
		return result, nil
	default:
		return nil, errors.Errorf("unexpected number of return values: %d", len(results))
	}
}

// SchemaJSON renders the parameter schema, used both for provider payloads
// and for argument validation.
func (d *Definition) SchemaJSON() (json.RawMessage, error) {
	if d.Parameters == nil {
		return json.RawMessage(`{"type":"object"}`), nil
	}
	data, err := json.Marshal(d.Parameters)
	if err != nil {
		return nil, errors.Wrapf(err, "could not marshal schema for tool %s", d.Name)
	}
	return data, nil
}
