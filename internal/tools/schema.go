package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	invschema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Range bounds a numeric parameter. Out-of-range values are clamped, not rejected.
type Range struct {
	Min float64
	Max float64
}

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Range       *Range
}

// Schema is the declared input shape of a capability, in declaration order.
type Schema struct {
	Params []Param
}

// JSONSchema renders the schema as a JSON Schema object, preserving parameter order.
func (s Schema) JSONSchema() *invschema.Schema {
	props := invschema.NewProperties()
	required := []string{}

	for _, p := range s.Params {
		prop := &invschema.Schema{
			Type:        string(p.Type),
			Description: p.Description,
			Default:     p.Default,
		}
		if p.Range != nil {
			prop.Minimum = formatNumber(p.Range.Min)
			prop.Maximum = formatNumber(p.Range.Max)
		}
		props.Set(p.Name, prop)

		if p.Required {
			required = append(required, p.Name)
		}
	}

	return &invschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.JSONSchema())
}

type compiledSchema struct {
	params    []Param
	defaults  map[string]any
	validator *jsonschema.Schema
}

func compileSchema(name string, s Schema) (*compiledSchema, error) {
	seen := make(map[string]bool, len(s.Params))
	defaults := make(map[string]any)

	for _, p := range s.Params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("parameter '%s' declared twice", p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		default:
			return nil, fmt.Errorf("parameter '%s' has unsupported type %q", p.Name, p.Type)
		}

		if p.Range != nil {
			if p.Type != TypeInteger && p.Type != TypeNumber {
				return nil, fmt.Errorf("parameter '%s' declares a range but is %s", p.Name, p.Type)
			}
			if p.Range.Min > p.Range.Max {
				return nil, fmt.Errorf("parameter '%s' has min %v above max %v", p.Name, p.Range.Min, p.Range.Max)
			}
		}

		if p.Default != nil {
			v, err := normalizeValue(p.Default)
			if err != nil {
				return nil, fmt.Errorf("parameter '%s' default: %w", p.Name, err)
			}
			if !p.accepts(v) {
				return nil, fmt.Errorf("parameter '%s' default %v is not a %s", p.Name, p.Default, p.Type)
			}
			defaults[p.Name] = v
		}
	}

	raw, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	location := "mem://capabilities/" + url.PathEscape(name) + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(location, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	validator, err := compiler.Compile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &compiledSchema{
		params:    s.Params,
		defaults:  defaults,
		validator: validator,
	}, nil
}

// prepare fills declared defaults, clamps bounded numbers and type-checks the result.
// It returns the effective arguments as JSON, ready for the handler to decode.
func (cs *compiledSchema) prepare(args map[string]any) (json.RawMessage, error) {
	for _, p := range cs.params {
		v, present := args[p.Name]
		if !present || v == nil {
			if d, ok := cs.defaults[p.Name]; ok {
				args[p.Name] = d
			} else if present {
				delete(args, p.Name)
			}
			continue
		}

		if p.Range != nil {
			args[p.Name] = clamp(v, *p.Range)
		}
	}

	if err := cs.validator.Validate(args); err != nil {
		return nil, describeValidation(err)
	}

	// Integers spelled 50.0 or 1e2 go to the handler as 50 and 100.
	for _, p := range cs.params {
		n, ok := args[p.Name].(json.Number)
		if !ok {
			continue
		}

		var err error
		switch p.Type {
		case TypeInteger:
			args[p.Name], err = canonicalInteger(n)
		case TypeNumber:
			args[p.Name], err = canonicalNumber(n)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
	}

	return json.Marshal(args)
}

func canonicalInteger(n json.Number) (json.Number, error) {
	f, err := n.Float64()
	if err != nil || math.Abs(f) >= math.MaxInt64 {
		return n, fmt.Errorf("%s is out of range for an integer", n)
	}

	r, ok := new(big.Rat).SetString(n.String())
	if !ok || !r.IsInt() || !r.Num().IsInt64() {
		return n, fmt.Errorf("%s is not an integer", n)
	}
	return json.Number(strconv.FormatInt(r.Num().Int64(), 10)), nil
}

func canonicalNumber(n json.Number) (json.Number, error) {
	f, err := n.Float64()
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, strconv.ErrRange) && !math.IsInf(f, 0):
		return formatNumber(f), nil
	}
	return n, fmt.Errorf("%s is out of range for a number", n)
}

func (p Param) accepts(v any) bool {
	switch p.Type {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		n, ok := v.(json.Number)
		if !ok {
			return false
		}
		_, err := n.Float64()
		return err == nil
	case TypeInteger:
		n, ok := v.(json.Number)
		if !ok {
			return false
		}
		_, err := n.Int64()
		return err == nil
	}
	return false
}

func clamp(v any, r Range) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}

	// Overflow parses as ±Inf and underflow as ±0, both with ErrRange;
	// either still has a side to clamp to.
	f, err := n.Float64()
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return v
	}

	switch {
	case f < r.Min:
		return formatNumber(r.Min)
	case f > r.Max:
		return formatNumber(r.Max)
	case err != nil:
		return formatNumber(f)
	}
	return v
}

func formatNumber(f float64) json.Number {
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
}

// decodeArguments parses raw call arguments. Numbers stay json.Number so that
// integers survive the round trip; an empty or null payload is an empty map.
func decodeArguments(raw []byte) (map[string]any, error) {
	args := make(map[string]any)

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return args, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args, nil
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func describeValidation(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}

	var msgs []string
	collectCauses(ve, &msgs)
	if len(msgs) == 0 {
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}

func collectCauses(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		if loc == "" {
			*out = append(*out, ve.Message)
		} else {
			*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		}
		return
	}

	for _, cause := range ve.Causes {
		collectCauses(cause, out)
	}
}
