package voxform

import (
	"reflect"
	"strings"

	"google.golang.org/genai"
)

// GenerateSchema generates a function-parameter schema from a Go struct
// type. It supports struct tags:
//   - json:"name"        - field name in the schema
//   - desc:"description" - field description
//   - enum:"a,b,c"       - enum values
func GenerateSchema(t reflect.Type) *genai.Schema {
	if t == nil {
		return &genai.Schema{}
	}
	return schemaFromType(t)
}

// SchemaFromStruct generates a schema from a struct type parameter.
func SchemaFromStruct[T any]() *genai.Schema {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return &genai.Schema{}
	}
	return schemaFromType(t)
}

func schemaFromType(t reflect.Type) *genai.Schema {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		return objectSchema(t)
	case reflect.Slice, reflect.Array:
		return &genai.Schema{
			Type:  genai.TypeArray,
			Items: schemaFromType(t.Elem()),
		}
	case reflect.String:
		return &genai.Schema{Type: genai.TypeString}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &genai.Schema{Type: genai.TypeInteger}
	case reflect.Float32, reflect.Float64:
		return &genai.Schema{Type: genai.TypeNumber}
	case reflect.Bool:
		return &genai.Schema{Type: genai.TypeBoolean}
	case reflect.Map:
		return &genai.Schema{Type: genai.TypeObject}
	default:
		return &genai.Schema{Type: genai.TypeString}
	}
}

func objectSchema(t reflect.Type) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		jsonName := field.Name
		omitempty := false
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				jsonName = parts[0]
			}
			for _, part := range parts[1:] {
				if part == "omitempty" {
					omitempty = true
					break
				}
			}
		}

		fieldSchema := schemaFromType(field.Type)
		if desc := field.Tag.Get("desc"); desc != "" {
			fieldSchema.Description = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			fieldSchema.Enum = parseEnumTag(enum)
		}
		schema.Properties[jsonName] = fieldSchema

		if field.Type.Kind() != reflect.Ptr && !omitempty {
			schema.Required = append(schema.Required, jsonName)
		}
	}
	return schema
}

func parseEnumTag(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
