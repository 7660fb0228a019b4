package provider

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into an inline JSON schema where every object property is required and
// no extra properties are allowed. Fields tagged omitempty stay optional.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	m, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	closeObjects(m)
	return m
}

// SchemaJSON is GenerateSchema rendered for embedding in a prompt.
func SchemaJSON[T any]() string {
	b, err := json.MarshalIndent(GenerateSchema[T](), "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	itemsKey                = "items"
)

func closeObjects(schema map[string]any) {
	if t, ok := schema[typeKey].(string); ok && t == "object" {
		if _, ok := schema[additionalPropertiesKey].(map[string]any); !ok {
			schema[additionalPropertiesKey] = false
		}
	}
	if properties, ok := schema[propertiesKey].(map[string]any); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]any); ok {
				closeObjects(propMap)
			}
		}
	}
	if items, ok := schema[itemsKey].(map[string]any); ok {
		closeObjects(items)
	}
	if additional, ok := schema[additionalPropertiesKey].(map[string]any); ok {
		closeObjects(additional)
	}
}
