package skills

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schemas returns the JSON Schema for each skill's argument shape, keyed
// by skill name. Served on the API for client-side discovery; derived from
// the same structs the tools and validators use, so it cannot drift.
func Schemas() (map[string]*jsonschema.Schema, error) {
	sarcasm, err := jsonschema.For[SarcasmDetection](nil)
	if err != nil {
		return nil, fmt.Errorf("sarcasm detection schema: %w", err)
	}
	explanation, err := jsonschema.For[JokeExplanation](nil)
	if err != nil {
		return nil, fmt.Errorf("joke explanation schema: %w", err)
	}
	delivery, err := jsonschema.For[JokeDelivery](nil)
	if err != nil {
		return nil, fmt.Errorf("joke delivery schema: %w", err)
	}

	return map[string]*jsonschema.Schema{
		NameSarcasmDetection: sarcasm,
		NameJokeExplanation:  explanation,
		NameJokeDelivery:     delivery,
	}, nil
}
