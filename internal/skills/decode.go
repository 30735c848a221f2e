package skills

import (
	"encoding/json"
	"fmt"
)

// Wire shapes for decoding. Pointer fields distinguish an absent required
// field from a present zero value (score 0 is valid sarcasm).
type sarcasmWire struct {
	Quote *string `json:"quote"`
	Score *int    `json:"score"`
}

type explanationWire struct {
	Setup       *string `json:"setup"`
	Premise     *string `json:"premise"`
	Punchline   *string `json:"punchline"`
	JokeType    *string `json:"joke_type"`
	FunnyRating *int    `json:"funny_rating"`
}

type deliveryWire struct {
	Setup       *string `json:"setup"`
	Punchline   *string `json:"punchline"`
	JokeType    *string `json:"joke_type"`
	FunnyRating *int    `json:"funny_rating"`
}

// Decode turns a raw skill invocation from the provider into a validated
// Result. It is the single boundary through which model-chosen structured
// output enters the system.
//
// Errors:
//   - ErrUnknownSkill: name is not one of the declared skills.
//   - ErrMalformedArguments (wrapped): raw is not parseable as the skill's
//     argument shape.
//   - *ValidationError: a field is missing or violates its range constraint.
func Decode(name string, raw json.RawMessage) (*Result, error) {
	switch name {
	case NameSarcasmDetection:
		return decodeSarcasm(raw)
	case NameJokeExplanation:
		return decodeExplanation(raw)
	case NameJokeDelivery:
		return decodeDelivery(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSkill, name)
	}
}

func decodeSarcasm(raw json.RawMessage) (*Result, error) {
	var wire sarcasmWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if wire.Quote == nil {
		return nil, &ValidationError{Skill: NameSarcasmDetection, Field: "quote", Constraint: "is required"}
	}
	if wire.Score == nil {
		return nil, &ValidationError{Skill: NameSarcasmDetection, Field: "score", Constraint: "is required"}
	}

	detection := SarcasmDetection{Quote: *wire.Quote, Score: *wire.Score}
	if err := detection.Validate(); err != nil {
		return nil, err
	}
	return &Result{Name: NameSarcasmDetection, Sarcasm: &detection}, nil
}

func decodeExplanation(raw json.RawMessage) (*Result, error) {
	var wire explanationWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	for field, value := range map[string]*string{"setup": wire.Setup, "premise": wire.Premise, "punchline": wire.Punchline} {
		if value == nil {
			return nil, &ValidationError{Skill: NameJokeExplanation, Field: field, Constraint: "is required"}
		}
	}

	explanation := JokeExplanation{
		Setup:     *wire.Setup,
		Premise:   *wire.Premise,
		Punchline: *wire.Punchline,
	}
	if wire.JokeType != nil {
		explanation.JokeType = *wire.JokeType
	}
	if wire.FunnyRating != nil {
		explanation.FunnyRating = *wire.FunnyRating
	}
	if err := explanation.Validate(); err != nil {
		return nil, err
	}
	return &Result{Name: NameJokeExplanation, Explanation: &explanation}, nil
}

func decodeDelivery(raw json.RawMessage) (*Result, error) {
	var wire deliveryWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if wire.Setup == nil {
		return nil, &ValidationError{Skill: NameJokeDelivery, Field: "setup", Constraint: "is required"}
	}
	if wire.Punchline == nil {
		return nil, &ValidationError{Skill: NameJokeDelivery, Field: "punchline", Constraint: "is required"}
	}

	delivery := JokeDelivery{Setup: *wire.Setup, Punchline: *wire.Punchline}
	if wire.JokeType != nil {
		delivery.JokeType = *wire.JokeType
	}
	if wire.FunnyRating != nil {
		delivery.FunnyRating = *wire.FunnyRating
	}
	if err := delivery.Validate(); err != nil {
		return nil, err
	}
	return &Result{Name: NameJokeDelivery, Delivery: &delivery}, nil
}

// DecodeValue is Decode for argument payloads that have already been
// unmarshaled into Go values (Genkit delivers tool request inputs as any).
func DecodeValue(name string, input any) (*Result, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	return Decode(name, raw)
}
