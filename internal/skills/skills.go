// Package skills defines the structured response types the model may emit
// instead of free text: sarcasm detection, joke explanation, and joke
// delivery. Each skill has a typed argument schema with required fields and
// inclusive numeric range constraints; out-of-range values are rejected,
// never clamped.
//
// The package owns the provider boundary for skill payloads: Decode turns a
// raw (name, arguments) pair from the model into a validated Result or a
// precise error (ErrUnknownSkill, ErrMalformedArguments, *ValidationError).
package skills

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Skill names as declared to the model. These match the callable targets
// attached to every provider call.
const (
	NameSarcasmDetection = "SarcasmDetection"
	NameJokeExplanation  = "JokeExplanation"
	NameJokeDelivery     = "JokeDelivery"
)

// Score and rating bounds, inclusive.
const (
	MinSarcasmScore = 0
	MaxSarcasmScore = 9
	MinFunnyRating  = 1
	MaxFunnyRating  = 10
)

// ErrUnknownSkill indicates the model invoked a skill name that was never
// declared.
var ErrUnknownSkill = errors.New("unknown skill")

// ErrMalformedArguments indicates the skill argument payload was not
// parseable as the expected structured format. Decode failures wrap this
// sentinel; check with errors.Is().
var ErrMalformedArguments = errors.New("malformed skill arguments")

// ValidationError reports a skill argument that violates its schema,
// naming the specific field and constraint.
type ValidationError struct {
	Skill      string // skill name, e.g. "SarcasmDetection"
	Field      string // JSON field name, e.g. "score"
	Constraint string // human-readable constraint, e.g. "must be between 0 and 9"
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q %s", e.Skill, e.Field, e.Constraint)
}

// SarcasmDetection reports a detected sarcastic quote with an intensity
// score.
type SarcasmDetection struct {
	Quote string `json:"quote" jsonschema_description:"Detected sarcastic text, quoted from the user."`
	Score int    `json:"score" jsonschema_description:"Score between 0 and 9, where 0 is not sarcastic and 9 is very sarcastic."`
}

// Validate checks required fields and range constraints.
func (d SarcasmDetection) Validate() error {
	if d.Quote == "" {
		return &ValidationError{Skill: NameSarcasmDetection, Field: "quote", Constraint: "is required"}
	}
	if d.Score < MinSarcasmScore || d.Score > MaxSarcasmScore {
		return &ValidationError{
			Skill: NameSarcasmDetection, Field: "score",
			Constraint: fmt.Sprintf("must be between %d and %d", MinSarcasmScore, MaxSarcasmScore),
		}
	}
	return nil
}

// JokeExplanation breaks a joke down into its mechanical parts.
type JokeExplanation struct {
	Setup       string `json:"setup" jsonschema_description:"The initial part of the joke that sets the context."`
	Premise     string `json:"premise" jsonschema_description:"The core idea or concept upon which the joke is built."`
	Punchline   string `json:"punchline" jsonschema_description:"The punchline of the joke, delivering the humor."`
	JokeType    string `json:"joke_type,omitempty" jsonschema_description:"Optional: the category of joke, e.g. pun, knock-knock, observational."`
	FunnyRating int    `json:"funny_rating,omitempty" jsonschema_description:"Optional: how funny the joke is, from 1 to 10."`
}

// Validate checks required fields and range constraints. A zero
// FunnyRating means the optional field was omitted.
func (x JokeExplanation) Validate() error {
	for field, value := range map[string]string{"setup": x.Setup, "premise": x.Premise, "punchline": x.Punchline} {
		if value == "" {
			return &ValidationError{Skill: NameJokeExplanation, Field: field, Constraint: "is required"}
		}
	}
	if err := validateFunnyRating(NameJokeExplanation, x.FunnyRating); err != nil {
		return err
	}
	return nil
}

// JokeDelivery is a corny joke, ready to tell.
type JokeDelivery struct {
	Setup       string `json:"setup" jsonschema_description:"The initial part of the joke that sets the context."`
	Punchline   string `json:"punchline" jsonschema_description:"The punchline of the joke, delivering the humor."`
	JokeType    string `json:"joke_type,omitempty" jsonschema_description:"Optional: the category of joke, e.g. pun, knock-knock, observational."`
	FunnyRating int    `json:"funny_rating,omitempty" jsonschema_description:"Optional: how funny the joke is, from 1 to 10."`
}

// Validate checks required fields and range constraints.
func (d JokeDelivery) Validate() error {
	if d.Setup == "" {
		return &ValidationError{Skill: NameJokeDelivery, Field: "setup", Constraint: "is required"}
	}
	if d.Punchline == "" {
		return &ValidationError{Skill: NameJokeDelivery, Field: "punchline", Constraint: "is required"}
	}
	if err := validateFunnyRating(NameJokeDelivery, d.FunnyRating); err != nil {
		return err
	}
	return nil
}

// validateFunnyRating checks the shared optional rating field. Zero means
// omitted and is allowed.
func validateFunnyRating(skill string, rating int) error {
	if rating == 0 {
		return nil
	}
	if rating < MinFunnyRating || rating > MaxFunnyRating {
		return &ValidationError{
			Skill: skill, Field: "funny_rating",
			Constraint: fmt.Sprintf("must be between %d and %d", MinFunnyRating, MaxFunnyRating),
		}
	}
	return nil
}

// Result is the tagged union over the three skills. Exactly one payload
// pointer is non-nil, matching Name.
type Result struct {
	Name        string            `json:"skill"`
	Sarcasm     *SarcasmDetection `json:"sarcasm,omitempty"`
	Explanation *JokeExplanation  `json:"explanation,omitempty"`
	Delivery    *JokeDelivery     `json:"delivery,omitempty"`
}

// Payload returns the populated variant.
func (r *Result) Payload() any {
	switch {
	case r.Sarcasm != nil:
		return *r.Sarcasm
	case r.Explanation != nil:
		return *r.Explanation
	case r.Delivery != nil:
		return *r.Delivery
	}
	return nil
}

// JSON returns the canonical JSON encoding of the result payload. This is
// what gets recorded as the assistant turn in session history when the
// model answers with a skill instead of text.
func (r *Result) JSON() string {
	data, err := json.Marshal(r.Payload())
	if err != nil {
		return "" // payload types contain only marshalable fields
	}
	return string(data)
}
