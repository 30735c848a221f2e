package skills

import (
	"context"
	"log/slog"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Recorder captures the skill the model elected during one provider call.
// The chat agent installs a Recorder on the request context before
// executing the prompt; the skill tools record into it when invoked.
// A second invocation in the same request overwrites the first.
type Recorder struct {
	mu     sync.Mutex
	result *Result
}

type recorderKey struct{}

// WithRecorder returns a child context carrying a fresh Recorder.
func WithRecorder(ctx context.Context) (context.Context, *Recorder) {
	rec := &Recorder{}
	return context.WithValue(ctx, recorderKey{}, rec), rec
}

// FromContext returns the Recorder installed on ctx, if any.
func FromContext(ctx context.Context) (*Recorder, bool) {
	rec, ok := ctx.Value(recorderKey{}).(*Recorder)
	return rec, ok
}

// Result returns the recorded skill invocation, or nil if the model stuck
// to free text.
func (r *Recorder) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Record stores a decoded skill invocation, replacing any earlier one.
func (r *Recorder) Record(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
}

// recordInvocation validates args through Decode and records the result on
// the request's Recorder. Shared body of all three skill tools.
func recordInvocation(ctx context.Context, logger *slog.Logger, name string, input any) error {
	result, err := DecodeValue(name, input)
	if err != nil {
		logger.Warn("rejecting skill invocation", "skill", name, "error", err)
		return err
	}

	if rec, ok := FromContext(ctx); ok {
		rec.Record(result)
	} else {
		logger.Debug("skill invoked without recorder on context", "skill", name)
	}
	return nil
}

// ack is the tool output fed back to the model after a skill records.
type ack struct {
	Recorded bool `json:"recorded"`
}

// Register declares the three skills as Genkit tools so the model can
// elect to invoke one instead of answering with free text. Tool argument
// schemas are derived from the skill struct tags. Must be called once per
// Genkit instance.
func Register(g *genkit.Genkit, logger *slog.Logger) []ai.Tool {
	return []ai.Tool{
		genkit.DefineTool(g, NameSarcasmDetection,
			"Report detected sarcasm in the user's message. "+
				"Provide the sarcastic quote and a score from 0 (not sarcastic) to 9 (very sarcastic).",
			func(ctx *ai.ToolContext, input SarcasmDetection) (ack, error) {
				if err := recordInvocation(ctx, logger, NameSarcasmDetection, input); err != nil {
					return ack{}, err
				}
				return ack{Recorded: true}, nil
			}),
		genkit.DefineTool(g, NameJokeExplanation,
			"Explain a joke the user asked about. "+
				"Break it into setup, premise, and punchline, optionally with a joke type and a funny rating from 1 to 10.",
			func(ctx *ai.ToolContext, input JokeExplanation) (ack, error) {
				if err := recordInvocation(ctx, logger, NameJokeExplanation, input); err != nil {
					return ack{}, err
				}
				return ack{Recorded: true}, nil
			}),
		genkit.DefineTool(g, NameJokeDelivery,
			"Deliver a corny joke to the user as setup and punchline, "+
				"optionally with a joke type and a funny rating from 1 to 10.",
			func(ctx *ai.ToolContext, input JokeDelivery) (ack, error) {
				if err := recordInvocation(ctx, logger, NameJokeDelivery, input); err != nil {
					return ack{}, err
				}
				return ack{Recorded: true}, nil
			}),
	}
}
