// Package engine defines the conversational engine consumed by the session
// pool. The pool treats a trained model as an opaque serialized definition;
// the engine knows how to turn that definition into something that can answer
// questions.
package engine

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Engine materializes models from serialized definitions and produces new
// definitions from training data.
type Engine interface {
	// Materialize turns a serialized definition into a live model. May be
	// expensive; it is called inside worker startup, never on the ask path
	// of an already-resolved session.
	Materialize(ctx context.Context, definition []byte) (Model, error)

	// Train produces a serialized definition from raw training data. The
	// actual NLU training pipeline lives outside this service; Train only
	// has to yield a definition that Materialize accepts.
	Train(ctx context.Context, language string, data []byte) ([]byte, error)
}

// Model is one loaded conversational model. A model is owned by exactly one
// worker and is never shared.
type Model interface {
	// Answer computes the reply to one question.
	Answer(ctx context.Context, question string) (string, error)

	Close() error
}

// Definition is the serialized model bundle stored in the origin store and
// the snapshot cache.
type Definition struct {
	Language string          `json:"language"`
	Prompt   string          `json:"prompt"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// DecodeDefinition parses a serialized definition bundle.
func DecodeDefinition(raw []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, errors.Wrap(err, "failed to decode model definition")
	}
	if def.Language == "" {
		return nil, errors.New("model definition has no language")
	}
	return &def, nil
}

// Encode serializes the definition bundle.
func (d *Definition) Encode() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode model definition")
	}
	return raw, nil
}
