// Package reasoning adapts the external reasoning engine into the tagged
// Question/Diagnosis result the pipeline works with.
package reasoning

import "context"

// Message is one turn in the engine's message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Engine is a reasoning backend able to complete an ordered message list
// under a fixed system prompt.
type Engine interface {
	Name() string
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}
