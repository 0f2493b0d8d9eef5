package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nilforge/jsonquery/pkg/types"
)

// StreamResult holds the output of evaluating expr against one document read
// from an EvalStream input.
type StreamResult struct {
	// Value is the evaluated result, or nil when Err is set.
	Value interface{}
	// Err is set either for a single failed document evaluation (the stream
	// continues afterward) or for a fatal I/O/decode error (the channel is
	// closed immediately after).
	Err error
}

const streamResultBuffer = 16

// EvalStream evaluates expr against each JSON value decoded in sequence from
// r (NDJSON / JSON-seq), sending one StreamResult per document on the
// returned channel.
//
// The channel closes once r is exhausted, a fatal I/O/decode error occurs,
// or ctx is cancelled. Callers must drain the channel or cancel ctx to avoid
// leaking the background goroutine.
func (e *Evaluator) EvalStream(ctx context.Context, expr *types.Expression, r io.Reader) (<-chan StreamResult, error) {
	if expr == nil || expr.AST() == nil {
		return nil, fmt.Errorf("invalid expression")
	}

	ch := make(chan StreamResult, streamResultBuffer)
	go e.streamLoop(ctx, expr, json.NewDecoder(r), ch)
	return ch, nil
}

// streamLoop decodes one document at a time from dec and pushes an
// evaluation result for each onto ch, closing ch when done.
func (e *Evaluator) streamLoop(ctx context.Context, expr *types.Expression, dec *json.Decoder, ch chan<- StreamResult) {
	defer close(ch)

	for {
		select {
		case <-ctx.Done():
			ch <- StreamResult{Err: ctx.Err()}
			return
		default:
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err != io.EOF {
				ch <- StreamResult{Err: err}
			}
			return
		}

		var data interface{}
		if err := json.Unmarshal(raw, &data); err != nil {
			ch <- StreamResult{Err: err}
			return
		}

		result, err := e.Eval(ctx, expr, data)
		ch <- StreamResult{Value: result, Err: err}
	}
}
