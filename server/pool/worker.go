package pool

import (
	"context"

	"github.com/google/uuid"

	"github.com/bothub-it/bothub-nlp/plugin/engine"
	errcode "github.com/bothub-it/bothub-nlp/server/internal/errors"
)

// askRequest is one question handed to a worker together with the channel its
// answer comes back on.
type askRequest struct {
	question string
	reply    chan askResult
}

type askResult struct {
	answer string
	err    error
}

// Worker is the isolated execution unit for one session: a goroutine owning
// one loaded model, fed through a request channel. Nothing outside the worker
// touches the model.
type Worker struct {
	id       string
	model    engine.Model
	requests chan askRequest
	cancel   context.CancelFunc
	done     chan struct{}
}

// newWorker starts the worker loop for a materialized model.
func newWorker(model engine.Model) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		id:       uuid.NewString(),
		model:    model,
		requests: make(chan askRequest),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.loop(ctx)
	return w
}

// ID identifies the worker instance; it changes every time a session is
// re-materialized.
func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	defer w.model.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			answer, err := w.model.Answer(ctx, req.question)
			if err != nil {
				err = errcode.EngineFailure("model failed to answer", err)
			}
			// reply is buffered; a caller that gave up on its
			// deadline never blocks the loop.
			req.reply <- askResult{answer: answer, err: err}
		}
	}
}

// Ask submits one question and waits for the answer, the context deadline, or
// worker termination, whichever comes first.
func (w *Worker) Ask(ctx context.Context, question string) (string, error) {
	req := askRequest{question: question, reply: make(chan askResult, 1)}

	select {
	case w.requests <- req:
	case <-w.done:
		return "", errcode.EngineFailure("worker terminated", nil)
	case <-ctx.Done():
		return "", errcode.Timeout("worker did not accept the question in time")
	}

	select {
	case res := <-req.reply:
		return res.answer, res.err
	case <-w.done:
		return "", errcode.EngineFailure("worker terminated", nil)
	case <-ctx.Done():
		return "", errcode.Timeout("worker did not answer in time")
	}
}

// Terminate stops the worker abruptly. An in-flight answer is abandoned; its
// caller is released with an error rather than parked forever.
func (w *Worker) Terminate() {
	w.cancel()
}
