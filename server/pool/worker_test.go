package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errcode "github.com/bothub-it/bothub-nlp/server/internal/errors"
)

func TestWorkerAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("answers questions in order", func(t *testing.T) {
		w := newWorker(fixedModel{answer: "hi"})
		defer w.Terminate()

		for i := 0; i < 3; i++ {
			answer, err := w.Ask(ctx, "hello")
			require.NoError(t, err)
			require.Equal(t, "hi", answer)
		}
	})

	t.Run("terminate releases a blocked caller", func(t *testing.T) {
		w := newWorker(blockingModel{})

		errCh := make(chan error, 1)
		go func() {
			_, err := w.Ask(ctx, "hello")
			errCh <- err
		}()

		time.Sleep(20 * time.Millisecond)
		w.Terminate()

		select {
		case err := <-errCh:
			require.Error(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("caller stayed parked after worker termination")
		}
	})

	t.Run("ask on terminated worker fails fast", func(t *testing.T) {
		w := newWorker(fixedModel{answer: "hi"})
		w.Terminate()
		<-w.done

		_, err := w.Ask(ctx, "hello")
		require.True(t, errcode.IsCode(err, errcode.ErrCodeEngineFailure))
	})

	t.Run("deadline produces timeout", func(t *testing.T) {
		w := newWorker(blockingModel{})
		defer w.Terminate()

		deadlineCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		_, err := w.Ask(deadlineCtx, "hello")
		require.True(t, errcode.IsCode(err, errcode.ErrCodeTimeout))
	})

	t.Run("worker ids are distinct", func(t *testing.T) {
		a := newWorker(fixedModel{answer: "x"})
		b := newWorker(fixedModel{answer: "x"})
		defer a.Terminate()
		defer b.Terminate()
		require.NotEqual(t, a.ID(), b.ID())
	})
}

type fixedModel struct {
	answer string
}

func (m fixedModel) Answer(_ context.Context, _ string) (string, error) {
	return m.answer, nil
}

func (fixedModel) Close() error { return nil }
