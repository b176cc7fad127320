package engine

import (
	"context"
	"time"

	"github.com/lumenmed/lumen/internal/model"
)

const (
	pollMin      = 25 * time.Millisecond
	pollMax      = 200 * time.Millisecond
	subscribeBuf = 64
)

// Subscribe streams a task's events starting at the given index. The events
// channel is closed after the terminal event; the errors channel carries at
// most one error (eventlog.ErrNotFound when the task is unknown or evicted,
// or ctx.Err on cancellation). Multiple subscribers at the same offset
// observe identical sequences; the subscriber never writes to the log.
func (e *Engine) Subscribe(ctx context.Context, taskID string, from int) (<-chan model.Event, <-chan error) {
	events := make(chan model.Event, subscribeBuf)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		next := from
		delay := pollMin
		for {
			// Status is read before the events so that a terminal status
			// guarantees the listing below already contains the terminal
			// event.
			status, err := e.log.Status(ctx, taskID)
			if err != nil {
				errs <- err
				return
			}

			batch, err := e.log.ListFrom(ctx, taskID, next)
			if err != nil {
				errs <- err
				return
			}
			for _, ev := range batch {
				select {
				case events <- ev:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
				next = ev.Index + 1
			}

			if model.TerminalStatus(status) {
				// The listing above is the complete log, so its last entry
				// is the terminal event. If an append failure left the log
				// without one, synthesize it so the stream still terminates
				// cleanly.
				if len(batch) > 0 && !batch[len(batch)-1].Terminal() {
					ev := model.Event{Index: next, Kind: model.KindDone, CreatedAt: time.Now().UTC()}
					if status == model.StatusFailed {
						ev.Kind = model.KindError
					}
					select {
					case events <- ev:
					case <-ctx.Done():
						errs <- ctx.Err()
					}
				}
				return
			}

			if len(batch) > 0 {
				delay = pollMin
			} else if delay < pollMax {
				delay *= 2
				if delay > pollMax {
					delay = pollMax
				}
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return events, errs
}
