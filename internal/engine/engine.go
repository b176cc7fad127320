package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenmed/lumen/internal/eventlog"
	"github.com/lumenmed/lumen/internal/model"
	"github.com/lumenmed/lumen/internal/pipeline"
	"github.com/lumenmed/lumen/internal/provider"
	"github.com/lumenmed/lumen/internal/store"
)

// DefaultRetention is how long a terminal task's log stays readable before
// eviction.
const DefaultRetention = 30 * time.Second

// Options configure an Engine.
type Options struct {
	// Retention bounds how long terminal task logs are kept for late
	// subscribers. Defaults to DefaultRetention.
	Retention time.Duration

	// Titler, when set, generates a conversation title after a successful
	// research run.
	Titler provider.Completion

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Engine orchestrates asynchronous task execution. Each started task gets
// exactly one runner goroutine, which is the sole writer of that task's event
// log; subscribers observe the task only by reading the log.
type Engine struct {
	log       eventlog.Store
	pipelines *pipeline.Registry
	messages  store.Store
	titler    provider.Completion
	logger    *slog.Logger
	retention time.Duration
	wg        sync.WaitGroup
}

// New creates an engine over the given event log store, pipeline registry and
// message store.
func New(log eventlog.Store, pipelines *pipeline.Registry, messages store.Store, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Retention: DefaultRetention,
		Logger:    slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		log:       log,
		pipelines: pipelines,
		messages:  messages,
		titler:    opts.Titler,
		logger:    opts.Logger,
		retention: opts.Retention,
	}
}

// Start creates the task's log entry and launches asynchronous execution.
// It is fire-and-forget: once the task record exists, the caller's context
// and connection no longer matter to the run.
func (e *Engine) Start(ctx context.Context, task *model.Task) error {
	if _, err := e.pipelines.Resolve(task.Mode); err != nil {
		return fmt.Errorf("resolve pipeline: %w", err)
	}

	task.Status = model.StatusPending
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if err := e.log.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	tasksStarted.Inc()
	tCopy := *task
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(&tCopy)
	}()
	return nil
}

// Wait blocks until all in-flight task goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// run drives the task lifecycle: pending → generating → completed/failed.
// It deliberately uses a background context; the initiating connection
// dropping must not cancel the run.
func (e *Engine) run(t *model.Task) {
	ctx := context.Background()
	defer e.scheduleEviction(t.ID)

	if err := e.log.SetStatus(ctx, t.ID, model.StatusGenerating); err != nil {
		e.logger.Error("failed to transition to generating", "task_id", t.ID, "error", err)
		return
	}

	p, err := e.pipelines.Resolve(t.Mode)
	if err != nil {
		e.fail(ctx, t, "", err)
		return
	}

	state := pipeline.NewState(t)
	for _, step := range p.Steps() {
		if !p.Flat() {
			e.append(ctx, t.ID, model.Event{Kind: model.KindSectionStart, Step: step.Name()})
		}

		err := step.Run(ctx, state, &stepEmitter{engine: e, ctx: ctx, taskID: t.ID, step: step.Name()})
		if err != nil {
			if pipeline.IsRecoverable(err) {
				e.logger.Warn("step degraded", "task_id", t.ID, "step", step.Name(), "error", err)
				e.append(ctx, t.ID, model.Event{Kind: model.KindError, Step: step.Name(), Content: err.Error()})
				if !p.Flat() {
					e.append(ctx, t.ID, model.Event{Kind: model.KindSectionEnd, Step: step.Name()})
				}
				continue
			}
			e.fail(ctx, t, step.Name(), err)
			return
		}

		if !p.Flat() {
			e.append(ctx, t.ID, model.Event{Kind: model.KindSectionEnd, Step: step.Name()})
		}
	}

	if err := e.persistArtifact(ctx, t, state); err != nil {
		e.fail(ctx, t, "", fmt.Errorf("persist artifact: %w", err))
		return
	}

	e.generateTitle(ctx, t, state)

	e.append(ctx, t.ID, model.Event{Kind: model.KindDone})
	if err := e.log.FinishTask(ctx, t.ID, model.StatusCompleted, ""); err != nil {
		e.logger.Error("failed to finish task", "task_id", t.ID, "error", err)
		return
	}
	tasksFinished.WithLabelValues(model.StatusCompleted).Inc()
	e.logger.Info("task completed", "task_id", t.ID, "mode", t.Mode)
}

// fail records the terminal error event and failed status. The error event is
// appended before the status flips, so a subscriber that reads a terminal
// status always finds the terminal event already in the log.
func (e *Engine) fail(ctx context.Context, t *model.Task, step string, err error) {
	e.logger.Error("task failed", "task_id", t.ID, "step", step, "error", err)
	e.append(ctx, t.ID, model.Event{Kind: model.KindError, Step: step, Content: err.Error()})
	if ferr := e.log.FinishTask(ctx, t.ID, model.StatusFailed, err.Error()); ferr != nil {
		e.logger.Error("failed to record failure", "task_id", t.ID, "error", ferr)
	}
	tasksFinished.WithLabelValues(model.StatusFailed).Inc()
}

// persistArtifact reconstructs the final body from the event log and writes
// it through the message store exactly once.
func (e *Engine) persistArtifact(ctx context.Context, t *model.Task, st *pipeline.State) error {
	events, err := e.log.ListFrom(ctx, t.ID, 0)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	content := Reconstruct(events)

	conversationID := t.ConversationID
	if conversationID == "" {
		conversationID = model.NewID()
		conv := &store.Conversation{ID: conversationID, UserID: t.UserID, CreatedAt: time.Now().UTC()}
		if err := e.messages.CreateConversation(ctx, conv); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		t.ConversationID = conversationID
	}

	msg := &store.Message{
		ID:             store.NewMessageID(),
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        content,
		Status:         store.MessageStatusComplete,
	}
	if err := e.messages.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	t.MessageID = msg.ID
	if err := e.log.SetArtifact(ctx, t.ID, conversationID, msg.ID); err != nil {
		return fmt.Errorf("record artifact: %w", err)
	}
	return nil
}

// generateTitle is a derived side effect run after persistence; its events
// are appended before the terminal event and its failures only log.
func (e *Engine) generateTitle(ctx context.Context, t *model.Task, st *pipeline.State) {
	if e.titler == nil || t.ConversationID == "" {
		return
	}
	conv, err := e.messages.GetConversation(ctx, t.ConversationID)
	if err != nil || conv.Title != "" {
		return
	}

	frags, errs := e.titler.Complete(ctx, provider.Request{
		System:   pipeline.TitleSystemPrompt,
		Messages: []provider.Message{{Role: "user", Content: st.Question}},
	})
	title, err := provider.CollectText(ctx, frags, errs)
	if err != nil || title == "" {
		e.logger.Warn("title generation failed", "task_id", t.ID, "error", err)
		return
	}
	if err := e.messages.SetConversationTitle(ctx, t.ConversationID, title); err != nil {
		e.logger.Warn("title update failed", "task_id", t.ID, "error", err)
		return
	}
	e.append(ctx, t.ID, model.Event{Kind: model.KindLog, Content: "Generated conversation title", Data: map[string]any{"title": title}})
}

// append writes one event to the task's log. Append failures are
// infrastructure errors: they are logged, not turned into task failures.
func (e *Engine) append(ctx context.Context, taskID string, ev model.Event) {
	if _, err := e.log.Append(ctx, taskID, ev); err != nil {
		e.logger.Error("failed to append event", "task_id", taskID, "kind", ev.Kind, "error", err)
		return
	}
	eventsAppended.Inc()
}

// scheduleEviction deletes the task's log after the retention window.
func (e *Engine) scheduleEviction(taskID string) {
	time.AfterFunc(e.retention, func() {
		if err := e.log.Delete(context.Background(), taskID); err != nil {
			e.logger.Error("failed to evict task", "task_id", taskID, "error", err)
		}
	})
}

// GetTask returns the task record, eventlog.ErrNotFound when unknown or
// evicted.
func (e *Engine) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return e.log.GetTask(ctx, id)
}

// Pipelines exposes the registry for the modes listing API.
func (e *Engine) Pipelines() *pipeline.Registry { return e.pipelines }

// Stats returns aggregate task statistics.
func (e *Engine) Stats(ctx context.Context) (*eventlog.TaskStats, error) {
	return e.log.Stats(ctx)
}
