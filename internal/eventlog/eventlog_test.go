package eventlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenmed/lumen/internal/model"
)

// storeFactories lets every contract test run against both implementations.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		t.Helper()
		return NewMemoryStore()
	},
	"sqlite": func(t *testing.T) Store {
		t.Helper()
		s, err := NewSQLiteStore(":memory:")
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	},
}

func makeTask() *model.Task {
	return &model.Task{
		ID:        model.NewID(),
		Status:    model.StatusPending,
		Mode:      model.ModeResearch,
		Question:  "does metformin reduce cardiovascular risk in type 2 diabetes?",
		CreatedAt: time.Now().UTC(),
	}
}

func TestAppendAssignsContiguousIndices(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			task := makeTask()
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			for i := 0; i < 10; i++ {
				idx, err := s.Append(ctx, task.ID, model.Event{Kind: model.KindLog, Step: "features", Content: "x"})
				if err != nil {
					t.Fatalf("Append #%d: %v", i, err)
				}
				if idx != i {
					t.Fatalf("Append #%d returned index %d", i, idx)
				}
			}

			events, err := s.ListFrom(ctx, task.ID, 0)
			if err != nil {
				t.Fatalf("ListFrom: %v", err)
			}
			if len(events) != 10 {
				t.Fatalf("got %d events, want 10", len(events))
			}
			for i, ev := range events {
				if ev.Index != i {
					t.Errorf("event %d has index %d", i, ev.Index)
				}
			}
		})
	}
}

func TestListFromOffsetAndDataRoundTrip(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			task := makeTask()
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			for i := 0; i < 5; i++ {
				ev := model.Event{Kind: model.KindResult, Step: "search", Content: "hit"}
				if i == 3 {
					ev.Data = map[string]any{"count": float64(7)}
				}
				if _, err := s.Append(ctx, task.ID, ev); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			events, err := s.ListFrom(ctx, task.ID, 3)
			if err != nil {
				t.Fatalf("ListFrom: %v", err)
			}
			if len(events) != 2 {
				t.Fatalf("got %d events from index 3, want 2", len(events))
			}
			if events[0].Index != 3 || events[1].Index != 4 {
				t.Errorf("indices = %d,%d, want 3,4", events[0].Index, events[1].Index)
			}
			if got := events[0].Data["count"]; got != float64(7) {
				t.Errorf("data count = %v, want 7", got)
			}

			// Beyond the end: empty, not an error.
			events, err = s.ListFrom(ctx, task.ID, 99)
			if err != nil {
				t.Fatalf("ListFrom beyond end: %v", err)
			}
			if len(events) != 0 {
				t.Errorf("got %d events beyond end, want 0", len(events))
			}
		})
	}
}

func TestStatusLifecycle(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			task := makeTask()
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			if err := s.SetStatus(ctx, task.ID, model.StatusGenerating); err != nil {
				t.Fatalf("SetStatus generating: %v", err)
			}
			status, err := s.Status(ctx, task.ID)
			if err != nil || status != model.StatusGenerating {
				t.Fatalf("Status = %q, %v", status, err)
			}

			// Invalid transition (generating -> generating).
			if err := s.SetStatus(ctx, task.ID, model.StatusGenerating); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("repeated transition error = %v, want ErrInvalidTransition", err)
			}

			if err := s.FinishTask(ctx, task.ID, model.StatusFailed, "search backend unavailable"); err != nil {
				t.Fatalf("FinishTask: %v", err)
			}
			got, err := s.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("GetTask: %v", err)
			}
			if got.Status != model.StatusFailed || got.Error != "search backend unavailable" {
				t.Errorf("task after fail = %q/%q", got.Status, got.Error)
			}
			if got.FinishedAt == nil {
				t.Error("finished_at not set")
			}

			// Terminal status is absorbing.
			if err := s.FinishTask(ctx, task.ID, model.StatusCompleted, ""); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("transition out of terminal = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestUnknownTaskIsNotFound(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			if _, err := s.GetTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetTask = %v, want ErrNotFound", err)
			}
			if _, err := s.Append(ctx, "missing", model.Event{Kind: model.KindLog}); !errors.Is(err, ErrNotFound) {
				t.Errorf("Append = %v, want ErrNotFound", err)
			}
			if _, err := s.ListFrom(ctx, "missing", 0); !errors.Is(err, ErrNotFound) {
				t.Errorf("ListFrom = %v, want ErrNotFound", err)
			}
			if _, err := s.Status(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Status = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDeleteEvictsTask(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			task := makeTask()
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}
			if _, err := s.Append(ctx, task.ID, model.Event{Kind: model.KindDone}); err != nil {
				t.Fatalf("Append: %v", err)
			}

			if err := s.Delete(ctx, task.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetTask after delete = %v, want ErrNotFound", err)
			}
			if _, err := s.ListFrom(ctx, task.ID, 0); !errors.Is(err, ErrNotFound) {
				t.Errorf("ListFrom after delete = %v, want ErrNotFound", err)
			}
		})
	}
}

// TestConcurrentReadersSeePrefix verifies that readers polling during a
// write burst only ever observe a contiguous prefix of the log.
func TestConcurrentReadersSeePrefix(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			task := makeTask()
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			const total = 200
			var wg sync.WaitGroup
			stop := make(chan struct{})

			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-stop:
							return
						default:
						}
						events, err := s.ListFrom(ctx, task.ID, 0)
						if err != nil {
							t.Errorf("ListFrom: %v", err)
							return
						}
						for i, ev := range events {
							if ev.Index != i {
								t.Errorf("non-contiguous prefix: event %d has index %d", i, ev.Index)
								return
							}
						}
					}
				}()
			}

			for i := 0; i < total; i++ {
				if _, err := s.Append(ctx, task.ID, model.Event{Kind: model.KindToken, Content: "t"}); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			close(stop)
			wg.Wait()

			events, err := s.ListFrom(ctx, task.ID, 0)
			if err != nil {
				t.Fatalf("final ListFrom: %v", err)
			}
			if len(events) != total {
				t.Fatalf("got %d events, want %d", len(events), total)
			}
		})
	}
}

func TestStats(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				task := makeTask()
				if err := s.CreateTask(ctx, task); err != nil {
					t.Fatalf("CreateTask: %v", err)
				}
				if i == 0 {
					if err := s.SetStatus(ctx, task.ID, model.StatusGenerating); err != nil {
						t.Fatalf("SetStatus: %v", err)
					}
					if err := s.FinishTask(ctx, task.ID, model.StatusCompleted, ""); err != nil {
						t.Fatalf("FinishTask: %v", err)
					}
				}
				if _, err := s.Append(ctx, task.ID, model.Event{Kind: model.KindLog}); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			st, err := s.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if st.Total != 3 {
				t.Errorf("total = %d, want 3", st.Total)
			}
			if st.CountByStatus[model.StatusCompleted] != 1 || st.CountByStatus[model.StatusPending] != 2 {
				t.Errorf("count_by_status = %v", st.CountByStatus)
			}
			if st.CountByMode[model.ModeResearch] != 3 {
				t.Errorf("count_by_mode = %v", st.CountByMode)
			}
			if st.TotalEvents != 3 {
				t.Errorf("total_events = %d, want 3", st.TotalEvents)
			}
		})
	}
}

func TestSetArtifact(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()
			task := makeTask()
			if err := s.CreateTask(ctx, task); err != nil {
				t.Fatalf("CreateTask: %v", err)
			}

			if err := s.SetArtifact(ctx, task.ID, "conv-1", "msg-1"); err != nil {
				t.Fatalf("SetArtifact: %v", err)
			}
			got, err := s.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("GetTask: %v", err)
			}
			if got.ConversationID != "conv-1" || got.MessageID != "msg-1" {
				t.Errorf("artifact = (%q, %q), want (conv-1, msg-1)", got.ConversationID, got.MessageID)
			}

			if err := s.SetArtifact(ctx, "missing", "c", "m"); !errors.Is(err, ErrNotFound) {
				t.Errorf("SetArtifact unknown task = %v, want ErrNotFound", err)
			}
		})
	}
}
