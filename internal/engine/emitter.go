package engine

import (
	"context"

	"github.com/lumenmed/lumen/internal/model"
)

// stepEmitter binds pipeline emissions to one task and step, routing them
// through the engine's single log writer.
type stepEmitter struct {
	engine *Engine
	ctx    context.Context
	taskID string
	step   string
}

func (em *stepEmitter) Log(msg string) {
	em.engine.append(em.ctx, em.taskID, model.Event{Kind: model.KindLog, Step: em.step, Content: msg})
}

func (em *stepEmitter) Result(content string, data map[string]any) {
	em.engine.append(em.ctx, em.taskID, model.Event{Kind: model.KindResult, Step: em.step, Content: content, Data: data})
}

func (em *stepEmitter) Token(fragment string) {
	em.engine.append(em.ctx, em.taskID, model.Event{Kind: model.KindToken, Step: em.step, Content: fragment})
}
