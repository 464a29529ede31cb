package lazyconf

import (
	"context"

	"github.com/goliatone/go-lazyconf/pkg/activity"
)

type attrEventKind int

const (
	attrEventSet attrEventKind = iota
	attrEventReset
)

func (m *Mapping) emit(ctx context.Context, kind attrEventKind, key string, oldValue, newValue any) {
	if !m.cfg.emitter.Enabled() {
		return
	}
	input := activity.AttrEventInput{
		Shape:    m.shape.Name(),
		Key:      key,
		OldValue: oldValue,
		NewValue: newValue,
	}
	var event activity.Event
	switch kind {
	case attrEventSet:
		event = activity.BuildAttrSetEvent(input)
	default:
		event = activity.BuildAttrResetEvent(input)
	}
	_ = m.cfg.emitter.Emit(contextOrBackground(ctx), event)
}

func (m *Mapping) emitImported(ctx context.Context, keys []string) {
	if !m.cfg.emitter.Enabled() {
		return
	}
	event := activity.BuildStateImportedEvent(activity.AttrEventInput{
		Shape: m.shape.Name(),
		Keys:  keys,
	})
	_ = m.cfg.emitter.Emit(contextOrBackground(ctx), event)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
