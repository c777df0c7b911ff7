package logging

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler 将同一条记录分发给多个目标（如滚动文件与控制台）。
// 只分发给对该级别启用的目标；单个目标写入失败不影响其他目标。
type fanoutHandler struct {
	targets []slog.Handler
}

func newMultiHandler(targets ...slog.Handler) slog.Handler {
	return &fanoutHandler{targets: targets}
}

func (h *fanoutHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, t := range h.targets {
		if t.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, t := range h.targets {
		if !t.Enabled(ctx, record.Level) {
			continue
		}
		if err := t.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(t slog.Handler) slog.Handler { return t.WithAttrs(attrs) })
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(t slog.Handler) slog.Handler { return t.WithGroup(name) })
}

func (h *fanoutHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	targets := make([]slog.Handler, len(h.targets))
	for i, t := range h.targets {
		targets[i] = fn(t)
	}
	return &fanoutHandler{targets: targets}
}
