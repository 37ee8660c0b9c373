package outbox

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/propagation"
)

// Option определяет функцию для конфигурации Bus.
type Option func(*Bus)

// WithBusLogger устанавливает логгер шины.
func WithBusLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithPropagator задает механизм, которым контекст трассировки
// сохраняется в метаданные сообщения.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(b *Bus) {
		if p != nil {
			b.propagator = p
		}
	}
}

// WithClock подменяет источник времени создания сообщений.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}
