// Package listener содержит слушатели запроса, которые ядро вызывает до
// обработчика маршрута.
package listener

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/denormalizer"
	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/extractor"
	"github.com/x-research-team/req2cmd/request"
)

const (
	instrumentationName = "github.com/x-research-team/req2cmd/listener"
	// SpanName — имя спана одного запуска слушателя.
	SpanName = "req2cmd.extract_command"
)

// ExtractCommand строит команду объявленного для маршрута типа и
// прикрепляет ее к контексту запроса.
type ExtractCommand struct {
	extractor    extractor.Extractor
	denormalizer denormalizer.Denormalizer
	logger       *slog.Logger
	tracer       trace.Tracer
	maxBodyBytes int64
}

// Option настраивает ExtractCommand.
type Option func(*ExtractCommand)

// WithLogger устанавливает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(l *ExtractCommand) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTracerProvider устанавливает провайдер трассировки.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *ExtractCommand) {
		if tp != nil {
			l.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMaxBodyBytes ограничивает тело, если снимок запроса строит сам слушатель.
func WithMaxBodyBytes(n int64) Option {
	return func(l *ExtractCommand) {
		if n > 0 {
			l.maxBodyBytes = n
		}
	}
}

// NewExtractCommand создает слушатель.
func NewExtractCommand(ex extractor.Extractor, den denormalizer.Denormalizer, opts ...Option) *ExtractCommand {
	l := &ExtractCommand{
		extractor:    ex,
		denormalizer: den,
		logger:       slog.Default(),
		tracer:       noop.NewTracerProvider().Tracer(instrumentationName),
		maxBodyBytes: request.DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnRequest возвращает запрос с прикрепленной командой. Если для маршрута
// команда не объявлена или ее тип не поддерживается, запрос возвращается
// без изменений. Ошибка означает, что обработку запроса нужно прервать.
func (l *ExtractCommand) OnRequest(r *http.Request) (*http.Request, error) {
	ctx, span := l.tracer.Start(r.Context(), SpanName)
	defer span.End()

	d, ok := commandtype.DeclaredFrom(ctx)
	if !ok {
		span.SetAttributes(attribute.String("req2cmd.outcome", "no_command"))
		l.logger.DebugContext(ctx, "для маршрута не объявлена команда", slog.String("path", r.URL.Path))
		return r, nil
	}
	span.SetAttributes(attribute.String("req2cmd.command", d.Name()))

	snap, ok := request.SnapshotFrom(ctx)
	if !ok {
		snap, r = request.FromHTTP(r, l.maxBodyBytes)
		r = r.WithContext(request.WithSnapshot(r.Context(), snap))
	}

	if !l.extractor.Supports(d, snap) {
		span.SetAttributes(attribute.String("req2cmd.outcome", "unsupported"))
		l.logger.DebugContext(ctx, "тип команды не поддерживается экстрактором", slog.String("command", d.Name()))
		return r, nil
	}

	if _, attached := request.CommandFrom(r.Context()); attached {
		err := fmt.Errorf("%w: %s", errs.ErrCommandAlreadyAttached, d)
		return r, l.fail(span, err)
	}

	raw, err := l.extractor.Extract(d, snap)
	if err != nil {
		if !errors.Is(err, errs.ErrExtractionFailed) && !errors.Is(err, errs.ErrUnsupportedType) {
			err = fmt.Errorf("%w: %w", errs.ErrExtractionFailed, err)
		}
		return r, l.fail(span, err)
	}

	cmd, err := l.denormalizer.Denormalize(raw, d)
	if err == nil && cmd == nil {
		err = errors.New("денормализатор вернул nil")
	}
	if err != nil {
		return r, l.fail(span, errs.Denormalization(d.Name(), err))
	}

	span.SetAttributes(attribute.String("req2cmd.outcome", "attached"))
	l.logger.DebugContext(ctx, "команда прикреплена к запросу", slog.String("command", d.Name()))

	return r.WithContext(request.WithCommand(r.Context(), cmd)), nil
}

func (l *ExtractCommand) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("req2cmd.outcome", "failed"))
	return err
}
