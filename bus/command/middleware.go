package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/x-research-team/req2cmd/bus/command"
	instrumentationVersion = "0.1.0"

	// DispatchedMetric считает отправленные команды с атрибутами command.type и outcome.
	DispatchedMetric = "req2cmd.command.dispatched"
	// DurationMetric — длительность обработки команды в секундах.
	DurationMetric = "req2cmd.command.duration"
)

// Исходы обработки команды для метрик и логов.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Middleware оборачивает провайдер шины.
type Middleware interface {
	Wrap(next Provider) Provider
}

// MiddlewareFunc позволяет использовать функцию как Middleware.
type MiddlewareFunc func(next Provider) Provider

// Wrap реализует Middleware.
func (f MiddlewareFunc) Wrap(next Provider) Provider {
	return f(next)
}

// outcomeOf отличает отказ из-за входных данных от сбоя обработчика.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrInvalidInput):
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

// NewLoggingMiddleware пишет в лог регистрацию обработчиков и результат
// каждой отправки. nil отключает логирование.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		return noopMiddleware{}
	}
	return MiddlewareFunc(func(next Provider) Provider {
		return &loggingProvider{next: next, logger: logger}
	})
}

type loggingProvider struct {
	next   Provider
	logger *slog.Logger
}

func (p *loggingProvider) Dispatch(ctx context.Context, cmd any) (any, error) {
	info := describeCommand(cmd)
	started := time.Now()

	result, err := p.next.Dispatch(ctx, cmd)

	attrs := []any{
		slog.String("command_type", info.name),
		slog.String("command_id", info.id),
		slog.Duration("duration", time.Since(started)),
	}
	switch outcomeOf(err) {
	case outcomeOK:
		p.logger.DebugContext(ctx, "команда обработана", attrs...)
	case outcomeRejected:
		p.logger.WarnContext(ctx, "команда отклонена обработчиком", append(attrs, slog.Any("error", err))...)
	default:
		p.logger.ErrorContext(ctx, "ошибка обработки команды", append(attrs, slog.Any("error", err))...)
	}
	return result, err
}

func (p *loggingProvider) Register(cmdType reflect.Type, handler Handler) error {
	err := p.next.Register(cmdType, handler)
	if err != nil {
		p.logger.Error("обработчик не зарегистрирован",
			slog.String("command_type", describeType(cmdType)),
			slog.String("handler", handlerName(handler)),
			slog.Any("error", err),
		)
		return err
	}
	p.logger.Info("обработчик зарегистрирован",
		slog.String("command_type", describeType(cmdType)),
		slog.String("handler", handlerName(handler)),
	)
	return nil
}

func (p *loggingProvider) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

// NewMetricsMiddleware считает отправки и измеряет их длительность.
// nil отключает метрики.
func NewMetricsMiddleware(mp metric.MeterProvider) (Middleware, error) {
	if mp == nil {
		return noopMiddleware{}, nil
	}

	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	dispatched, err := meter.Int64Counter(DispatchedMetric,
		metric.WithDescription("Количество отправленных в шину команд"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, fmt.Errorf("счетчик %s: %w", DispatchedMetric, err)
	}

	duration, err := meter.Float64Histogram(DurationMetric,
		metric.WithDescription("Длительность обработки команды"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("гистограмма %s: %w", DurationMetric, err)
	}

	return MiddlewareFunc(func(next Provider) Provider {
		return &metricsProvider{next: next, dispatched: dispatched, duration: duration}
	}), nil
}

type metricsProvider struct {
	next       Provider
	dispatched metric.Int64Counter
	duration   metric.Float64Histogram
}

func (p *metricsProvider) Dispatch(ctx context.Context, cmd any) (any, error) {
	started := time.Now()
	result, err := p.next.Dispatch(ctx, cmd)

	attrs := metric.WithAttributes(
		attribute.String("command.type", describeCommand(cmd).name),
		attribute.String("outcome", outcomeOf(err)),
	)
	p.dispatched.Add(ctx, 1, attrs)
	p.duration.Record(ctx, time.Since(started).Seconds(), attrs)

	return result, err
}

func (p *metricsProvider) Register(cmdType reflect.Type, handler Handler) error {
	return p.next.Register(cmdType, handler)
}

func (p *metricsProvider) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

// NewTracingMiddleware открывает спан "<тип> dispatch" на каждую отправку и
// дочерний спан "<тип> handle" вокруг обработчика. Если команда реализует
// Metadatable, родительский контекст берется из ее метаданных.
func NewTracingMiddleware(tp trace.TracerProvider, propagator propagation.TextMapPropagator) Middleware {
	if tp == nil {
		return noopMiddleware{}
	}
	if propagator == nil {
		propagator = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}
	tracer := tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))

	return MiddlewareFunc(func(next Provider) Provider {
		return &tracingProvider{next: next, tracer: tracer, propagator: propagator}
	})
}

type tracingProvider struct {
	next       Provider
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func (p *tracingProvider) Dispatch(ctx context.Context, cmd any) (any, error) {
	if md, ok := cmd.(Metadatable); ok && len(md.Metadata()) > 0 {
		ctx = p.propagator.Extract(ctx, propagation.MapCarrier(md.Metadata()))
	}

	info := describeCommand(cmd)
	ctx, span := p.tracer.Start(ctx, info.name+" dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("command.type", info.name),
			attribute.String("command.id", info.id),
		),
	)
	defer span.End()

	result, err := p.next.Dispatch(ctx, cmd)
	endSpan(span, err)
	return result, err
}

func (p *tracingProvider) Register(cmdType reflect.Type, handler Handler) error {
	spanName := describeType(cmdType) + " handle"
	return p.next.Register(cmdType, func(ctx context.Context, cmd any) (any, error) {
		ctx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.String("handler", handlerName(handler))),
		)
		defer span.End()

		result, err := handler(ctx, cmd)
		endSpan(span, err)
		return result, err
	})
}

func (p *tracingProvider) Shutdown(ctx context.Context) error {
	return p.next.Shutdown(ctx)
}

func endSpan(span trace.Span, err error) {
	span.SetAttributes(attribute.String("outcome", outcomeOf(err)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// applyMiddlewares оборачивает провайдер так, что первый middleware
// оказывается внешним.
func applyMiddlewares(provider Provider, middlewares ...Middleware) Provider {
	for i := len(middlewares) - 1; i >= 0; i-- {
		provider = middlewares[i].Wrap(provider)
	}
	return provider
}

type noopMiddleware struct{}

func (noopMiddleware) Wrap(next Provider) Provider { return next }

// commandInfo — имя типа команды и значение ее поля ID, если оно есть.
type commandInfo struct {
	name string
	id   string
}

func describeCommand(cmd any) commandInfo {
	info := commandInfo{name: "nil", id: "unknown"}
	if cmd == nil {
		return info
	}

	v := reflect.ValueOf(cmd)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			info.name = describeType(v.Type())
			return info
		}
		v = v.Elem()
	}
	info.name = describeType(v.Type())

	if v.Kind() == reflect.Struct {
		if f := v.FieldByName("ID"); f.IsValid() && f.CanInterface() {
			info.id = fmt.Sprint(f.Interface())
		}
	}
	return info
}

// describeType возвращает имя типа без указателей, для безымянных типов — его запись.
func describeType(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

func handlerName(handler any) string {
	v := reflect.ValueOf(handler)
	if v.Kind() == reflect.Func && v.Pointer() != 0 {
		if f := runtime.FuncForPC(v.Pointer()); f != nil {
			return f.Name()
		}
	}
	return fmt.Sprintf("%T", handler)
}
