package req2cmd

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/x-research-team/req2cmd/bus/command"
	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/extractor"
	"github.com/x-research-team/req2cmd/params"
)

// options содержит неэкспортируемую конфигурацию сборки.
type options struct {
	logger         *slog.Logger
	buses          *command.Registry
	types          *commandtype.Registry
	mappers        []params.Registration
	codec          extractor.Codec
	validate       *validator.Validate
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option определяет функциональную опцию сборки.
type Option func(*options)

// WithLogger устанавливает логгер всех компонентов.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBusRegistry передает реестр шин. Шина по умолчанию создается в нем,
// если ее там еще нет; остальные шины регистрирует вызывающий.
func WithBusRegistry(buses *command.Registry) Option {
	return func(o *options) {
		o.buses = buses
	}
}

// WithCommandTypes передает справочник типов команд. Route добавляет в
// него объявленные типы.
func WithCommandTypes(types *commandtype.Registry) Option {
	return func(o *options) {
		o.types = types
	}
}

// WithParamMapper добавляет маппер параметров к встроенным.
func WithParamMapper(reg params.Registration) Option {
	return func(o *options) {
		o.mappers = append(o.mappers, reg)
	}
}

// WithCodec заменяет кодек, используемый экстрактором codec.
func WithCodec(codec extractor.Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithValidator заменяет валидатор структурных команд.
func WithValidator(v *validator.Validate) Option {
	return func(o *options) {
		o.validate = v
	}
}

// WithTracerProvider устанавливает провайдер трассировки для шины и слушателя.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider устанавливает провайдер метрик шины.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}
