// Package req2cmd собирает конвейер «HTTP-запрос → команда → шина → ответ»
// из конфигурации.
package req2cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/x-research-team/req2cmd/bus/command"
	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/config"
	"github.com/x-research-team/req2cmd/denormalizer"
	"github.com/x-research-team/req2cmd/extractor"
	"github.com/x-research-team/req2cmd/kernel"
	"github.com/x-research-team/req2cmd/listener"
	"github.com/x-research-team/req2cmd/params"
	"github.com/x-research-team/req2cmd/responder"
)

// ExtractCommandListener — имя слушателя, строящего команды.
const ExtractCommandListener = "extract_command"

// App — собранный конвейер.
type App struct {
	cfg       config.Config
	kernel    *kernel.Kernel
	buses     *command.Registry
	bus       command.IBus
	types     *commandtype.Registry
	collector *params.Collector
	extractor extractor.Extractor
	action    *responder.Action
	logger    *slog.Logger
}

// New собирает конвейер. Ошибка конфигурации (неизвестный экстрактор,
// неизвестная шина, приоритет для неизвестного маппера) возвращается
// сразу, а не при первом запросе.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.buses == nil {
		o.buses = command.NewRegistry(o.logger)
	}
	if o.types == nil {
		types, err := commandtype.NewRegistry()
		if err != nil {
			return nil, err
		}
		o.types = types
	}
	if o.validate == nil {
		o.validate = denormalizer.NewValidator()
	}

	bus, err := resolveBus(cfg, o)
	if err != nil {
		return nil, err
	}

	collector, err := newCollector(cfg, o)
	if err != nil {
		return nil, err
	}

	chain := newDenormalizer(cfg, o)

	ex, err := newExtractor(cfg, o, collector, chain)
	if err != nil {
		return nil, err
	}

	k := kernel.New(
		kernel.WithLogger(o.logger),
		kernel.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
	)
	if cfg.Listeners.Extractor.Enabled {
		k.AddListener(kernel.Registration{
			Name:     ExtractCommandListener,
			Priority: cfg.Listeners.Extractor.Priority,
			Listener: listener.NewExtractCommand(ex, chain,
				listener.WithLogger(o.logger),
				listener.WithTracerProvider(o.tracerProvider),
				listener.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
			),
		})
	}

	return &App{
		cfg:       cfg,
		kernel:    k,
		buses:     o.buses,
		bus:       bus,
		types:     o.types,
		collector: collector,
		extractor: ex,
		action: responder.NewAction(bus,
			responder.WithLogger(o.logger),
			responder.WithSuccessStatus(cfg.HTTP.SuccessStatus),
		),
		logger: o.logger,
	}, nil
}

// resolveBus создает шину по умолчанию и выбирает настроенную по имени.
func resolveBus(cfg config.Config, o *options) (command.IBus, error) {
	busOpts := []command.Option{
		command.WithLogger(o.logger),
		command.WithTracerProvider(o.tracerProvider),
		command.WithMeterProvider(o.meterProvider),
	}
	if cfg.CommandBus.Workers > 0 {
		busOpts = append(busOpts, command.WithWorkerPool(cfg.CommandBus.Workers, cfg.CommandBus.QueueSize))
	}

	if _, err := o.buses.Lookup(config.DefaultBusName); err != nil {
		if _, err := o.buses.Dispatcher(config.DefaultBusName, busOpts...); err != nil {
			return nil, fmt.Errorf("не удалось создать шину по умолчанию: %w", err)
		}
	}

	bus, err := o.buses.Lookup(cfg.CommandBus.Name)
	if err != nil {
		return nil, fmt.Errorf("command_bus.name: %w", err)
	}
	return bus, nil
}

// newCollector регистрирует встроенные и пользовательские мапперы с учетом
// переопределенных приоритетов.
func newCollector(cfg config.Config, o *options) (*params.Collector, error) {
	regs := []params.Registration{
		{Name: params.PathMapperName, Priority: params.PathMapperPriority, Mapper: params.PathParamsMapper{}},
	}
	if len(cfg.ParamMappers.Headers) > 0 {
		regs = append(regs, params.Registration{
			Name:     params.HeaderMapperName,
			Priority: params.HeaderMapperPriority,
			Mapper:   params.HeaderParamsMapper{Headers: cfg.ParamMappers.Headers},
		})
	}
	regs = append(regs, o.mappers...)

	known := make(map[string]bool, len(regs))
	for i := range regs {
		known[regs[i].Name] = true
		if p, ok := cfg.ParamMappers.Priorities[regs[i].Name]; ok {
			regs[i].Priority = p
		}
	}
	for name := range cfg.ParamMappers.Priorities {
		if !known[name] {
			return nil, fmt.Errorf("param_mappers.priorities: маппер '%s' не зарегистрирован", name)
		}
	}

	return params.NewCollector(regs, params.WithCollectorLogger(o.logger)), nil
}

// newDenormalizer строит цепочку: способность FromMapping (если включена),
// затем структурный денормализатор и готовые значения от кодека.
func newDenormalizer(cfg config.Config, o *options) denormalizer.Chain {
	chain := denormalizer.Chain{}
	if cfg.Extractor.UseCmdDenormalizer {
		chain = append(chain, denormalizer.DeserializableCommandDenormalizer{})
	}
	return append(chain,
		denormalizer.NewStructDenormalizer(o.validate),
		denormalizer.NewPassthroughDenormalizer(o.validate),
	)
}

func newExtractor(cfg config.Config, o *options, collector *params.Collector, chain denormalizer.Chain) (extractor.Extractor, error) {
	switch cfg.Extractor.ServiceID {
	case extractor.ServiceSerializer:
		return extractor.NewParamsExtractor(collector, chain), nil
	case extractor.ServiceCodec:
		codec := o.codec
		if codec == nil {
			codecOpts := []extractor.JSONCodecOption{extractor.WithKnownTypes(o.types)}
			if cfg.Extractor.DisallowUnknownFields {
				codecOpts = append(codecOpts, extractor.WithDisallowUnknownFields())
			}
			codec = extractor.NewJSONCodec(codecOpts...)
		}
		return extractor.NewCodecExtractor(codec), nil
	default:
		return nil, fmt.Errorf("extractor.service_id: неизвестный экстрактор '%s'", cfg.Extractor.ServiceID)
	}
}

// Route регистрирует маршрут, запрос которого превращается в команду типа d
// и отправляется в шину. Тип добавляется в справочник команд.
func (a *App) Route(method, pattern string, d commandtype.Descriptor) error {
	if d.IsZero() {
		return fmt.Errorf("маршрут %s %s: тип команды не задан", method, pattern)
	}
	if err := a.types.Register(d); err != nil {
		return fmt.Errorf("маршрут %s %s: %w", method, pattern, err)
	}
	a.kernel.Handle(method, pattern, d, a.action)
	return nil
}

// Handle регистрирует обычный маршрут без команды.
func (a *App) Handle(method, pattern string, handler http.Handler) {
	a.kernel.Handle(method, pattern, commandtype.Descriptor{}, handler)
}

// ServeHTTP реализует http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.kernel.ServeHTTP(w, r)
}

// Kernel возвращает HTTP-ядро.
func (a *App) Kernel() *kernel.Kernel { return a.kernel }

// Bus возвращает выбранную шину.
func (a *App) Bus() command.IBus { return a.bus }

// Buses возвращает реестр шин.
func (a *App) Buses() *command.Registry { return a.buses }

// Types возвращает справочник типов команд.
func (a *App) Types() *commandtype.Registry { return a.types }

// Collector возвращает коллектор параметров.
func (a *App) Collector() *params.Collector { return a.collector }

// Config возвращает конфигурацию, из которой собран конвейер.
func (a *App) Config() config.Config { return a.cfg }

// Shutdown завершает работу всех шин реестра.
func (a *App) Shutdown(ctx context.Context) error {
	return a.buses.Shutdown(ctx)
}
