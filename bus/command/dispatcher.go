package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-reflect"
)

// IBus — минимальный контракт шины, которой можно отправить команду.
// Ему удовлетворяют как диспетчер, так и внешние реализации, например outbox.
type IBus interface {
	Dispatch(ctx context.Context, cmd any) (any, error)
	Shutdown(ctx context.Context) error
}

// IDispatcher определяет шину команд с регистрацией обработчиков по типу.
type IDispatcher interface {
	IBus
	RegisterHandler(cmdType reflect.Type, handler Handler) error
}

// dispatcherImpl представляет собой реализацию IDispatcher.
type dispatcherImpl struct {
	provider Provider
	cfg      *config
}

// NewDispatcher создает новый, готовый к использованию экземпляр диспетчера.
func NewDispatcher(opts ...Option) (IDispatcher, error) {
	cfg := &config{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.workers < 0 || cfg.queueSize < 0 {
		return nil, fmt.Errorf("некорректные параметры пула: воркеров %d, очередь %d", cfg.workers, cfg.queueSize)
	}

	var provider Provider = newLocalProvider()

	metrics, err := NewMetricsMiddleware(cfg.meterProvider)
	if err != nil {
		return nil, err
	}

	allMiddlewares := []Middleware{
		NewLoggingMiddleware(cfg.logger),
		metrics,
		NewTracingMiddleware(cfg.tracerProvider, cfg.propagator),
	}
	allMiddlewares = append(allMiddlewares, cfg.middlewares...)
	provider = applyMiddlewares(provider, allMiddlewares...)

	if cfg.workers > 0 {
		provider = newPoolProvider(provider, cfg.workers, cfg.queueSize)
	}

	return &dispatcherImpl{
		provider: provider,
		cfg:      cfg,
	}, nil
}

// RegisterHandler регистрирует нетипизированный обработчик для типа команды.
func (d *dispatcherImpl) RegisterHandler(cmdType reflect.Type, handler Handler) error {
	return d.provider.Register(cmdType, handler)
}

// Dispatch находит и выполняет обработчик для указанной команды.
func (d *dispatcherImpl) Dispatch(ctx context.Context, cmd any) (any, error) {
	return d.provider.Dispatch(ctx, cmd)
}

// Shutdown корректно завершает работу диспетчера.
func (d *dispatcherImpl) Shutdown(ctx context.Context) error {
	return d.provider.Shutdown(ctx)
}

// Register регистрирует строго типизированный обработчик команды C.
//
// Если C не является указателем, обработчик получает и команды *C:
// значение разыменовывается перед вызовом.
func Register[C any, R any](d IDispatcher, handler CommandHandler[C, R]) error {
	if handler == nil {
		return fmt.Errorf("обработчик команды не может быть nil")
	}

	cmdType := reflect.TypeOf((*C)(nil)).Elem()

	return d.RegisterHandler(cmdType, func(ctx context.Context, cmd any) (any, error) {
		typed, ok := cmd.(C)
		if !ok {
			ptr, isPtr := cmd.(*C)
			if !isPtr || ptr == nil {
				return nil, fmt.Errorf("%w: ожидался %s, получен %T", ErrCommandTypeMismatch, cmdType, cmd)
			}
			typed = *ptr
		}
		return handler(ctx, typed)
	})
}
