package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/x-research-team/req2cmd/bus/command"
	"github.com/x-research-team/req2cmd/commandtype"
)

// RetransmitterOption определяет функцию для конфигурации Retransmitter.
type RetransmitterOption func(*Retransmitter)

// WithInterval устанавливает интервал опроса хранилища.
func WithInterval(interval time.Duration) RetransmitterOption {
	return func(r *Retransmitter) {
		r.interval = interval
	}
}

// WithLimit устанавливает максимальное количество сообщений, извлекаемых за один раз.
func WithLimit(limit int) RetransmitterOption {
	return func(r *Retransmitter) {
		r.limit = limit
	}
}

// WithLogger устанавливает логгер.
func WithLogger(logger *slog.Logger) RetransmitterOption {
	return func(r *Retransmitter) {
		r.logger = logger
	}
}

// WithRetransmitterPropagator задает механизм восстановления контекста
// трассировки из метаданных сообщения.
func WithRetransmitterPropagator(p propagation.TextMapPropagator) RetransmitterOption {
	return func(r *Retransmitter) {
		r.propagator = p
	}
}

// Retransmitter - это фоновый процесс, который извлекает сохраненные команды
// и выполняет их через настоящую шину.
type Retransmitter struct {
	storage    Storage
	types      *commandtype.Registry
	actualBus  command.IBus
	propagator propagation.TextMapPropagator
	interval   time.Duration
	limit      int
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetransmitter создает новый экземпляр Retransmitter.
func NewRetransmitter(storage Storage, types *commandtype.Registry, actualBus command.IBus, opts ...RetransmitterOption) *Retransmitter {
	r := &Retransmitter{
		storage:    storage,
		types:      types,
		actualBus:  actualBus,
		propagator: propagation.TraceContext{},
		interval:   5 * time.Second,
		limit:      100,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start запускает фоновый процесс. Повторный вызов до Stop ничего не делает.
func (r *Retransmitter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(r.interval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()

		r.logger.Info("Retransmitter запущен")
		for {
			select {
			case <-ticker.C:
				if _, err := r.ProcessBatch(ctx); err != nil {
					r.logger.Error("Ошибка при обработке пакета", slog.Any("error", err))
				}
			case <-ctx.Done():
				r.logger.Info("Retransmitter остановлен")
				return
			}
		}
	}()
}

// ProcessBatch выполняет один цикл выборки и отправки сообщений и возвращает
// количество успешно выполненных команд. Сообщения, которые не удалось
// восстановить или выполнить, остаются в статусе PENDING.
func (r *Retransmitter) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := r.storage.Fetch(ctx, r.limit)
	if err != nil {
		return 0, err
	}

	if len(messages) == 0 {
		return 0, nil
	}

	r.logger.Info("Извлечено сообщений для ретрансляции", slog.Int("count", len(messages)))

	processedIDs := make([]uuid.UUID, 0, len(messages))
	for _, msg := range messages {
		cmd, err := r.decode(msg)
		if err != nil {
			r.logger.Error("Ошибка десериализации сообщения",
				slog.String("message_id", msg.ID.String()),
				slog.Any("error", err),
			)
			continue
		}

		msgCtx := ctx
		if len(msg.Metadata) > 0 {
			msgCtx = r.propagator.Extract(ctx, propagation.MapCarrier(msg.Metadata))
		}

		if _, err := r.actualBus.Dispatch(msgCtx, cmd); err != nil {
			r.logger.Error("Ошибка выполнения команды",
				slog.String("message_id", msg.ID.String()),
				slog.String("command_type", msg.CommandType),
				slog.Any("error", err),
			)
			continue
		}

		processedIDs = append(processedIDs, msg.ID)
	}

	if len(processedIDs) > 0 {
		if err := r.storage.MarkProcessed(ctx, processedIDs...); err != nil {
			return 0, err
		}
		r.logger.Info("Успешно обработано и помечено сообщений", slog.Int("count", len(processedIDs)))
	}

	return len(processedIDs), nil
}

// decode восстанавливает команду по имени типа. Результат — указатель на
// экземпляр типа.
func (r *Retransmitter) decode(msg *Message) (any, error) {
	d, ok := r.types.Lookup(msg.CommandType)
	if !ok {
		return nil, fmt.Errorf("неизвестный тип команды '%s'", msg.CommandType)
	}

	target := d.New()
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return nil, fmt.Errorf("не удалось разобрать команду '%s': %w", msg.CommandType, err)
	}
	return target, nil
}

// Stop останавливает фоновый процесс и ждет завершения текущего пакета.
func (r *Retransmitter) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
