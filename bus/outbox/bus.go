// Package outbox реализует паттерн Transactional Outbox для шины команд:
// команда сохраняется в хранилище, а выполняется позже ретранслятором.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"github.com/x-research-team/req2cmd/commandtype"
)

// Bus — шина команд, которая вместо выполнения записывает команду в Storage.
// Удовлетворяет command.IBus и регистрируется в реестре шин под своим именем.
type Bus struct {
	storage    Storage
	types      *commandtype.Registry
	propagator propagation.TextMapPropagator
	logger     *slog.Logger
	now        func() time.Time
}

// NewBus создает outbox-шину. Справочник types задает имена, под которыми
// команды сохраняются и по которым ретранслятор восстанавливает их тип.
func NewBus(storage Storage, types *commandtype.Registry, opts ...Option) (*Bus, error) {
	if storage == nil {
		return nil, fmt.Errorf("хранилище outbox обязательно")
	}
	if types == nil {
		return nil, fmt.Errorf("справочник типов команд обязателен")
	}

	b := &Bus{
		storage:    storage,
		types:      types,
		propagator: propagation.TraceContext{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Dispatch сохраняет команду и возвращает Receipt.
func (b *Bus) Dispatch(ctx context.Context, cmd any) (any, error) {
	name, ok := b.types.NameOf(commandtype.ForValue(cmd))
	if !ok {
		return nil, fmt.Errorf("тип команды %T не зарегистрирован в справочнике", cmd)
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("не удалось сериализовать команду '%s': %w", name, err)
	}

	metadata := make(map[string]string)
	b.propagator.Inject(ctx, propagation.MapCarrier(metadata))

	msg := &Message{
		ID:          uuid.New(),
		CommandType: name,
		Payload:     payload,
		Metadata:    metadata,
		Status:      StatusPending,
		CreatedAt:   b.now().UTC(),
	}

	if err := b.storage.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("не удалось сохранить команду '%s' в outbox: %w", name, err)
	}

	b.logger.DebugContext(ctx, "команда сохранена в outbox",
		slog.String("command_type", name),
		slog.String("message_id", msg.ID.String()),
	)

	return Receipt{ID: msg.ID, CommandType: name, Status: msg.Status}, nil
}

// Shutdown в данной реализации не выполняет никаких действий.
func (b *Bus) Shutdown(ctx context.Context) error {
	return nil
}
