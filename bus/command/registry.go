package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry - это потокобезопасный реестр именованных шин команд.
type Registry struct {
	buses  map[string]IBus
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewRegistry создает новый экземпляр реестра шин.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		buses:  make(map[string]IBus),
		logger: logger,
	}
}

// Dispatcher возвращает диспетчер с указанным именем, создавая его при
// первом обращении. Опции применяются только при создании.
func (r *Registry) Dispatcher(name string, opts ...Option) (IDispatcher, error) {
	r.mu.RLock()
	bus, exists := r.buses[name]
	r.mu.RUnlock()

	if exists {
		return asDispatcher(name, bus)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if bus, exists := r.buses[name]; exists {
		return asDispatcher(name, bus)
	}

	newDispatcher, err := NewDispatcher(opts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать новый диспетчер: %w", err)
	}
	r.buses[name] = newDispatcher

	return newDispatcher, nil
}

// Register добавляет в реестр готовую шину под именем name.
func (r *Registry) Register(name string, bus IBus) error {
	if name == "" || bus == nil {
		return fmt.Errorf("имя и шина обязательны")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.buses[name]; exists {
		return fmt.Errorf("шина команд '%s' уже зарегистрирована", name)
	}
	r.buses[name] = bus
	return nil
}

// Lookup возвращает шину по имени.
func (r *Registry) Lookup(name string) (IBus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bus, ok := r.buses[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrBusNotFound, name)
	}
	return bus, nil
}

// Names возвращает отсортированные имена зарегистрированных шин.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.buses))
	for name := range r.buses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown корректно завершает работу всех зарегистрированных шин.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errList []error
	for name, bus := range r.buses {
		if err := bus.Shutdown(ctx); err != nil {
			r.logger.ErrorContext(ctx, "ошибка при завершении работы шины",
				slog.String("bus", name),
				slog.Any("error", err),
			)
			errList = append(errList, fmt.Errorf("шина '%s': %w", name, err))
		}
	}

	return errors.Join(errList...)
}

func asDispatcher(name string, bus IBus) (IDispatcher, error) {
	d, ok := bus.(IDispatcher)
	if !ok {
		return nil, fmt.Errorf("шина '%s' уже существует и не поддерживает регистрацию обработчиков", name)
	}
	return d, nil
}
