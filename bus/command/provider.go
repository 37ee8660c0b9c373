package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-reflect"
)

// Provider определяет контракт для сменных механизмов диспетчеризации команд.
type Provider interface {
	// Dispatch отправляет команду на выполнение.
	Dispatch(ctx context.Context, cmd any) (any, error)

	// Register регистрирует обработчик для типа команды.
	Register(cmdType reflect.Type, handler Handler) error

	// Shutdown корректно завершает работу провайдера.
	Shutdown(ctx context.Context) error
}

// localProvider — это локальная, внутрипроцессная реализация провайдера команд.
type localProvider struct {
	handlers map[reflect.Type]Handler
	mu       sync.RWMutex
}

// newLocalProvider создает новый экземпляр локального провайдера.
func newLocalProvider() *localProvider {
	return &localProvider{
		handlers: make(map[reflect.Type]Handler),
	}
}

// Dispatch находит и выполняет обработчик для типа команды. Для указателя
// без собственного обработчика используется обработчик типа значения.
func (p *localProvider) Dispatch(ctx context.Context, cmd any) (any, error) {
	if cmd == nil {
		return nil, fmt.Errorf("%w: команда nil", ErrCommandTypeMismatch)
	}

	cmdType := reflect.TypeOf(cmd)

	p.mu.RLock()
	handler, ok := p.handlers[cmdType]
	if !ok && cmdType.Kind() == reflect.Ptr {
		handler, ok = p.handlers[cmdType.Elem()]
	}
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrHandlerNotFound, cmdType)
	}

	return handler(ctx, cmd)
}

// Register регистрирует обработчик для конкретного типа команды.
func (p *localProvider) Register(cmdType reflect.Type, handler Handler) error {
	if cmdType == nil || handler == nil {
		return fmt.Errorf("тип команды и обработчик обязательны")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.handlers[cmdType]; exists {
		return fmt.Errorf("%w: '%s'", ErrHandlerAlreadyRegistered, cmdType)
	}

	p.handlers[cmdType] = handler
	return nil
}

// Shutdown в данной реализации не выполняет никаких действий.
func (p *localProvider) Shutdown(ctx context.Context) error {
	return nil
}
