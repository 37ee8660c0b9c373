// Package command реализует шину команд: обработчики регистрируются по
// Go-типу команды, а отправка выбирает обработчик по типу переданного
// значения. Так шина может принимать команды, тип которых стал известен
// только во время обработки HTTP-запроса.
package command

import (
	"context"
	"errors"
)

var (
	// ErrHandlerNotFound возвращается, если для типа команды нет обработчика.
	ErrHandlerNotFound = errors.New("обработчик для команды не найден")
	// ErrHandlerAlreadyRegistered возвращается при повторной регистрации.
	ErrHandlerAlreadyRegistered = errors.New("обработчик для команды уже зарегистрирован")
	// ErrCommandTypeMismatch возвращается, если значение не подходит обработчику.
	ErrCommandTypeMismatch = errors.New("тип команды не соответствует обработчику")
	// ErrInvalidInput оборачивается обработчиками, отклонившими данные команды,
	// которые прошли проверку при построении. Такие ошибки считаются клиентскими.
	ErrInvalidInput = errors.New("некорректные данные команды")
	// ErrBusShutdown возвращается шиной, работа которой завершена.
	ErrBusShutdown = errors.New("шина команд остановлена")
	// ErrBusNotFound возвращается реестром для неизвестного имени шины.
	ErrBusNotFound = errors.New("шина команд не найдена")
)

// Handler — нетипизированный обработчик, с которым работают провайдеры.
type Handler func(ctx context.Context, cmd any) (any, error)

// CommandHandler определяет строго типизированную функцию-обработчик для
// команды C, которая возвращает результат типа R.
type CommandHandler[C any, R any] func(ctx context.Context, cmd C) (R, error)

// Metadatable определяет интерфейс для команд, которые несут метаданные
// (например, контекст трассировки).
type Metadatable interface {
	Metadata() map[string]string
}
