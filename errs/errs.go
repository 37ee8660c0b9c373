// Package errs определяет виды ошибок конвейера «запрос → команда».
//
// Ошибки, относящиеся к данным запроса (извлечение, денормализация),
// считаются клиентскими. Ошибки связывания (команда не прикреплена к запросу)
// и сбои шины считаются серверными.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedType возвращается экстрактором, если Extract вызван для типа,
	// который он не поддерживает. Это ошибка программиста, а не данных запроса.
	ErrUnsupportedType = errors.New("тип команды не поддерживается экстрактором")

	// ErrExtractionFailed означает, что из запроса не удалось получить
	// сырые параметры команды.
	ErrExtractionFailed = errors.New("не удалось извлечь параметры команды из запроса")

	// ErrDenormalizationFailed означает, что сырые параметры не подходят
	// для построения команды.
	ErrDenormalizationFailed = errors.New("не удалось построить команду из параметров")

	// ErrMissingAttachedCommand означает, что терминальный обработчик вызван
	// без команды в контексте запроса.
	ErrMissingAttachedCommand = errors.New("команда не прикреплена к запросу")

	// ErrCommandAlreadyAttached означает попытку повторно прикрепить команду.
	ErrCommandAlreadyAttached = errors.New("команда уже прикреплена к запросу")

	// ErrDispatchFailed означает, что шина команд вернула ошибку.
	ErrDispatchFailed = errors.New("ошибка выполнения команды")
)

// FieldError описывает проблему с одним параметром команды.
type FieldError struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DenormalizationError собирает ошибки полей для конкретного типа команды.
type DenormalizationError struct {
	Command string
	Fields  []FieldError
	Err     error
}

func (e *DenormalizationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s '%s'", ErrDenormalizationFailed.Error(), e.Command)
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for i := range e.Fields {
			parts = append(parts, e.Fields[i].Error())
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DenormalizationError) Is(target error) bool {
	return target == ErrDenormalizationFailed
}

func (e *DenormalizationError) Unwrap() error { return e.Err }

// Denormalization оборачивает произвольную ошибку конструктора команды.
// Ошибки полей (*FieldError) переносятся в Fields, чтобы клиент видел,
// какое поле вызвало отказ.
func Denormalization(command string, err error) *DenormalizationError {
	var de *DenormalizationError
	if errors.As(err, &de) {
		if de.Command != "" {
			return de
		}
		out := *de
		out.Command = command
		out.Fields = append([]FieldError(nil), de.Fields...)
		return &out
	}

	out := &DenormalizationError{Command: command, Err: err}
	var fe *FieldError
	if errors.As(err, &fe) {
		out.Fields = []FieldError{*fe}
	}
	return out
}

// FieldsOf возвращает ошибки полей, если err содержит DenormalizationError.
func FieldsOf(err error) []FieldError {
	var de *DenormalizationError
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
