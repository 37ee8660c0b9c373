// Package commandtype описывает типы команд, которые маршрут может объявить,
// и способность типа строиться из набора параметров.
package commandtype

import (
	"context"
	"fmt"

	"github.com/goccy/go-reflect"

	"github.com/x-research-team/req2cmd/params"
)

// Deserializable — способность типа команды строиться из набора параметров.
// Метод вызывается на нулевом значении типа и играет роль конструктора:
// он проверяет параметры и возвращает готовую команду.
type Deserializable interface {
	FromMapping(p params.Params) (any, error)
}

var deserializableType = reflect.TypeOf((*Deserializable)(nil)).Elem()

// Descriptor идентифицирует тип команды. Нулевое значение означает,
// что маршрут не объявляет команду.
type Descriptor struct {
	name string
	typ  reflect.Type
}

// Of возвращает дескриптор для типа T. Имя — полное имя Go-типа.
func Of[T any]() Descriptor {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return Descriptor{name: typ.String(), typ: typ}
}

// Named возвращает дескриптор для T с явным именем.
func Named[T any](name string) Descriptor {
	d := Of[T]()
	if name != "" {
		d.name = name
	}
	return d
}

// ForValue возвращает дескриптор для динамического значения команды.
func ForValue(cmd any) Descriptor {
	if cmd == nil {
		return Descriptor{}
	}
	typ := reflect.TypeOf(cmd)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return Descriptor{name: typ.String(), typ: typ}
}

// Name возвращает имя типа команды.
func (d Descriptor) Name() string { return d.name }

// Type возвращает тип команды (без указателя).
func (d Descriptor) Type() reflect.Type { return d.typ }

// IsZero сообщает, что дескриптор пуст.
func (d Descriptor) IsZero() bool { return d.typ == nil }

// String реализует fmt.Stringer.
func (d Descriptor) String() string {
	if d.IsZero() {
		return "<нет команды>"
	}
	return d.name
}

// IsStruct сообщает, является ли тип команды структурой.
func (d Descriptor) IsStruct() bool {
	return !d.IsZero() && d.typ.Kind() == reflect.Struct
}

// New создает новый экземпляр команды и возвращает указатель на него.
func (d Descriptor) New() any {
	if d.IsZero() {
		return nil
	}
	return reflect.New(d.typ).Interface()
}

// Matches сообщает, является ли значение экземпляром типа команды
// или указателем на него.
func (d Descriptor) Matches(v any) bool {
	if d.IsZero() || v == nil {
		return false
	}
	typ := reflect.TypeOf(v)
	return typ == d.typ || (typ.Kind() == reflect.Ptr && typ.Elem() == d.typ)
}

// IsDeserializable проверяет способность «построить из параметров».
// Учитываются методы как значения, так и указателя.
func (d Descriptor) IsDeserializable() bool {
	if d.IsZero() {
		return false
	}
	return d.typ.Implements(deserializableType) || reflect.PtrTo(d.typ).Implements(deserializableType)
}

// Deserialize строит команду через FromMapping.
func (d Descriptor) Deserialize(p params.Params) (any, error) {
	if !d.IsDeserializable() {
		return nil, fmt.Errorf("тип '%s' не реализует FromMapping", d)
	}
	factory, ok := d.New().(Deserializable)
	if !ok {
		return nil, fmt.Errorf("тип '%s' не реализует FromMapping", d)
	}
	return factory.FromMapping(p)
}

type declaredContextKey struct{}

// WithDeclared сохраняет объявленный маршрутом тип команды в контексте.
func WithDeclared(ctx context.Context, d Descriptor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, declaredContextKey{}, d)
}

// DeclaredFrom возвращает объявленный маршрутом тип команды.
func DeclaredFrom(ctx context.Context) (Descriptor, bool) {
	if ctx == nil {
		return Descriptor{}, false
	}
	d, ok := ctx.Value(declaredContextKey{}).(Descriptor)
	return d, ok && !d.IsZero()
}
