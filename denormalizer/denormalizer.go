// Package denormalizer строит экземпляры команд из сырых данных запроса.
//
// Это граница проверки между недоверенным HTTP-вводом и инвариантами
// команды: любая ошибка построения возвращается как
// *errs.DenormalizationError и никогда не поглощается.
package denormalizer

import (
	"fmt"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/params"
)

// Denormalizer превращает сырые данные в команду указанного типа.
type Denormalizer interface {
	// SupportsDenormalization — чистая проверка возможности построения.
	SupportsDenormalization(data any, d commandtype.Descriptor) bool

	// Denormalize строит команду. Вызывается только после положительного
	// ответа SupportsDenormalization.
	Denormalize(data any, d commandtype.Descriptor) (any, error)
}

// DeserializableCommandDenormalizer строит команды, тип которых реализует
// commandtype.Deserializable, вызывая FromMapping с набором параметров.
type DeserializableCommandDenormalizer struct{}

// SupportsDenormalization проверяет способность типа, а не его точное совпадение.
func (DeserializableCommandDenormalizer) SupportsDenormalization(data any, d commandtype.Descriptor) bool {
	if _, ok := asParams(data); !ok {
		return false
	}
	return d.IsDeserializable()
}

// Denormalize вызывает FromMapping.
func (DeserializableCommandDenormalizer) Denormalize(data any, d commandtype.Descriptor) (any, error) {
	p, ok := asParams(data)
	if !ok {
		return nil, errs.Denormalization(d.Name(), fmt.Errorf("ожидался набор параметров, получен %T", data))
	}
	cmd, err := d.Deserialize(p)
	if err != nil {
		return nil, errs.Denormalization(d.Name(), err)
	}
	if cmd == nil {
		return nil, errs.Denormalization(d.Name(), fmt.Errorf("FromMapping вернул пустую команду"))
	}
	return cmd, nil
}

// Chain опрашивает денормализаторы по порядку; первый поддерживающий
// строит команду.
type Chain []Denormalizer

// SupportsDenormalization сообщает, поддерживает ли данные хотя бы одно звено.
func (c Chain) SupportsDenormalization(data any, d commandtype.Descriptor) bool {
	return c.pick(data, d) != nil
}

// Denormalize делегирует первому поддерживающему звену.
func (c Chain) Denormalize(data any, d commandtype.Descriptor) (any, error) {
	den := c.pick(data, d)
	if den == nil {
		return nil, errs.Denormalization(d.Name(), fmt.Errorf("нет денормализатора для данных %T", data))
	}
	return den.Denormalize(data, d)
}

func (c Chain) pick(data any, d commandtype.Descriptor) Denormalizer {
	for _, den := range c {
		if den != nil && den.SupportsDenormalization(data, d) {
			return den
		}
	}
	return nil
}

func asParams(data any) (params.Params, bool) {
	switch v := data.(type) {
	case params.Params:
		return v, true
	case map[string]any:
		return params.Params(v), true
	default:
		return nil, false
	}
}
