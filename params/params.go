// Package params собирает параметры команды из разных источников запроса.
//
// Каждый источник представлен маппером с приоритетом. Коллектор опрашивает
// мапперы от большего приоритета к меньшему; значение, полученное раньше,
// не перезаписывается более поздним.
package params

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/x-research-team/req2cmd/errs"
)

// Params — отображение имен параметров на значения примитивных типов.
type Params map[string]any

// Clone возвращает поверхностную копию набора.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Union возвращает новый набор: все ключи p и те ключи other, которых нет в p.
// Ни p, ни other не изменяются.
func (p Params) Union(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range other {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Has сообщает, присутствует ли ключ.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String возвращает обязательный строковый параметр.
func (p Params) String(key string) (string, error) {
	var out string
	err := p.decode(key, &out, true)
	return out, err
}

// StringOr возвращает строковый параметр или значение по умолчанию.
func (p Params) StringOr(key, def string) (string, error) {
	out := def
	err := p.decode(key, &out, false)
	return out, err
}

// Int возвращает обязательный целочисленный параметр. Строки вида "42"
// приводятся к числу.
func (p Params) Int(key string) (int, error) {
	var out int
	err := p.decode(key, &out, true)
	return out, err
}

// IntOr возвращает целочисленный параметр или значение по умолчанию.
func (p Params) IntOr(key string, def int) (int, error) {
	out := def
	err := p.decode(key, &out, false)
	return out, err
}

// Float возвращает обязательный параметр с плавающей точкой.
func (p Params) Float(key string) (float64, error) {
	var out float64
	err := p.decode(key, &out, true)
	return out, err
}

// Bool возвращает обязательный логический параметр.
func (p Params) Bool(key string) (bool, error) {
	var out bool
	err := p.decode(key, &out, true)
	return out, err
}

// BoolOr возвращает логический параметр или значение по умолчанию.
func (p Params) BoolOr(key string, def bool) (bool, error) {
	out := def
	err := p.decode(key, &out, false)
	return out, err
}

// Strings возвращает список строк. Одиночное значение превращается в список
// из одного элемента.
func (p Params) Strings(key string) ([]string, error) {
	var out []string
	err := p.decode(key, &out, false)
	return out, err
}

// Decode заполняет target (указатель на структуру) по тегам json. Строки
// приводятся к числам и логическим значениям, остальные несовпадения типов
// считаются ошибкой.
func (p Params) Decode(target any) error {
	dec, err := newDecoder(target)
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(p)); err != nil {
		return &errs.FieldError{Reason: err.Error()}
	}
	return nil
}

func (p Params) decode(key string, target any, required bool) error {
	raw, ok := p[key]
	if !ok || raw == nil {
		if required {
			return &errs.FieldError{Field: key, Reason: "обязательное поле отсутствует"}
		}
		return nil
	}
	dec, err := newDecoder(target)
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return &errs.FieldError{Field: key, Reason: fmt.Sprintf("значение %v нельзя привести к %s", raw, strings.TrimPrefix(fmt.Sprintf("%T", target), "*"))}
	}
	return nil
}

func newDecoder(target any) (*mapstructure.Decoder, error) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			coerceHook,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать декодер параметров: %w", err)
	}
	return dec, nil
}

// coerceHook разбирает строки из пути, заголовков и строки запроса в числа и
// логические значения и оборачивает одиночное значение в список. Дробное
// число для целого поля отклоняется.
func coerceHook(from, to reflect.Type, data any) (any, error) {
	v := reflect.ValueOf(data)
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch from.Kind() {
		case reflect.String:
			return strconv.ParseInt(strings.TrimSpace(v.String()), 10, to.Bits())
		case reflect.Float32, reflect.Float64:
			if f := v.Float(); f != math.Trunc(f) {
				return nil, fmt.Errorf("дробное значение %v для целого поля", data)
			}
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch from.Kind() {
		case reflect.String:
			return strconv.ParseUint(strings.TrimSpace(v.String()), 10, to.Bits())
		case reflect.Float32, reflect.Float64:
			if f := v.Float(); f != math.Trunc(f) || f < 0 {
				return nil, fmt.Errorf("значение %v не является неотрицательным целым", data)
			}
		}
	case reflect.Float32, reflect.Float64:
		if from.Kind() == reflect.String {
			return strconv.ParseFloat(strings.TrimSpace(v.String()), to.Bits())
		}
	case reflect.Bool:
		if from.Kind() == reflect.String {
			return strconv.ParseBool(strings.TrimSpace(v.String()))
		}
	case reflect.Slice:
		if k := from.Kind(); k != reflect.Slice && k != reflect.Array && to.Elem().Kind() != reflect.Uint8 {
			return []any{data}, nil
		}
	}
	return data, nil
}
