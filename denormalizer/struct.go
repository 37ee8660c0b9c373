package denormalizer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/errs"
)

// NewValidator возвращает валидатор, который называет поля по тегам json,
// чтобы ошибки совпадали с именами параметров запроса.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		default:
			return name
		}
	})
	return v
}

// StructDenormalizer заполняет любую структуру по тегам json с приведением
// типов и проверяет теги validate.
type StructDenormalizer struct {
	validate *validator.Validate
}

// NewStructDenormalizer создает денормализатор. nil означает валидатор по умолчанию.
func NewStructDenormalizer(v *validator.Validate) *StructDenormalizer {
	if v == nil {
		v = NewValidator()
	}
	return &StructDenormalizer{validate: v}
}

// SupportsDenormalization принимает набор параметров для структурного типа.
func (s *StructDenormalizer) SupportsDenormalization(data any, d commandtype.Descriptor) bool {
	_, ok := asParams(data)
	return ok && d.IsStruct()
}

// Denormalize строит и проверяет команду. Возвращается указатель на структуру.
func (s *StructDenormalizer) Denormalize(data any, d commandtype.Descriptor) (any, error) {
	p, ok := asParams(data)
	if !ok {
		return nil, errs.Denormalization(d.Name(), fmt.Errorf("ожидался набор параметров, получен %T", data))
	}
	target := d.New()
	if err := p.Decode(target); err != nil {
		return nil, errs.Denormalization(d.Name(), err)
	}
	if err := validateStruct(s.validate, d, target); err != nil {
		return nil, err
	}
	return target, nil
}

// PassthroughDenormalizer принимает данные, уже являющиеся экземпляром
// нужного типа (например, результат кодека), и только проверяет их.
type PassthroughDenormalizer struct {
	validate *validator.Validate
}

// NewPassthroughDenormalizer создает денормализатор. nil означает валидатор по умолчанию.
func NewPassthroughDenormalizer(v *validator.Validate) *PassthroughDenormalizer {
	if v == nil {
		v = NewValidator()
	}
	return &PassthroughDenormalizer{validate: v}
}

// SupportsDenormalization проверяет, что данные — экземпляр типа команды.
func (p *PassthroughDenormalizer) SupportsDenormalization(data any, d commandtype.Descriptor) bool {
	return d.Matches(data)
}

// Denormalize возвращает данные после проверки.
func (p *PassthroughDenormalizer) Denormalize(data any, d commandtype.Descriptor) (any, error) {
	if !d.Matches(data) {
		return nil, errs.Denormalization(d.Name(), fmt.Errorf("ожидался %s, получен %T", d, data))
	}
	if d.IsStruct() {
		if err := validateStruct(p.validate, d, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func validateStruct(v *validator.Validate, d commandtype.Descriptor, target any) error {
	err := v.Struct(target)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return errs.Denormalization(d.Name(), err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Denormalization(d.Name(), err)
	}

	fields := make([]errs.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errs.FieldError{
			Field:  fieldPath(fe),
			Reason: describeTag(fe),
		})
	}
	return &errs.DenormalizationError{Command: d.Name(), Fields: fields, Err: err}
}

// fieldPath убирает имя корневой структуры из пространства имен поля.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле отсутствует"
	case "min":
		return fmt.Sprintf("значение меньше минимума %s", fe.Param())
	case "max":
		return fmt.Sprintf("значение больше максимума %s", fe.Param())
	case "gt":
		return fmt.Sprintf("значение должно быть больше %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("значение должно быть одним из: %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("не выполнено правило %s=%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("не выполнено правило %s", fe.Tag())
	}
}
