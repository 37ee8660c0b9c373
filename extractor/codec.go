package extractor

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/request"
)

// Codec — внешняя библиотека отображения тела запроса на тип команды.
type Codec interface {
	// Knows сообщает, умеет ли кодек работать с типом.
	Knows(d commandtype.Descriptor) bool

	// Decode разбирает тело в новый экземпляр типа.
	Decode(body []byte, d commandtype.Descriptor) (any, error)
}

// JSONCodec декодирует JSON-тело в структуру типа команды.
type JSONCodec struct {
	types                 *commandtype.Registry
	disallowUnknownFields bool
}

// JSONCodecOption настраивает JSONCodec.
type JSONCodecOption func(*JSONCodec)

// WithKnownTypes ограничивает кодек зарегистрированными типами.
func WithKnownTypes(types *commandtype.Registry) JSONCodecOption {
	return func(c *JSONCodec) {
		c.types = types
	}
}

// WithDisallowUnknownFields запрещает поля тела, отсутствующие в команде.
func WithDisallowUnknownFields() JSONCodecOption {
	return func(c *JSONCodec) {
		c.disallowUnknownFields = true
	}
}

// NewJSONCodec создает кодек.
func NewJSONCodec(opts ...JSONCodecOption) *JSONCodec {
	c := &JSONCodec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Knows принимает структурные типы; при наличии справочника — только известные ему.
func (c *JSONCodec) Knows(d commandtype.Descriptor) bool {
	if !d.IsStruct() {
		return false
	}
	if c.types != nil {
		return c.types.Known(d)
	}
	return true
}

// Decode возвращает указатель на заполненную структуру. Пустое тело
// считается пустым объектом.
func (c *JSONCodec) Decode(body []byte, d commandtype.Descriptor) (any, error) {
	target := d.New()
	if target == nil {
		return nil, fmt.Errorf("пустой дескриптор команды")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return target, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if c.disallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("не удалось разобрать тело как %s: %w", d, err)
	}
	return target, nil
}

// CodecExtractor передает тело запроса кодеку.
type CodecExtractor struct {
	codec Codec
}

// NewCodecExtractor создает экстрактор на основе кодека.
func NewCodecExtractor(codec Codec) *CodecExtractor {
	return &CodecExtractor{codec: codec}
}

// Supports сообщает, известен ли тип кодеку.
func (e *CodecExtractor) Supports(d commandtype.Descriptor, _ *request.Snapshot) bool {
	return !d.IsZero() && e.codec != nil && e.codec.Knows(d)
}

// Extract возвращает результат кодека — экземпляр типа команды.
func (e *CodecExtractor) Extract(d commandtype.Descriptor, snap *request.Snapshot) (any, error) {
	if !e.Supports(d, snap) {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedType, d)
	}
	body, err := snap.RawBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrExtractionFailed, err)
	}
	out, err := e.codec.Decode(body, d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrExtractionFailed, err)
	}
	return out, nil
}
