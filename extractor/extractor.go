// Package extractor решает, может ли запрос быть превращен в команду
// объявленного типа, и достает из него сырые данные для этой команды.
//
// Активен ровно один экстрактор, выбранный конфигурацией; переключения
// между стратегиями во время обработки запроса нет.
package extractor

import (
	"fmt"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/denormalizer"
	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/params"
	"github.com/x-research-team/req2cmd/request"
)

const (
	// ServiceSerializer — идентификатор стратегии на основе коллектора параметров.
	ServiceSerializer = "serializer"
	// ServiceCodec — идентификатор стратегии, делегирующей разбор тела кодеку.
	ServiceCodec = "codec"
)

// Extractor определяет контракт извлечения сырых данных команды.
type Extractor interface {
	// Supports — чистая проверка, зависящая только от типа команды.
	Supports(d commandtype.Descriptor, snap *request.Snapshot) bool

	// Extract вызывается только после положительного ответа Supports.
	Extract(d commandtype.Descriptor, snap *request.Snapshot) (any, error)
}

// ParamsExtractor собирает параметры коллектором. Тип поддерживается, если
// денормализатор умеет строить его из набора параметров.
type ParamsExtractor struct {
	collector    *params.Collector
	denormalizer denormalizer.Denormalizer
}

// NewParamsExtractor создает экстрактор на основе коллектора.
func NewParamsExtractor(collector *params.Collector, den denormalizer.Denormalizer) *ParamsExtractor {
	return &ParamsExtractor{
		collector:    collector,
		denormalizer: den,
	}
}

// Supports проверяет тип по пустому набору параметров, поэтому ответ
// не зависит от содержимого запроса.
func (e *ParamsExtractor) Supports(d commandtype.Descriptor, _ *request.Snapshot) bool {
	if d.IsZero() || e.denormalizer == nil {
		return false
	}
	return e.denormalizer.SupportsDenormalization(params.Params{}, d)
}

// Extract возвращает params.Params.
func (e *ParamsExtractor) Extract(d commandtype.Descriptor, snap *request.Snapshot) (any, error) {
	if !e.Supports(d, snap) {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedType, d)
	}
	p, err := e.collector.Collect(snap)
	if err != nil {
		return nil, err
	}
	return p, nil
}
