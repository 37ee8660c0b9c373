package params

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/x-research-team/req2cmd/request"
)

const (
	// PathMapperName — имя маппера переменных пути.
	PathMapperName = "path"
	// PathMapperPriority — приоритет маппера переменных пути по умолчанию (наивысший).
	PathMapperPriority = 255

	// HeaderMapperName — имя маппера заголовков.
	HeaderMapperName = "header"
	// HeaderMapperPriority — приоритет маппера заголовков по умолчанию.
	HeaderMapperPriority = 128
)

// Mapper превращает один источник данных запроса в частичный набор параметров.
// Маппер, которому нечего предложить, возвращает пустой набор.
type Mapper interface {
	Map(snap *request.Snapshot) (Params, error)
}

// MapperFunc позволяет использовать обычную функцию как Mapper.
type MapperFunc func(snap *request.Snapshot) (Params, error)

// Map реализует интерфейс Mapper.
func (f MapperFunc) Map(snap *request.Snapshot) (Params, error) {
	return f(snap)
}

// PathParamsMapper возвращает переменные маршрута.
type PathParamsMapper struct{}

// Map декодирует экранированные значения переменных пути.
func (PathParamsMapper) Map(snap *request.Snapshot) (Params, error) {
	out := make(Params, len(snap.PathParams))
	for key, raw := range snap.PathParams {
		value, err := url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("некорректная переменная пути '%s': %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}

// HeaderParamsMapper переносит значения заголовков в параметры.
// Headers сопоставляет имя заголовка имени параметра.
type HeaderParamsMapper struct {
	Headers map[string]string
}

// Map возвращает параметры для присутствующих заголовков.
func (m HeaderParamsMapper) Map(snap *request.Snapshot) (Params, error) {
	out := make(Params, len(m.Headers))
	for header, param := range m.Headers {
		if value := snap.Header.Get(http.CanonicalHeaderKey(header)); value != "" {
			out[param] = value
		}
	}
	return out, nil
}
