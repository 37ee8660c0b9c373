// Package request содержит неизменяемое представление входящего HTTP-запроса,
// с которым работает конвейер извлечения команд, и слот для прикрепленной
// к запросу команды.
package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// DefaultMaxBodyBytes ограничивает размер читаемого тела запроса.
const DefaultMaxBodyBytes int64 = 10 << 20

// ErrBodyTooLarge возвращается, если тело запроса превышает лимит.
var ErrBodyTooLarge = errors.New("тело запроса превышает допустимый размер")

// Snapshot — снимок запроса: метод, переменные пути, строка запроса,
// заголовки и тело. После создания снимок не изменяется, поэтому его можно
// безопасно читать из любого компонента конвейера сколько угодно раз.
type Snapshot struct {
	Method      string
	Path        string
	PathParams  map[string]string
	Query       url.Values
	Header      http.Header
	ContentType string
	Body        []byte

	bodyErr  error
	parsed   map[string]any
	parseErr error
}

// NewSnapshot копирует переданные поля и один раз разбирает тело.
func NewSnapshot(in Snapshot) *Snapshot {
	s := &Snapshot{
		Method:      in.Method,
		Path:        in.Path,
		PathParams:  make(map[string]string, len(in.PathParams)),
		Query:       url.Values{},
		Header:      in.Header.Clone(),
		ContentType: in.ContentType,
		Body:        bytes.Clone(in.Body),
		bodyErr:     in.bodyErr,
	}
	for k, v := range in.PathParams {
		s.PathParams[k] = v
	}
	for k, v := range in.Query {
		s.Query[k] = append([]string(nil), v...)
	}
	if s.Header == nil {
		s.Header = http.Header{}
	}
	if s.bodyErr == nil {
		s.parsed, s.parseErr = parseBody(s.ContentType, s.Body)
	}
	return s
}

// FromHTTP строит снимок из запроса, прочитав не более maxBodyBytes байт тела.
// Тело возвращается в запрос, чтобы обработчики маршрутов без команды могли
// прочитать его как обычно. Переменные пути берутся из контекста маршрутизации chi.
func FromHTTP(r *http.Request, maxBodyBytes int64) (*Snapshot, *http.Request) {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	in := Snapshot{
		Method:      r.Method,
		Path:        r.URL.Path,
		PathParams:  map[string]string{},
		Query:       r.URL.Query(),
		Header:      r.Header,
		ContentType: r.Header.Get("Content-Type"),
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "" || key == "*" || i >= len(rctx.URLParams.Values) {
				continue
			}
			in.PathParams[key] = rctx.URLParams.Values[i]
		}
	}

	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		switch {
		case err != nil:
			_ = r.Body.Close()
			in.bodyErr = fmt.Errorf("не удалось прочитать тело запроса: %w", err)
			r.Body = io.NopCloser(bytes.NewReader(body))
		case int64(len(body)) > maxBodyBytes:
			// Снимок не получает тело, а обработчик дочитывает его целиком.
			in.bodyErr = ErrBodyTooLarge
			r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(body), r.Body), Closer: r.Body}
			body = nil
		default:
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		in.Body = body
	}

	return NewSnapshot(in), r
}

// replayBody возвращает уже прочитанное начало тела, затем остаток исходного.
type replayBody struct {
	io.Reader
	io.Closer
}

// RawBody возвращает тело запроса или ошибку его чтения.
func (s *Snapshot) RawBody() ([]byte, error) {
	if s.bodyErr != nil {
		return nil, s.bodyErr
	}
	return s.Body, nil
}

// ParsedBody возвращает разобранное тело. Для каждого вызова создается копия
// верхнего уровня, так что вызывающий может свободно ее изменять.
func (s *Snapshot) ParsedBody() (map[string]any, error) {
	if s.bodyErr != nil {
		return nil, s.bodyErr
	}
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	out := make(map[string]any, len(s.parsed))
	for k, v := range s.parsed {
		out[k] = v
	}
	return out, nil
}

// parseBody разбирает JSON-объект или форму. Пустое тело и неизвестные
// типы содержимого дают пустой результат.
func parseBody(contentType string, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("некорректный Content-Type %q: %w", contentType, err)
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("некорректное тело формы: %w", err)
		}
		return FlattenValues(values), nil
	case "", "application/json":
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("тело запроса не является JSON-объектом: %w", err)
		}
		if out == nil {
			out = map[string]any{}
		}
		return out, nil
	default:
		if len(mediaType) > 5 && mediaType[len(mediaType)-5:] == "+json" {
			return parseBody("application/json", body)
		}
		return map[string]any{}, nil
	}
}

// FlattenValues превращает url.Values в отображение: одиночные значения
// становятся строками, повторяющиеся — срезами строк.
func FlattenValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch len(v) {
		case 0:
		case 1:
			out[k] = v[0]
		default:
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}
