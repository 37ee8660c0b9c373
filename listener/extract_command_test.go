package listener_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/denormalizer"
	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/extractor"
	"github.com/x-research-team/req2cmd/internal/testcmd"
	"github.com/x-research-team/req2cmd/listener"
	"github.com/x-research-team/req2cmd/params"
	"github.com/x-research-team/req2cmd/request"
)

func newListener(opts ...listener.Option) *listener.ExtractCommand {
	collector := params.NewCollector([]params.Registration{
		{Name: params.PathMapperName, Priority: params.PathMapperPriority, Mapper: params.PathParamsMapper{}},
	})
	den := denormalizer.Chain{denormalizer.DeserializableCommandDenormalizer{}}
	return listener.NewExtractCommand(extractor.NewParamsExtractor(collector, den), den, opts...)
}

// newRequest имитирует подготовку запроса ядром: снимок и объявленный тип.
func newRequest(d commandtype.Descriptor, body string, pathParams map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/users/42", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	snap := request.NewSnapshot(request.Snapshot{
		Method:      r.Method,
		Path:        r.URL.Path,
		PathParams:  pathParams,
		Header:      r.Header,
		ContentType: "application/json",
		Body:        []byte(body),
	})

	ctx := request.WithSnapshot(r.Context(), snap)
	if !d.IsZero() {
		ctx = commandtype.WithDeclared(ctx, d)
	}
	return r.WithContext(ctx)
}

func TestExtractCommand_Attaches(t *testing.T) {
	t.Parallel()

	r := newRequest(commandtype.Of[testcmd.CreateUserCommand](), `{"name":"Bob","id":"7"}`, map[string]string{"id": "42"})

	out, err := newListener().OnRequest(r)
	require.NoError(t, err)

	cmd, ok := request.CommandFrom(out.Context())
	require.True(t, ok)
	// Параметр пути выигрывает у поля тела.
	assert.Equal(t, testcmd.CreateUserCommand{ID: 42, Name: "Bob"}, cmd)
}

func TestExtractCommand_PassThrough(t *testing.T) {
	t.Parallel()

	t.Run("маршрут без команды", func(t *testing.T) {
		t.Parallel()
		r := newRequest(commandtype.Descriptor{}, `{"name":"Bob"}`, nil)
		out, err := newListener().OnRequest(r)
		require.NoError(t, err)
		assert.Same(t, r, out)
		_, ok := request.CommandFrom(out.Context())
		assert.False(t, ok)
	})

	t.Run("неподдерживаемый тип", func(t *testing.T) {
		t.Parallel()
		r := newRequest(commandtype.Of[testcmd.PublishPostCommand](), `{"post_id":1}`, nil)
		out, err := newListener().OnRequest(r)
		require.NoError(t, err)
		assert.Same(t, r, out)
	})
}

func TestExtractCommand_Failures(t *testing.T) {
	t.Parallel()

	createUser := commandtype.Of[testcmd.CreateUserCommand]()

	t.Run("нет обязательного поля", func(t *testing.T) {
		t.Parallel()
		_, err := newListener().OnRequest(newRequest(createUser, `{}`, nil))
		require.ErrorIs(t, err, errs.ErrDenormalizationFailed)
		fields := errs.FieldsOf(err)
		require.Len(t, fields, 1)
		assert.Equal(t, "name", fields[0].Field)
	})

	t.Run("битое тело", func(t *testing.T) {
		t.Parallel()
		_, err := newListener().OnRequest(newRequest(createUser, `{"name":`, nil))
		require.ErrorIs(t, err, errs.ErrExtractionFailed)
	})

	t.Run("битый параметр пути", func(t *testing.T) {
		t.Parallel()
		_, err := newListener().OnRequest(newRequest(createUser, `{"name":"Bob"}`, map[string]string{"id": "%zz"}))
		require.ErrorIs(t, err, errs.ErrExtractionFailed)
	})

	t.Run("команда уже прикреплена", func(t *testing.T) {
		t.Parallel()
		r := newRequest(createUser, `{"name":"Bob"}`, nil)
		r = r.WithContext(request.WithCommand(r.Context(), testcmd.CreateUserCommand{Name: "Ann"}))
		_, err := newListener().OnRequest(r)
		require.ErrorIs(t, err, errs.ErrCommandAlreadyAttached)
	})
}

func TestExtractCommand_BuildsSnapshotWhenMissing(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Bob"}`))
	r.Header.Set("Content-Type", "application/json")
	r = r.WithContext(commandtype.WithDeclared(r.Context(), commandtype.Of[testcmd.CreateUserCommand]()))

	out, err := newListener().OnRequest(r)
	require.NoError(t, err)

	cmd, ok := request.CommandFrom(out.Context())
	require.True(t, ok)
	assert.Equal(t, testcmd.CreateUserCommand{Name: "Bob"}, cmd)

	_, ok = request.SnapshotFrom(out.Context())
	assert.True(t, ok)
}

func TestExtractCommand_Span(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	l := newListener(listener.WithTracerProvider(tp))

	_, err := l.OnRequest(newRequest(commandtype.Of[testcmd.CreateUserCommand](), `{}`, nil))
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, listener.SpanName, spans[0].Name)
	assert.NotEmpty(t, spans[0].Events, "ошибка должна быть записана в спан")

	require.NoError(t, tp.Shutdown(context.Background()))
}
