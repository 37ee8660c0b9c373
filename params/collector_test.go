package params_test

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/params"
	"github.com/x-research-team/req2cmd/request"
)

// fixed возвращает маппер с фиксированным результатом.
func fixed(p params.Params) params.Mapper {
	return params.MapperFunc(func(*request.Snapshot) (params.Params, error) {
		return p, nil
	})
}

func TestCollector_PriorityWins(t *testing.T) {
	t.Parallel()

	// Низкоприоритетный маппер регистрируется первым, чтобы порядок
	// регистрации не совпадал с порядком приоритетов.
	collector := params.NewCollector([]params.Registration{
		{Name: "query-like", Priority: 10, Mapper: fixed(params.Params{"id": "query-value"})},
		{Name: "path", Priority: 255, Mapper: fixed(params.Params{"id": "path-value"})},
	})

	got, err := collector.Collect(request.NewSnapshot(request.Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, "path-value", got["id"])
	assert.Equal(t, []string{"path", "query-like"}, collector.Order())
}

func TestCollector_TieBreakByRegistrationOrder(t *testing.T) {
	t.Parallel()

	collector := params.NewCollector([]params.Registration{
		{Name: "A", Priority: 50, Mapper: fixed(params.Params{"x": "from-A"})},
		{Name: "B", Priority: 50, Mapper: fixed(params.Params{"x": "from-B"})},
	})

	got, err := collector.Collect(request.NewSnapshot(request.Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, "from-A", got["x"])
	assert.Equal(t, []string{"A", "B"}, collector.Order())
}

func TestCollector_ExecutionOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	recording := func(name string) params.Mapper {
		return params.MapperFunc(func(*request.Snapshot) (params.Params, error) {
			calls = append(calls, name)
			return params.Params{}, nil
		})
	}

	collector := params.NewCollector([]params.Registration{
		{Name: "low", Priority: 1, Mapper: recording("low")},
		{Name: "first-mid", Priority: 100, Mapper: recording("first-mid")},
		{Name: "top", Priority: 255, Mapper: recording("top")},
		{Name: "second-mid", Priority: 100, Mapper: recording("second-mid")},
		{Name: "nil", Priority: 300},
	})

	_, err := collector.Collect(request.NewSnapshot(request.Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "first-mid", "second-mid", "low"}, calls)
}

func TestCollector_BaseParamsHaveLowestPrecedence(t *testing.T) {
	t.Parallel()

	collector := params.NewCollector([]params.Registration{
		{Name: params.PathMapperName, Priority: params.PathMapperPriority, Mapper: params.PathParamsMapper{}},
	})
	snap := request.NewSnapshot(request.Snapshot{
		PathParams: map[string]string{"id": "42"},
		Query:      url.Values{"id": {"7"}, "name": {"query"}, "page": {"2"}},
		Body:       []byte(`{"name":"Bob","id":"body"}`),
	})

	got, err := collector.Collect(snap)
	require.NoError(t, err)
	assert.Equal(t, params.Params{"id": "42", "name": "Bob", "page": "2"}, got)
}

func TestCollector_Idempotent(t *testing.T) {
	t.Parallel()

	collector := params.NewCollector([]params.Registration{
		{Name: params.PathMapperName, Priority: params.PathMapperPriority, Mapper: params.PathParamsMapper{}},
		{Name: params.HeaderMapperName, Priority: params.HeaderMapperPriority, Mapper: params.HeaderParamsMapper{
			Headers: map[string]string{"X-Tenant": "tenant"},
		}},
	})
	snap := request.NewSnapshot(request.Snapshot{
		PathParams: map[string]string{"id": "42"},
		Header:     http.Header{"X-Tenant": {"acme"}},
		Body:       []byte(`{"name":"Bob"}`),
	})

	first, err := collector.Collect(snap)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := collector.Collect(snap)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, params.Params{"id": "42", "tenant": "acme", "name": "Bob"}, first)
}

func TestCollector_DoesNotMutateMapperOutput(t *testing.T) {
	t.Parallel()

	high := params.Params{"a": 1}
	low := params.Params{"a": 2, "b": 3}
	collector := params.NewCollector([]params.Registration{
		{Name: "high", Priority: 2, Mapper: fixed(high)},
		{Name: "low", Priority: 1, Mapper: fixed(low)},
	})

	got, err := collector.Collect(request.NewSnapshot(request.Snapshot{}))
	require.NoError(t, err)
	assert.Equal(t, params.Params{"a": 1, "b": 3}, got)
	assert.Equal(t, params.Params{"a": 1}, high)
	assert.Equal(t, params.Params{"a": 2, "b": 3}, low)
}

func TestCollector_Errors(t *testing.T) {
	t.Parallel()

	t.Run("ошибка маппера", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("сломано")
		collector := params.NewCollector([]params.Registration{
			{Name: "broken", Priority: 1, Mapper: params.MapperFunc(func(*request.Snapshot) (params.Params, error) {
				return nil, boom
			})},
		})
		_, err := collector.Collect(request.NewSnapshot(request.Snapshot{}))
		require.ErrorIs(t, err, errs.ErrExtractionFailed)
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("некорректная переменная пути", func(t *testing.T) {
		t.Parallel()
		collector := params.NewCollector([]params.Registration{
			{Name: params.PathMapperName, Priority: params.PathMapperPriority, Mapper: params.PathParamsMapper{}},
		})
		_, err := collector.Collect(request.NewSnapshot(request.Snapshot{PathParams: map[string]string{"id": "%zz"}}))
		require.ErrorIs(t, err, errs.ErrExtractionFailed)
	})

	t.Run("некорректное тело", func(t *testing.T) {
		t.Parallel()
		collector := params.NewCollector(nil)
		_, err := collector.Collect(request.NewSnapshot(request.Snapshot{Body: []byte("{")}))
		require.ErrorIs(t, err, errs.ErrExtractionFailed)
	})
}

func TestPathParamsMapper_Unescapes(t *testing.T) {
	t.Parallel()

	got, err := params.PathParamsMapper{}.Map(request.NewSnapshot(request.Snapshot{
		PathParams: map[string]string{"name": "John%20Doe"},
	}))
	require.NoError(t, err)
	assert.Equal(t, params.Params{"name": "John Doe"}, got)
}
