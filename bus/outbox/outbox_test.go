package outbox_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/x-research-team/req2cmd/bus/command"
	"github.com/x-research-team/req2cmd/bus/outbox"
	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/internal/testcmd"
)

func newTypes(t *testing.T) *commandtype.Registry {
	t.Helper()
	types, err := commandtype.NewRegistry(
		commandtype.Named[testcmd.CreateUserCommand]("users.create"),
	)
	require.NoError(t, err)
	return types
}

type recordingHandler struct {
	mu   sync.Mutex
	got  []testcmd.CreateUserCommand
	fail bool
}

func (h *recordingHandler) handle(ctx context.Context, cmd testcmd.CreateUserCommand) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return 0, errors.New("обработчик недоступен")
	}
	h.got = append(h.got, cmd)
	return len(h.got), nil
}

func (h *recordingHandler) commands() []testcmd.CreateUserCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]testcmd.CreateUserCommand(nil), h.got...)
}

func newActualBus(t *testing.T, h *recordingHandler) command.IDispatcher {
	t.Helper()
	d, err := command.NewDispatcher()
	require.NoError(t, err)
	require.NoError(t, command.Register(d, h.handle))
	return d
}

func TestBus_Dispatch(t *testing.T) {
	t.Parallel()

	storage := outbox.NewMemoryStorage()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus, err := outbox.NewBus(storage, newTypes(t), outbox.WithClock(func() time.Time { return created }))
	require.NoError(t, err)

	res, err := bus.Dispatch(context.Background(), testcmd.CreateUserCommand{ID: 42, Name: "Bob"})
	require.NoError(t, err)

	receipt, ok := res.(outbox.Receipt)
	require.True(t, ok)
	assert.Equal(t, "users.create", receipt.CommandType)
	assert.Equal(t, outbox.StatusPending, receipt.Status)
	assert.Equal(t, http.StatusAccepted, receipt.StatusCode())

	msg, ok := storage.Get(receipt.ID)
	require.True(t, ok)
	assert.Equal(t, created, msg.CreatedAt)
	assert.JSONEq(t, `{"id":42,"name":"Bob"}`, string(msg.Payload))

	_, err = bus.Dispatch(context.Background(), testcmd.PublishPostCommand{PostID: 1})
	require.Error(t, err, "тип вне справочника")
}

func TestBus_Dispatch_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	storage := outbox.NewMemoryStorage()
	bus, err := outbox.NewBus(storage, newTypes(t))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "request")
	defer span.End()

	res, err := bus.Dispatch(ctx, &testcmd.CreateUserCommand{Name: "Ann"})
	require.NoError(t, err)

	msg, ok := storage.Get(res.(outbox.Receipt).ID)
	require.True(t, ok)
	assert.Contains(t, msg.Metadata["traceparent"], span.SpanContext().TraceID().String())
}

func TestNewBus_Validation(t *testing.T) {
	t.Parallel()

	_, err := outbox.NewBus(nil, newTypes(t))
	require.Error(t, err)
	_, err = outbox.NewBus(outbox.NewMemoryStorage(), nil)
	require.Error(t, err)
}

func TestRetransmitter_ProcessBatch(t *testing.T) {
	t.Parallel()

	types := newTypes(t)
	storage := outbox.NewMemoryStorage()
	bus, err := outbox.NewBus(storage, types)
	require.NoError(t, err)

	res, err := bus.Dispatch(context.Background(), testcmd.CreateUserCommand{ID: 1, Name: "Bob", Age: 30})
	require.NoError(t, err)

	h := &recordingHandler{}
	r := outbox.NewRetransmitter(storage, types, newActualBus(t, h))

	n, err := r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []testcmd.CreateUserCommand{{ID: 1, Name: "Bob", Age: 30}}, h.commands())

	msg, ok := storage.Get(res.(outbox.Receipt).ID)
	require.True(t, ok)
	assert.Equal(t, outbox.StatusProcessed, msg.Status)
	require.NotNil(t, msg.ProcessedAt)

	// Повторная обработка не выполняет команду еще раз.
	n, err = r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.commands(), 1)
}

func TestRetransmitter_LeavesFailedPending(t *testing.T) {
	t.Parallel()

	types := newTypes(t)
	storage := outbox.NewMemoryStorage()

	unknown := &outbox.Message{
		ID:          uuid.New(),
		CommandType: "users.unknown",
		Payload:     []byte(`{}`),
		Status:      outbox.StatusPending,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, storage.Save(context.Background(), unknown))

	bus, err := outbox.NewBus(storage, types)
	require.NoError(t, err)
	res, err := bus.Dispatch(context.Background(), testcmd.CreateUserCommand{Name: "Bob"})
	require.NoError(t, err)

	h := &recordingHandler{fail: true}
	r := outbox.NewRetransmitter(storage, types, newActualBus(t, h))

	n, err := r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, id := range []uuid.UUID{unknown.ID, res.(outbox.Receipt).ID} {
		msg, ok := storage.Get(id)
		require.True(t, ok)
		assert.Equal(t, outbox.StatusPending, msg.Status)
	}
}

func TestRetransmitter_StartStop(t *testing.T) {
	t.Parallel()

	types := newTypes(t)
	storage := outbox.NewMemoryStorage()
	bus, err := outbox.NewBus(storage, types)
	require.NoError(t, err)
	_, err = bus.Dispatch(context.Background(), testcmd.CreateUserCommand{Name: "Bob"})
	require.NoError(t, err)

	h := &recordingHandler{}
	r := outbox.NewRetransmitter(storage, types, newActualBus(t, h), outbox.WithInterval(5*time.Millisecond))
	r.Start(context.Background())
	r.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(h.commands()) == 1
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
}

func TestMemoryStorage_FetchOrderAndLimit(t *testing.T) {
	t.Parallel()

	storage := outbox.NewMemoryStorage()
	base := time.Now()
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, storage.Save(context.Background(), &outbox.Message{
			ID:        ids[i],
			Status:    outbox.StatusPending,
			CreatedAt: base.Add(time.Duration(2-i) * time.Second),
		}))
	}

	got, err := storage.Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[1], got[1].ID)

	require.NoError(t, storage.MarkProcessed(context.Background(), ids[2], uuid.New()))
	got, err = storage.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
