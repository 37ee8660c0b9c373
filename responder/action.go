package responder

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/x-research-team/req2cmd/bus/command"
	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/request"
)

// StatusCoder реализуется результатами, которые сами выбирают HTTP-статус.
type StatusCoder interface {
	StatusCode() int
}

// Action — терминальный обработчик маршрута: берет команду из контекста
// запроса, отправляет ее в шину и отображает результат.
type Action struct {
	bus           command.IBus
	logger        *slog.Logger
	successStatus int
}

// Option настраивает Action.
type Option func(*Action)

// WithLogger устанавливает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Action) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSuccessStatus задает статус успешного ответа с телом.
func WithSuccessStatus(status int) Option {
	return func(a *Action) {
		if status >= 200 && status < 300 {
			a.successStatus = status
		}
	}
}

// NewAction создает обработчик поверх шины.
func NewAction(bus command.IBus, opts ...Option) *Action {
	a := &Action{
		bus:           bus,
		logger:        slog.Default(),
		successStatus: http.StatusOK,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ServeHTTP реализует http.Handler.
func (a *Action) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cmd, ok := request.CommandFrom(ctx)
	if !ok {
		d, _ := commandtype.DeclaredFrom(ctx)
		err := fmt.Errorf("%w: маршрут %s %s, тип %s", errs.ErrMissingAttachedCommand, r.Method, r.URL.Path, d)
		a.logger.ErrorContext(ctx, "команда не прикреплена к запросу", slog.Any("error", err))
		WriteError(w, err)
		return
	}

	result, err := a.bus.Dispatch(ctx, cmd)
	if err != nil {
		a.fail(w, r, fmt.Errorf("%w: %w", errs.ErrDispatchFailed, err))
		return
	}

	status := a.successStatus
	if result == nil {
		status = http.StatusNoContent
	} else if sc, ok := result.(StatusCoder); ok {
		status = sc.StatusCode()
	}

	if err := WriteJSON(w, status, result); err != nil {
		a.logger.ErrorContext(ctx, "не удалось записать ответ", slog.Any("error", err))
	}
}

// fail логирует ошибку отправки с уровнем, зависящим от ее вида.
func (a *Action) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := WriteError(w, err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	a.logger.Log(r.Context(), level, "ошибка выполнения команды",
		slog.Int("status", status),
		slog.Any("error", err),
	)
}
