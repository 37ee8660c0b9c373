// Package kernel управляет жизненным циклом запроса: маршрутизирует его,
// готовит снимок запроса, вызывает слушателей в порядке приоритета и
// передает запрос обработчику маршрута.
package kernel

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/request"
	"github.com/x-research-team/req2cmd/responder"
)

// Listener вызывается ядром до обработчика маршрута. Возвращенный запрос
// заменяет исходный; ошибка прерывает обработку.
type Listener interface {
	OnRequest(r *http.Request) (*http.Request, error)
}

// ListenerFunc является адаптером, позволяющим использовать обычные функции как Listener.
type ListenerFunc func(r *http.Request) (*http.Request, error)

// OnRequest реализует интерфейс Listener.
func (f ListenerFunc) OnRequest(r *http.Request) (*http.Request, error) {
	return f(r)
}

// Registration — слушатель с именем и приоритетом. Больший приоритет
// выполняется раньше.
type Registration struct {
	Name     string
	Priority int
	Listener Listener
}

// Kernel — HTTP-ядро поверх chi.
type Kernel struct {
	router       chi.Router
	logger       *slog.Logger
	maxBodyBytes int64

	mu        sync.RWMutex
	listeners []Registration
}

// Option настраивает Kernel.
type Option func(*Kernel)

// WithLogger устанавливает логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithMaxBodyBytes ограничивает размер читаемого тела запроса.
func WithMaxBodyBytes(n int64) Option {
	return func(k *Kernel) {
		if n > 0 {
			k.maxBodyBytes = n
		}
	}
}

// WithListener регистрирует слушателя.
func WithListener(reg Registration) Option {
	return func(k *Kernel) {
		k.AddListener(reg)
	}
}

// New создает ядро. Паника обработчика превращается в 500.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		router:       chi.NewRouter(),
		logger:       slog.Default(),
		maxBodyBytes: request.DefaultMaxBodyBytes,
	}
	k.router.Use(middleware.Recoverer)

	for _, opt := range opts {
		opt(k)
	}
	return k
}

// AddListener добавляет слушателя. При равных приоритетах раньше
// выполняется зарегистрированный первым.
func (k *Kernel) AddListener(reg Registration) {
	if reg.Listener == nil {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	listeners := append(append([]Registration(nil), k.listeners...), reg)
	sort.SliceStable(listeners, func(i, j int) bool {
		return listeners[i].Priority > listeners[j].Priority
	})
	k.listeners = listeners
}

// Listeners возвращает имена слушателей в порядке выполнения.
func (k *Kernel) Listeners() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	names := make([]string, len(k.listeners))
	for i, reg := range k.listeners {
		names[i] = reg.Name
	}
	return names
}

// Router возвращает маршрутизатор для регистрации обычных маршрутов и middleware.
func (k *Kernel) Router() chi.Router {
	return k.router
}

// Handle регистрирует маршрут. Нулевой дескриптор означает маршрут без команды.
func (k *Kernel) Handle(method, pattern string, d commandtype.Descriptor, handler http.Handler) {
	k.router.Method(method, pattern, k.wrap(d, handler))
}

// ServeHTTP реализует http.Handler.
func (k *Kernel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k.router.ServeHTTP(w, r)
}

func (k *Kernel) wrap(d commandtype.Descriptor, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Маршрут без команды получает запрос нетронутым.
		if !d.IsZero() {
			snap, prepared := request.FromHTTP(r, k.maxBodyBytes)
			ctx := request.WithSnapshot(prepared.Context(), snap)
			r = prepared.WithContext(commandtype.WithDeclared(ctx, d))
		}

		k.mu.RLock()
		listeners := k.listeners
		k.mu.RUnlock()

		for _, reg := range listeners {
			next, err := reg.Listener.OnRequest(r)
			if err != nil {
				k.reject(w, r, reg.Name, err)
				return
			}
			if next != nil {
				r = next
			}
		}

		handler.ServeHTTP(w, r)
	})
}

// reject отображает ошибку слушателя. Клиентские ошибки логируются как
// предупреждения, остальные как ошибки.
func (k *Kernel) reject(w http.ResponseWriter, r *http.Request, listener string, err error) {
	status := responder.WriteError(w, err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	k.logger.Log(r.Context(), level, "запрос отклонен слушателем",
		slog.String("listener", listener),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	)
}
