package params

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/request"
)

// Registration связывает маппер с именем и приоритетом.
type Registration struct {
	Name     string
	Priority int
	Mapper   Mapper
}

// Collector опрашивает зарегистрированные мапперы в порядке убывания
// приоритета и сливает их результаты. При равном приоритете первым
// выполняется маппер, зарегистрированный раньше.
type Collector struct {
	mappers []Registration
	logger  *slog.Logger
}

// CollectorOption настраивает Collector.
type CollectorOption func(*Collector)

// WithCollectorLogger устанавливает логгер коллектора.
func WithCollectorLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector сортирует мапперы один раз; дальше порядок не меняется.
func NewCollector(regs []Registration, opts ...CollectorOption) *Collector {
	sorted := make([]Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.Mapper != nil {
			sorted = append(sorted, reg)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	c := &Collector{
		mappers: sorted,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Order возвращает имена мапперов в порядке выполнения.
func (c *Collector) Order() []string {
	names := make([]string, len(c.mappers))
	for i, reg := range c.mappers {
		names[i] = reg.Name
	}
	return names
}

// Collect строит набор параметров запроса. Значения мапперов с большим
// приоритетом выигрывают; затем добавляются тело запроса и строка запроса
// с наименьшим приоритетом.
func (c *Collector) Collect(snap *request.Snapshot) (Params, error) {
	acc := Params{}
	for _, reg := range c.mappers {
		partial, err := reg.Mapper.Map(snap)
		if err != nil {
			return nil, fmt.Errorf("%w: маппер '%s': %w", errs.ErrExtractionFailed, reg.Name, err)
		}
		acc = acc.Union(partial)
	}

	body, err := snap.ParsedBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrExtractionFailed, err)
	}
	acc = acc.Union(body)
	acc = acc.Union(request.FlattenValues(snap.Query))

	c.logger.Debug("параметры команды собраны",
		slog.Int("mappers", len(c.mappers)),
		slog.Int("params", len(acc)),
	)
	return acc, nil
}
