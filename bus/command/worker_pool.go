package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-reflect"
)

// poolProvider выполняет команды в пуле горутин, делегируя их следующему
// провайдеру.
type poolProvider struct {
	next    Provider
	workers int
	tasks   chan *task
	wg      sync.WaitGroup
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// newPoolProvider создает и запускает пул.
func newPoolProvider(next Provider, workers, queueSize int) *poolProvider {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &poolProvider{
		next:    next,
		workers: workers,
		tasks:   make(chan *task, queueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	p.run()
	return p
}

// run запускает воркеров пула.
func (p *poolProvider) run() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker - это основная функция горутины-воркера.
func (p *poolProvider) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			p.execute(t)
		case <-p.stopCh:
			return
		}
	}
}

func (p *poolProvider) execute(t *task) {
	if err := t.ctx.Err(); err != nil {
		t.result <- taskResult{err: err}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.result <- taskResult{err: fmt.Errorf("паника в обработчике команды: %v", r)}
		}
	}()
	value, err := p.next.Dispatch(t.ctx, t.cmd)
	t.result <- taskResult{value: value, err: err}
}

// Dispatch ставит команду в очередь и ждет результат.
func (p *poolProvider) Dispatch(ctx context.Context, cmd any) (any, error) {
	t := &task{ctx: ctx, cmd: cmd, result: make(chan taskResult, 1)}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.stopCh:
		return nil, ErrBusShutdown
	}

	select {
	case res := <-t.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.doneCh:
		select {
		case res := <-t.result:
			return res.value, res.err
		default:
			return nil, ErrBusShutdown
		}
	}
}

// Register делегирует вызов.
func (p *poolProvider) Register(cmdType reflect.Type, handler Handler) error {
	return p.next.Register(cmdType, handler)
}

// Shutdown останавливает воркеров и дожидается завершения выполняемых команд.
// Команды, оставшиеся в очереди, завершаются с ErrBusShutdown.
func (p *poolProvider) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		close(p.stopCh)
		go func() {
			p.wg.Wait()
			close(p.doneCh)
		}()
	})

	select {
	case <-p.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.next.Shutdown(ctx)
}
