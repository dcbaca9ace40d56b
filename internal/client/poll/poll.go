// Package poll implementa a tarefa repetitiva cancelável usada pelas telas com polling.
package poll

import (
	"context"
	"sync"
	"time"
)

// Func é executada a cada tick; devolver false encerra a tarefa
type Func func(ctx context.Context) bool

// Task é uma tarefa com dono único. Stop libera o timer e espera a goroutine sair.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every começa a executar fn a cada interval. O primeiro tick acontece após um intervalo.
func Every(ctx context.Context, interval time.Duration, fn Func) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !fn(ctx) {
					return
				}
			}
		}
	}()

	return t
}

// Stop cancela e aguarda. Não chamar de dentro da própria Func (use return false).
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// Cancel pede o fim sem esperar; seguro dentro da própria Func
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
}

// Running indica que a goroutine ainda não saiu
func (t *Task) Running() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Done fecha quando a tarefa termina, por Stop, ctx ou Func
func (t *Task) Done() <-chan struct{} { return t.done }
