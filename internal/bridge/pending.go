package bridge

import (
	"context"
	"sync"

	"github.com/pitabwire/outlookbridge/model"
)

// Pending is the eventual result of one dispatched call. It completes
// exactly once.
type Pending struct {
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	result    model.Result
	callbacks []func(model.Result)
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func completedPending(r model.Result) *Pending {
	p := newPending()
	p.complete(r)
	return p
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the outcome. It is the zero Result until Done is closed.
func (p *Pending) Result() model.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Wait blocks until the call completes or ctx ends.
func (p *Pending) Wait(ctx context.Context) (model.Result, error) {
	select {
	case <-p.done:
		return p.Result(), nil
	case <-ctx.Done():
		return model.Result{}, ctx.Err()
	}
}

// OnComplete registers fn to run with the result. If the call has already
// completed fn runs immediately on the calling goroutine.
func (p *Pending) OnComplete(fn func(model.Result)) {
	p.mu.Lock()
	select {
	case <-p.done:
		r := p.result
		p.mu.Unlock()
		fn(r)
		return
	default:
	}
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
}

func (p *Pending) complete(r model.Result) {
	p.once.Do(func() {
		p.mu.Lock()
		p.result = r
		callbacks := p.callbacks
		p.callbacks = nil
		close(p.done)
		p.mu.Unlock()

		for _, fn := range callbacks {
			fn(r)
		}
	})
}
