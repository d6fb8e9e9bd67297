// Package fanout runs independent tasks concurrently and waits for all of
// them, keeping every outcome. A failing task never cancels its siblings.
package fanout

import (
	"context"
	"fmt"
	"sync"
)

type Task[T any] func(ctx context.Context) (T, error)

type Outcome[T any] struct {
	Value T
	Err   error
}

// All runs every task and returns their outcomes in input order. Panics
// are captured as errors.
func All[T any](ctx context.Context, tasks []Task[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = Outcome[T]{Err: fmt.Errorf("task panicked: %v", r)}
				}
			}()

			value, err := task(ctx)
			outcomes[i] = Outcome[T]{Value: value, Err: err}
		}()
	}
	wg.Wait()

	return outcomes
}

// Failed counts outcomes carrying an error.
func Failed[T any](outcomes []Outcome[T]) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
