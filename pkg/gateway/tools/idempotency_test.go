package tools

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestIdemStore_SingleExecution(t *testing.T) {
	s := NewIdemStore()
	var execs atomic.Int32

	exec := func(context.Context) (map[string]any, error) {
		execs.Add(1)
		return map[string]any{"id": "one"}, nil
	}

	out, replayed, err := s.Do(context.Background(), "k", exec)
	if err != nil || replayed {
		t.Fatalf("first Do() = %v replayed=%v", err, replayed)
	}
	if out["id"] != "one" {
		t.Fatalf("out = %v", out)
	}

	out, replayed, err = s.Do(context.Background(), "k", exec)
	if err != nil {
		t.Fatalf("second Do() error = %v", err)
	}
	if !replayed {
		t.Error("second Do() should replay")
	}
	if out["id"] != "one" || execs.Load() != 1 {
		t.Errorf("out=%v execs=%d, want cached result and one execution", out, execs.Load())
	}
}

func TestIdemStore_FailureIsRetryable(t *testing.T) {
	s := NewIdemStore()
	boom := errors.New("backend down")

	_, _, err := s.Do(context.Background(), "k", func(context.Context) (map[string]any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want backend failure", err)
	}
	if s.Completed("k") {
		t.Error("failed key must not read as completed")
	}

	out, replayed, err := s.Do(context.Background(), "k", func(context.Context) (map[string]any, error) {
		return map[string]any{"id": "two"}, nil
	})
	if err != nil || replayed {
		t.Fatalf("retry Do() = %v replayed=%v", err, replayed)
	}
	if out["id"] != "two" {
		t.Errorf("out = %v", out)
	}
	if !s.Completed("k") {
		t.Error("successful key should read as completed")
	}
}

func TestIdemStore_ConcurrentCallersShareResult(t *testing.T) {
	s := NewIdemStore()
	var execs atomic.Int32
	gate := make(chan struct{})

	exec := func(context.Context) (map[string]any, error) {
		execs.Add(1)
		<-gate
		return map[string]any{"id": "shared"}, nil
	}

	const n = 10
	outs := make([]map[string]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, _, err := s.Do(context.Background(), "k", exec)
			if err != nil {
				t.Errorf("Do() error = %v", err)
				return
			}
			outs[i] = out
		}(i)
	}
	close(gate)
	wg.Wait()

	if got := execs.Load(); got != 1 {
		t.Errorf("executions = %d, want 1", got)
	}
	for i, out := range outs {
		if out == nil || out["id"] != "shared" {
			t.Errorf("caller %d got %v", i, out)
		}
	}
}

func TestIdemStore_WaiterRespectsContext(t *testing.T) {
	s := NewIdemStore()
	started := make(chan struct{})
	block := make(chan struct{})
	defer close(block)

	go func() {
		s.Do(context.Background(), "k", func(context.Context) (map[string]any, error) {
			close(started)
			<-block
			return map[string]any{}, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Do(ctx, "k", func(context.Context) (map[string]any, error) {
		return map[string]any{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
