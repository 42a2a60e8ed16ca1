package performance

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smc-signals/internal/engine"
	"smc-signals/internal/models"
)

// BenchmarkWorkerPool benchmarks the worker pool performance.
func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	ctx := context.Background()
	var wg sync.WaitGroup
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(1)
		if err := pool.Submit(ctx, wg.Done); err != nil {
			b.Fatal(err)
		}
	}
	wg.Wait()
}

// BenchmarkConcurrentSymbolProcessing replays bars for many symbols, one
// engine per symbol.
func BenchmarkConcurrentSymbolProcessing(b *testing.B) {
	symbols := []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "USDCAD", "NZDUSD", "EURGBP", "EURJPY"}
	bars := generateTestBars(300)
	ctx := context.Background()

	replay := func(_ context.Context, sym string) int {
		e, err := engine.New(engine.DefaultConfig())
		if err != nil {
			b.Fatal(err)
		}
		n := 0
		for _, bar := range bars {
			n += len(e.OnBar(sym, bar).Signals)
		}
		return n
	}

	b.Run("Sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			for _, sym := range symbols {
				replay(ctx, sym)
			}
		}
	})

	b.Run("WorkerPool", func(b *testing.B) {
		pool := NewWorkerPool(4)
		pool.Start()
		defer pool.Stop()

		for i := 0; i < b.N; i++ {
			if _, err := Each(ctx, pool, symbols, replay); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// generateTestBars produces a wave with enough swings to exercise the detectors.
func generateTestBars(count int) []models.Bar {
	bars := make([]models.Bar, count)
	start := time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC)
	for i := range bars {
		mid := 1.1 + 0.01*math.Sin(float64(i)/7) + 0.002*math.Sin(float64(i)/1.7)
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      mid - 0.0002,
			High:      mid + 0.0008,
			Low:       mid - 0.0008,
			Close:     mid + 0.0002,
			Volume:    1000,
		}
	}
	return bars
}

func TestWorkerPoolFunctionality(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()

	ctx := context.Background()
	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := pool.Submit(ctx, func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for tasks to complete")
	}

	pool.Stop()

	if counter != 100 {
		t.Errorf("completed %d tasks, want 100", counter)
	}
	if stats := pool.Stats(); stats.TasksDone != 100 || stats.Running {
		t.Errorf("stats = %+v", stats)
	}
	if err := pool.Submit(ctx, func() {}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("submit after stop = %v", err)
	}
}

func TestSubmit_ContextCancelled(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	block := make(chan struct{})
	defer close(block)

	started := make(chan struct{})
	ctx := context.Background()
	if err := pool.Submit(ctx, func() { close(started); <-block }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	for i := 0; i < cap(pool.taskQueue); i++ {
		if err := pool.Submit(ctx, func() {}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := pool.Submit(cancelled, func() {}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEach_PreservesOrder(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Stop()

	items := []int{5, 1, 4, 2, 3}
	got, err := Each(context.Background(), pool, items, func(_ context.Context, n int) int {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * n
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	for i, n := range items {
		if got[i] != n*n {
			t.Errorf("result %d = %d, want %d", i, got[i], n*n)
		}
	}
}

func TestEach_SymbolEngines(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Stop()

	bars := generateTestBars(120)
	symbols := []string{"EURUSD", "GBPUSD", "USDJPY"}
	counts, err := Each(context.Background(), pool, symbols, func(_ context.Context, sym string) int {
		e, err := engine.New(engine.DefaultConfig())
		if err != nil {
			return -1
		}
		for _, bar := range bars {
			e.OnBar(sym, bar)
		}
		st, _ := e.State(sym)
		return st.History().Len()
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	for i, n := range counts {
		if n != 100 {
			t.Errorf("%s history = %d, want 100", symbols[i], n)
		}
	}
}

func TestBatchProcessorFunctionality(t *testing.T) {
	var batches [][]int

	processor := NewBatchProcessor(5, func(items []int) error {
		batch := make([]int, len(items))
		copy(batch, items)
		batches = append(batches, batch)
		return nil
	})

	for i := 0; i < 12; i++ {
		if err := processor.Add(i); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := processor.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 5 || len(batches[1]) != 5 || len(batches[2]) != 2 {
		t.Error("Batch sizes incorrect")
	}
	if processor.Processed() != 12 {
		t.Errorf("processed = %d", processor.Processed())
	}
}

func TestBatchProcessor_Error(t *testing.T) {
	boom := errors.New("boom")
	processor := NewBatchProcessor(2, func([]string) error { return boom })
	if err := processor.Add("a", "b", "c"); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if processor.Processed() != 0 {
		t.Errorf("processed = %d", processor.Processed())
	}
}
