package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParMapResult_Order(t *testing.T) {
	out := ParMapResult(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, v int) Result[int] {
		time.Sleep(time.Duration(5-v) * time.Millisecond)
		return Ok(v * 10)
	})
	for i, r := range out {
		if v, _ := r.Unwrap(); v != (i+1)*10 {
			t.Fatalf("index %d: got %d", i, v)
		}
	}
}

func TestParMapResult_Bounded(t *testing.T) {
	var active, peak atomic.Int32
	ParMapResult(context.Background(), make([]int, 20), 3, func(context.Context, int) Result[int] {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return Ok(0)
	})
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d", peak.Load())
	}
}

func TestParMapResult_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := ParMapResult(ctx, []int{1, 2, 3}, 1, func(_ context.Context, v int) Result[int] { return Ok(v) })
	for _, r := range out {
		if !errors.Is(r.Error(), context.Canceled) {
			t.Fatalf("got %v", r.Error())
		}
	}
	if len(ParMapResult(context.Background(), nil, 4, func(context.Context, int) Result[int] { return Ok(1) })) != 0 {
		t.Fatal("empty input")
	}
}

func TestFanOut(t *testing.T) {
	out := FanOut(func() int { return 1 }, func() int { return 2 }, func() int { return 3 })
	if len(out) != 3 || out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Fatalf("got %v", out)
	}
}
