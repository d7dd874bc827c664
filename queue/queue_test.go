package queue

import (
	"testing"
	"time"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/arena"
	"github.com/gogpu/cmdstream/driver"
	"github.com/gogpu/cmdstream/drivertest"
)

func newTestQueue(capacity, slices int) (*Queue, *cmdstream.CommandStream, *drivertest.SpyDriver) {
	spy := drivertest.New()
	buf := arena.NewBuffer(capacity)
	s := cmdstream.New(spy, buf)
	return New(s, buf, slices), s, spy
}

func TestQueueFlushPublishesSlice(t *testing.T) {
	q, s, spy := newTestQueue(4096, 4)

	s.BeginFrame(1)
	s.Commit()
	q.Flush()

	slices := q.WaitForCommands()
	if len(slices) != 1 {
		t.Fatalf("got %d slices, want 1", len(slices))
	}
	if slices[0].Bytes() == 0 {
		t.Error("slice has zero bytes")
	}

	s.Execute(slices[0].Start)
	q.ReleaseBuffer(slices[0])

	want := []driver.Op{driver.OpBeginFrame, driver.OpCommit}
	ops := spy.Ops()
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}
}

func TestQueueEmptyFlushIsNoop(t *testing.T) {
	q, _, _ := newTestQueue(4096, 4)

	q.Flush()
	if n := q.Pending(); n != 0 {
		t.Errorf("Pending() = %d after empty flush, want 0", n)
	}
}

func TestQueueProducerConsumer(t *testing.T) {
	const generations = 200
	const perGen = 3

	// The arena holds only a few generations at once, so the producer must
	// block in Flush repeatedly and the records must wrap many times.
	q, s, spy := newTestQueue(512, 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			slices := q.WaitForCommands()
			if slices == nil {
				return
			}
			for _, sl := range slices {
				s.Execute(sl.Start)
				q.ReleaseBuffer(sl)
			}
		}
	}()

	for gen := 0; gen < generations; gen++ {
		for i := 0; i < perGen; i++ {
			s.EndFrame(uint32(gen*perGen + i))
		}
		q.Flush()
	}
	q.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not finish")
	}

	calls := spy.Calls()
	if len(calls) != generations*perGen {
		t.Fatalf("executed %d commands, want %d", len(calls), generations*perGen)
	}
	for i, c := range calls {
		if got := c.Args[0].(uint32); got != uint32(i) {
			t.Fatalf("call %d: frame ID = %d, want %d", i, got, i)
		}
	}
}

func TestQueueCloseDrainsRemaining(t *testing.T) {
	q, s, spy := newTestQueue(4096, 4)

	s.Commit()
	q.Close() // records never flushed explicitly

	slices := q.WaitForCommands()
	if len(slices) != 1 {
		t.Fatalf("got %d slices, want 1", len(slices))
	}
	s.Execute(slices[0].Start)
	q.ReleaseBuffer(slices[0])

	if got := q.WaitForCommands(); got != nil {
		t.Errorf("WaitForCommands() after close = %v, want nil", got)
	}
	if spy.CallCount() != 1 {
		t.Errorf("driver called %d times, want 1", spy.CallCount())
	}
}

func TestQueueCloseUnblocksConsumer(t *testing.T) {
	q, _, _ := newTestQueue(4096, 4)

	got := make(chan []Slice, 1)
	go func() {
		got <- q.WaitForCommands()
	}()

	// Give the consumer time to block.
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case slices := <-got:
		if slices != nil {
			t.Errorf("WaitForCommands() = %v, want nil", slices)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForCommands did not return after Close")
	}
}

func TestQueueBackpressure(t *testing.T) {
	// Two-slice budget over a small arena: a third flush cannot proceed
	// until the consumer releases the first slice.
	q, s, _ := newTestQueue(256, 2)

	s.EndFrame(0)
	q.Flush()
	var first Slice
	if slices := q.WaitForCommands(); len(slices) == 1 {
		first = slices[0]
	} else {
		t.Fatalf("got %d slices, want 1", len(slices))
	}

	// A fat second generation pushes in-flight bytes past the budget.
	for i := 0; i < 7; i++ {
		s.EndFrame(uint32(1 + i))
	}
	flushed := make(chan struct{})
	go func() {
		q.Flush()
		close(flushed)
	}()

	select {
	case <-flushed:
		t.Fatal("Flush returned with the arena budget exhausted")
	case <-time.After(20 * time.Millisecond):
	}

	s.Execute(first.Start)
	q.ReleaseBuffer(first)

	select {
	case <-flushed:
	case <-time.After(5 * time.Second):
		t.Fatal("Flush still blocked after ReleaseBuffer")
	}
	q.Close()
}
