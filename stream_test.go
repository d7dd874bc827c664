package cmdstream

import (
	"reflect"
	"strings"
	"testing"

	"github.com/gogpu/cmdstream/arena"
	"github.com/gogpu/cmdstream/driver"
	"github.com/gogpu/cmdstream/drivertest"
	"github.com/gogpu/gputypes"
)

func newTestStream(capacity int) (*CommandStream, *drivertest.SpyDriver) {
	spy := drivertest.New()
	return New(spy, arena.NewBuffer(capacity)), spy
}

// drain terminates the current generation and replays it.
func drain(s *CommandStream) {
	s.Execute(s.MarkEndOfStream())
}

func TestCommandStream_RoundTrip(t *testing.T) {
	viewport := driver.Viewport{X: 8, Y: 16, Width: 640, Height: 480}
	passParams := driver.RenderPassParams{
		Viewport:     viewport,
		ClearColor:   gputypes.Color{R: 0.25, G: 0.5, B: 0.75, A: 1},
		ClearDepth:   1,
		ClearStencil: 0xff,
		ColorLoad:    gputypes.LoadOpClear,
		ColorStore:   gputypes.StoreOpStore,
		DepthLoad:    gputypes.LoadOpLoad,
		DepthStore:   gputypes.StoreOpDiscard,
	}
	texDesc := driver.TextureDesc{
		Size:          gputypes.Extent3D{Width: 256, Height: 128, DepthOrArrayLayers: 1},
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		MipLevelCount: 4,
		SampleCount:   1,
	}
	pipeline := driver.PipelineState{
		Program: 9,
		Raster: driver.RasterState{
			Culling:      gputypes.CullModeNone,
			Topology:     gputypes.PrimitiveTopologyTriangleList,
			DepthCompare: gputypes.CompareFunctionAlways,
			DepthWrite:   true,
			ColorWrite:   gputypes.ColorWriteMaskAll,
		},
	}
	progSrc := driver.ProgramSource{Label: "blit", Vertex: "vs_main", Fragment: "fs_main"}

	tests := []struct {
		name    string
		enqueue func(s *CommandStream)
		want    drivertest.Call
	}{
		{
			name:    "BeginFrame",
			enqueue: func(s *CommandStream) { s.BeginFrame(123456789) },
			want:    drivertest.Call{Op: driver.OpBeginFrame, Args: []any{int64(123456789)}},
		},
		{
			name:    "EndFrame",
			enqueue: func(s *CommandStream) { s.EndFrame(7) },
			want:    drivertest.Call{Op: driver.OpEndFrame, Args: []any{uint32(7)}},
		},
		{
			name:    "Flush",
			enqueue: func(s *CommandStream) { s.Flush() },
			want:    drivertest.Call{Op: driver.OpFlush},
		},
		{
			name:    "Tick",
			enqueue: func(s *CommandStream) { s.Tick() },
			want:    drivertest.Call{Op: driver.OpTick},
		},
		{
			name:    "CreateBuffer",
			enqueue: func(s *CommandStream) { s.CreateBuffer(4096, gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst) },
			want: drivertest.Call{Op: driver.OpCreateBuffer, Args: []any{
				driver.BufferID(1), uint64(4096), gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
			}},
		},
		{
			name:    "DestroyBuffer",
			enqueue: func(s *CommandStream) { s.DestroyBuffer(42) },
			want:    drivertest.Call{Op: driver.OpDestroyBuffer, Args: []any{driver.BufferID(42)}},
		},
		{
			name: "UpdateBuffer",
			enqueue: func(s *CommandStream) {
				s.UpdateBuffer(3, 64, driver.NewBufferDescriptor([]byte("vertices"), nil))
			},
			want: drivertest.Call{Op: driver.OpUpdateBuffer, Args: []any{
				driver.BufferID(3), uint64(64), []byte("vertices"),
			}},
		},
		{
			name:    "CreateTexture",
			enqueue: func(s *CommandStream) { s.CreateTexture(texDesc) },
			want:    drivertest.Call{Op: driver.OpCreateTexture, Args: []any{driver.TextureID(1), texDesc}},
		},
		{
			name:    "DestroyTexture",
			enqueue: func(s *CommandStream) { s.DestroyTexture(42) },
			want:    drivertest.Call{Op: driver.OpDestroyTexture, Args: []any{driver.TextureID(42)}},
		},
		{
			name: "UpdateTexture",
			enqueue: func(s *CommandStream) {
				s.UpdateTexture(5, 2, driver.NewBufferDescriptor([]byte("pixels"), nil))
			},
			want: drivertest.Call{Op: driver.OpUpdateTexture, Args: []any{
				driver.TextureID(5), uint32(2), []byte("pixels"),
			}},
		},
		{
			name:    "CreateProgram",
			enqueue: func(s *CommandStream) { s.CreateProgram(progSrc) },
			want:    drivertest.Call{Op: driver.OpCreateProgram, Args: []any{driver.ProgramID(1), progSrc}},
		},
		{
			name:    "DestroyProgram",
			enqueue: func(s *CommandStream) { s.DestroyProgram(42) },
			want:    drivertest.Call{Op: driver.OpDestroyProgram, Args: []any{driver.ProgramID(42)}},
		},
		{
			name:    "BeginRenderPass",
			enqueue: func(s *CommandStream) { s.BeginRenderPass(11, passParams) },
			want:    drivertest.Call{Op: driver.OpBeginRenderPass, Args: []any{driver.TextureID(11), passParams}},
		},
		{
			name:    "EndRenderPass",
			enqueue: func(s *CommandStream) { s.EndRenderPass() },
			want:    drivertest.Call{Op: driver.OpEndRenderPass},
		},
		{
			name:    "SetViewport",
			enqueue: func(s *CommandStream) { s.SetViewport(viewport) },
			want:    drivertest.Call{Op: driver.OpSetViewport, Args: []any{viewport}},
		},
		{
			name:    "SetScissor",
			enqueue: func(s *CommandStream) { s.SetScissor(viewport) },
			want:    drivertest.Call{Op: driver.OpSetScissor, Args: []any{viewport}},
		},
		{
			name:    "Clear",
			enqueue: func(s *CommandStream) { s.Clear(gputypes.Color{R: 1, G: 0.5, B: 0.25, A: 1}) },
			want:    drivertest.Call{Op: driver.OpClear, Args: []any{gputypes.Color{R: 1, G: 0.5, B: 0.25, A: 1}}},
		},
		{
			name:    "Draw",
			enqueue: func(s *CommandStream) { s.Draw(pipeline, 2, 3, 6, 36) },
			want: drivertest.Call{Op: driver.OpDraw, Args: []any{
				pipeline, driver.BufferID(2), driver.BufferID(3), uint32(6), uint32(36),
			}},
		},
		{
			name:    "Commit",
			enqueue: func(s *CommandStream) { s.Commit() },
			want:    drivertest.Call{Op: driver.OpCommit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, spy := newTestStream(1024)
			tt.enqueue(s)

			if got := spy.CallCount(); got != 0 {
				t.Fatalf("driver called %d times before Execute", got)
			}
			drain(s)

			calls := spy.Calls()
			if len(calls) != 1 {
				t.Fatalf("driver called %d times, want 1", len(calls))
			}
			if !reflect.DeepEqual(calls[0], tt.want) {
				t.Errorf("call = %+v, want %+v", calls[0], tt.want)
			}
		})
	}
}

func TestCommandStream_FIFOOrder(t *testing.T) {
	s, spy := newTestStream(1024)

	// A viewport change, a custom command and a clear, replayed in enqueue
	// order with the closure running between the two driver calls.
	var customAt int
	s.SetViewport(driver.Viewport{X: 0, Y: 0, Width: 1920, Height: 1080})
	s.EnqueueCustomCommand(func() { customAt = spy.CallCount() })
	s.Clear(gputypes.Color{R: 0, G: 0, B: 0, A: 1})

	drain(s)

	want := []driver.Op{driver.OpSetViewport, driver.OpClear}
	if got := spy.Ops(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if customAt != 1 {
		t.Errorf("custom command ran after %d driver calls, want 1", customAt)
	}
	got := spy.Calls()[0].Args[0].(driver.Viewport)
	if got != (driver.Viewport{Width: 1920, Height: 1080}) {
		t.Errorf("viewport = %+v", got)
	}
}

func TestCommandStream_CustomCommandRunsOnce(t *testing.T) {
	s, _ := newTestStream(1024)

	var runs int
	s.EnqueueCustomCommand(func() { runs++ })
	s.EnqueueCustomCommand(nil) // ignored
	drain(s)

	if runs != 1 {
		t.Errorf("closure ran %d times, want 1", runs)
	}
	st := s.Stats()
	if st.CustomCommands != 1 {
		t.Errorf("Stats().CustomCommands = %d, want 1", st.CustomCommands)
	}
}

func TestCommandStream_SynchronousDispatch(t *testing.T) {
	spy := drivertest.New()
	spy.Disp = driver.NewDispatcher(driver.OpTick, driver.OpCreateBuffer)
	s := New(spy, arena.NewBuffer(1024))

	s.Tick()
	id := s.CreateBuffer(128, gputypes.BufferUsageUniform)
	s.Flush() // deferred

	// Synchronous ops reached the driver before any drain.
	want := []driver.Op{driver.OpTick, driver.OpCreateBuffer}
	if got := spy.Ops(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ops before Execute = %v, want %v", got, want)
	}
	if id == driver.InvalidID {
		t.Error("CreateBuffer returned InvalidID")
	}

	drain(s)
	want = append(want, driver.OpFlush)
	if got := spy.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("ops after Execute = %v, want %v", got, want)
	}
}

func TestCommandStream_HandleValidBeforeDrain(t *testing.T) {
	s, spy := newTestStream(1024)

	// The handle from a deferred creation is usable in commands enqueued
	// before the creation itself has executed.
	id := s.CreateBuffer(64, gputypes.BufferUsageVertex)
	s.DestroyBuffer(id)
	drain(s)

	calls := spy.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Args[0].(driver.BufferID) != id {
		t.Errorf("CreateBuffer replayed with ID %v, want %v", calls[0].Args[0], id)
	}
	if calls[1].Args[0].(driver.BufferID) != id {
		t.Errorf("DestroyBuffer replayed with ID %v, want %v", calls[1].Args[0], id)
	}
}

func TestCommandStream_UploadOwnership(t *testing.T) {
	s, spy := newTestStream(4096)

	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	var releases int
	var released []byte
	s.UpdateBuffer(1, 0, driver.NewBufferDescriptor(payload, func(p []byte) {
		releases++
		released = p
	}))

	if releases != 0 {
		t.Fatal("release fired before Execute")
	}
	drain(s)

	if releases != 1 {
		t.Fatalf("release fired %d times, want 1", releases)
	}
	if &released[0] != &payload[0] {
		t.Error("release callback got a different slice")
	}
	got := spy.Calls()[0].Args[2].([]byte)
	if len(got) != 1024 {
		t.Fatalf("driver saw %d bytes, want 1024", len(got))
	}
	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("payload[%d] = %d, want %d", i, b, byte(i))
		}
	}
}

func TestCommandStream_Wraparound(t *testing.T) {
	s, spy := newTestStream(256)

	// Many generations through a small arena. Records wrap repeatedly; the
	// skip marker must carry the walk across each wrap without losing or
	// reordering commands.
	var want []uint32
	for gen := 0; gen < 50; gen++ {
		before := s.buf.Written()
		for i := 0; i < 3; i++ {
			id := uint32(gen*3 + i)
			s.EndFrame(id)
			want = append(want, id)
		}
		drain(s)
		s.buf.Release(int(s.buf.Written() - before))
	}

	calls := spy.Calls()
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d", len(calls), len(want))
	}
	for i, c := range calls {
		if c.Op != driver.OpEndFrame {
			t.Fatalf("call %d: op = %v, want EndFrame", i, c.Op)
		}
		if got := c.Args[0].(uint32); got != want[i] {
			t.Fatalf("call %d: frame ID = %d, want %d", i, got, want[i])
		}
	}
}

func TestCommandStream_RecordAlignment(t *testing.T) {
	s, _ := newTestStream(4096)

	s.BeginFrame(1)
	s.EndFrame(1)
	s.SetViewport(driver.Viewport{Width: 100, Height: 100})
	s.CreateBuffer(16, gputypes.BufferUsageVertex)
	s.Commit()
	start := s.MarkEndOfStream()

	// Walk the raw records: every offset and size must be 8-aligned and the
	// walk must visit exactly the enqueued records plus the sentinel.
	data := s.buf.Bytes()
	off := start
	var n int
	for {
		if off%arena.Align != 0 {
			t.Fatalf("record %d at unaligned offset %d", n, off)
		}
		code, size := getHeader(data[off:])
		if code == recEnd {
			break
		}
		if size == 0 || int(size)%arena.Align != 0 {
			t.Fatalf("record %d has size %d, want positive multiple of %d", n, size, arena.Align)
		}
		n++
		off += int(size)
	}
	if n != 5 {
		t.Errorf("walked %d records, want 5", n)
	}

	s.Execute(start)
}

func TestCommandStream_CapacityPanics(t *testing.T) {
	s, _ := newTestStream(64)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on arena overflow")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "cannot record command") {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	for i := 0; i < 100; i++ {
		s.Commit()
	}
}

func TestCommandStream_ReentrantExecutePanics(t *testing.T) {
	s, _ := newTestStream(1024)

	s.EnqueueCustomCommand(func() {
		s.Execute(0)
	})
	start := s.MarkEndOfStream()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on reentrant Execute")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "concurrent Execute") {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	s.Execute(start)
}

func TestCommandStream_Stats(t *testing.T) {
	s, _ := newTestStream(1024)

	s.BeginFrame(1)
	s.EnqueueCustomCommand(func() {})
	s.Commit()
	drain(s)
	s.EndFrame(1)
	drain(s)

	got := s.Stats()
	want := StreamStats{Recorded: 4, CustomCommands: 1, Executed: 4, Drains: 2}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

type captureObserver struct {
	begins int
	ends   []DrainStats
}

func (o *captureObserver) BeginDrain() { o.begins++ }

func (o *captureObserver) EndDrain(st DrainStats) { o.ends = append(o.ends, st) }

func TestCommandStream_Observer(t *testing.T) {
	s, _ := newTestStream(1024)
	var obs captureObserver
	s.SetObserver(&obs)

	s.BeginFrame(1)
	s.EnqueueCustomCommand(func() {})
	s.Commit()
	drain(s)

	if obs.begins != 1 || len(obs.ends) != 1 {
		t.Fatalf("observer saw %d begins, %d ends, want 1, 1", obs.begins, len(obs.ends))
	}
	st := obs.ends[0]
	if st.Records != 3 {
		t.Errorf("DrainStats.Records = %d, want 3", st.Records)
	}
	if st.CustomCommands != 1 {
		t.Errorf("DrainStats.CustomCommands = %d, want 1", st.CustomCommands)
	}
	if st.Bytes == 0 {
		t.Error("DrainStats.Bytes = 0")
	}
	if st.Duration < 0 {
		t.Errorf("DrainStats.Duration = %v", st.Duration)
	}
}

func TestCommandStream_HasCommands(t *testing.T) {
	s, _ := newTestStream(1024)
	if s.HasCommands() {
		t.Error("HasCommands() = true on a fresh stream")
	}
	s.Commit()
	if !s.HasCommands() {
		t.Error("HasCommands() = false after enqueue")
	}
	drain(s)
	if s.HasCommands() {
		t.Error("HasCommands() = true after drain")
	}
}

func TestCommandStream_CloseDrainsPending(t *testing.T) {
	s, spy := newTestStream(1024)

	var released bool
	s.Commit()
	s.UpdateBuffer(1, 0, driver.NewBufferDescriptor([]byte("x"), func([]byte) {
		released = true
	}))
	s.Close()

	want := []driver.Op{driver.OpCommit, driver.OpUpdateBuffer}
	if got := spy.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if !released {
		t.Error("descriptor not released on Close")
	}
	if s.Head() != 0 {
		t.Errorf("Head() = %d after Close, want 0", s.Head())
	}
}

func TestCommandStream_WalkAdvancesPastFailingCalls(t *testing.T) {
	s, spy := newTestStream(1024)

	// A driver operation failing internally must not derail the walk; the
	// records after it still execute.
	var failed bool
	spy.OnCall = func(c drivertest.Call) {
		if c.Op == driver.OpBeginFrame {
			failed = true // the driver noted an error and moved on
		}
	}
	s.BeginFrame(1)
	s.Commit()
	drain(s)

	if !failed {
		t.Fatal("hook never fired")
	}
	if got := spy.CallCount(); got != 2 {
		t.Errorf("driver called %d times, want 2", got)
	}
}

func BenchmarkCommandStream_Record(b *testing.B) {
	s, _ := newTestStream(1 << 20)
	v := driver.Viewport{Width: 1920, Height: 1080}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.SetViewport(v)
		if i%1024 == 1023 {
			before := s.buf.Written()
			drain(s)
			s.buf.Release(int(s.buf.Written() - before))
		}
	}
}

func BenchmarkCommandStream_RecordExecute(b *testing.B) {
	spy := drivertest.New()
	s := New(spy, arena.NewBuffer(1<<20))
	v := driver.Viewport{Width: 1920, Height: 1080}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		before := s.buf.Written()
		s.SetViewport(v)
		s.Clear(gputypes.Color{A: 1})
		drain(s)
		s.buf.Release(int(s.buf.Written() - before))
		spy.Reset()
	}
}
