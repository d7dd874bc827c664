package cmdstream

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/cmdstream/arena"
	"github.com/gogpu/cmdstream/driver"
	"github.com/gogpu/gputypes"
)

// CommandStream records driver invocations for deferred execution. It
// borrows a driver and an arena buffer, both of which must outlive the
// stream.
//
// The typed methods mirror driver.Driver one to one. Each consults the
// driver's dispatch table: synchronous operations run immediately on the
// calling thread, deferred ones become records in the arena. Argument
// values are captured at enqueue time; argument types that transfer
// ownership (driver.BufferDescriptor) are moved into the record and must
// not be touched by the caller afterward.
type CommandStream struct {
	drv  driver.Driver
	disp driver.Dispatcher
	buf  *arena.Buffer

	// Slot rings for argument values the byte arena cannot hold.
	custom *arena.Ring[func()]
	descs  *arena.Ring[driver.BufferDescriptor]
	progs  *arena.Ring[driver.ProgramSource]

	// start is the offset of the current generation's first record.
	// Producer side.
	start int

	// dirty is true when records exist past the last end-of-stream marker.
	// Producer side.
	dirty bool

	draining atomic.Bool
	observer Observer

	recorded       atomic.Int64
	customRecorded atomic.Int64
	executed       atomic.Int64
	drains         atomic.Int64
}

// New creates a command stream over the given driver and arena buffer.
// Slot ring capacities are sized from the buffer capacity; a buffer that
// can hold N bytes of records gets N/64 slots for closures and payload
// descriptors, enough for a stream of minimum-size records.
func New(drv driver.Driver, buf *arena.Buffer) *CommandStream {
	slots := buf.Capacity() / 64
	return &CommandStream{
		drv:    drv,
		disp:   drv.Dispatcher(),
		buf:    buf,
		custom: arena.NewRing[func()](slots),
		descs:  arena.NewRing[driver.BufferDescriptor](slots),
		progs:  arena.NewRing[driver.ProgramSource](slots),
	}
}

// SetObserver installs drain instrumentation. Must be called before the
// consumer starts; passing nil removes the observer.
func (s *CommandStream) SetObserver(o Observer) {
	s.observer = o
}

// Stats returns a snapshot of the stream's cumulative counters.
func (s *CommandStream) Stats() StreamStats {
	return StreamStats{
		Recorded:       s.recorded.Load(),
		CustomCommands: s.customRecorded.Load(),
		Executed:       s.executed.Load(),
		Drains:         s.drains.Load(),
	}
}

// Head returns the arena write offset. The offset before the first enqueue
// of a generation is the start offset to later pass to Execute.
func (s *CommandStream) Head() int {
	return s.buf.Head()
}

// HasCommands reports whether records have been enqueued since the last
// end-of-stream marker. Producer side.
func (s *CommandStream) HasCommands() bool {
	return s.dirty
}

// record reserves an aligned record, stamps its header and returns the
// payload span. A capacity failure is a configuration error and panics:
// silently wrapping into unexecuted records would corrupt the stream.
func (s *CommandStream) record(code uint32, payload int) []byte {
	size := recordHeaderSize + arena.AlignUp(payload)
	off, tail, wrapped, err := s.buf.Alloc(size)
	if err != nil {
		panic(fmt.Sprintf("cmdstream: cannot record command: %v", err))
	}
	data := s.buf.Bytes()
	if wrapped {
		putHeader(data[tail:], recSkip, 0)
	}
	putHeader(data[off:], code, uint32(size))
	s.dirty = true
	s.recorded.Add(1)
	return data[off+recordHeaderSize : off+size]
}

// MarkEndOfStream stamps the end-of-stream sentinel and returns the start
// offset of the generation it terminates. Called by the embedding's
// buffer-swap logic once the producer's writes for a generation are done;
// the returned offset is what the consumer passes to Execute.
func (s *CommandStream) MarkEndOfStream() (start int) {
	size := recordHeaderSize
	off, tail, wrapped, err := s.buf.Alloc(size)
	if err != nil {
		panic(fmt.Sprintf("cmdstream: cannot mark end of stream: %v", err))
	}
	data := s.buf.Bytes()
	if wrapped {
		putHeader(data[tail:], recSkip, 0)
	}
	putHeader(data[off:], recEnd, uint32(size))

	start = s.start
	s.start = s.buf.Head()
	s.dirty = false
	return start
}

// Reset clears the arena and slot rings for reuse. Only legal when every
// enqueued record has been executed and no drain is in progress.
func (s *CommandStream) Reset() {
	if s.draining.Load() {
		panic("cmdstream: Reset during Execute")
	}
	s.buf.Reset()
	s.custom.Reset()
	s.descs.Reset()
	s.progs.Reset()
	s.start = 0
	s.dirty = false
}

// Close drains any records not yet published and resets the stream, so
// every constructed record is destructed exactly once even on teardown.
// Generations already handed to a consumer must be drained by that
// consumer first.
func (s *CommandStream) Close() {
	if s.dirty {
		start := s.MarkEndOfStream()
		s.Execute(start)
	}
	s.Reset()
}

// EnqueueCustomCommand records an arbitrary deferred action. The closure
// runs exactly once during the drain, in FIFO order with every other
// record. A nil fn is ignored.
func (s *CommandStream) EnqueueCustomCommand(fn func()) {
	if fn == nil {
		return
	}
	idx, err := s.custom.Put(fn)
	if err != nil {
		panic(fmt.Sprintf("cmdstream: cannot record custom command: %v", err))
	}
	p := s.record(recCustom, sizeCustom)
	putU32(p, 0, idx)
	s.customRecorded.Add(1)
}

// BeginFrame starts a frame at the given timestamp.
func (s *CommandStream) BeginFrame(frameTimeNanos int64) {
	if s.disp.Synchronous(driver.OpBeginFrame) {
		s.drv.BeginFrame(frameTimeNanos)
		return
	}
	p := s.record(uint32(driver.OpBeginFrame), sizeBeginFrame)
	putU64(p, 0, uint64(frameTimeNanos))
}

// EndFrame ends the frame with the given ID.
func (s *CommandStream) EndFrame(frameID uint32) {
	if s.disp.Synchronous(driver.OpEndFrame) {
		s.drv.EndFrame(frameID)
		return
	}
	p := s.record(uint32(driver.OpEndFrame), sizeEndFrame)
	putU32(p, 0, frameID)
}

// Flush asks the driver to submit any batched work.
func (s *CommandStream) Flush() {
	if s.disp.Synchronous(driver.OpFlush) {
		s.drv.Flush()
		return
	}
	s.record(uint32(driver.OpFlush), sizeNoArgs)
}

// Tick lets the driver run periodic housekeeping.
func (s *CommandStream) Tick() {
	if s.disp.Synchronous(driver.OpTick) {
		s.drv.Tick()
		return
	}
	s.record(uint32(driver.OpTick), sizeNoArgs)
}

// CreateBuffer allocates a buffer handle synchronously and records the
// creation. The returned ID is valid immediately for use in later
// commands, even though the driver object does not exist until the drain.
func (s *CommandStream) CreateBuffer(size uint64, usage gputypes.BufferUsage) driver.BufferID {
	id := s.drv.AllocBufferID()
	if s.disp.Synchronous(driver.OpCreateBuffer) {
		s.drv.CreateBuffer(id, size, usage)
		return id
	}
	p := s.record(uint32(driver.OpCreateBuffer), sizeCreateBuffer)
	off := putU64(p, 0, uint64(id))
	off = putU64(p, off, size)
	putU32(p, off, uint32(usage))
	return id
}

// DestroyBuffer records destruction of a buffer.
func (s *CommandStream) DestroyBuffer(id driver.BufferID) {
	if s.disp.Synchronous(driver.OpDestroyBuffer) {
		s.drv.DestroyBuffer(id)
		return
	}
	p := s.record(uint32(driver.OpDestroyBuffer), sizeHandleOnly)
	putU64(p, 0, uint64(id))
}

// UpdateBuffer records an upload into a buffer region. Ownership of data
// moves into the record; the caller must not touch it afterward. The
// driver releases the descriptor when the payload has been consumed.
func (s *CommandStream) UpdateBuffer(id driver.BufferID, offset uint64, data driver.BufferDescriptor) {
	if s.disp.Synchronous(driver.OpUpdateBuffer) {
		s.drv.UpdateBuffer(id, offset, data)
		return
	}
	idx, err := s.descs.Put(data)
	if err != nil {
		panic(fmt.Sprintf("cmdstream: cannot record buffer update: %v", err))
	}
	p := s.record(uint32(driver.OpUpdateBuffer), sizeUpdateBuffer)
	off := putU64(p, 0, uint64(id))
	off = putU64(p, off, offset)
	putU32(p, off, idx)
}

// CreateTexture allocates a texture handle synchronously and records the
// creation.
func (s *CommandStream) CreateTexture(desc driver.TextureDesc) driver.TextureID {
	id := s.drv.AllocTextureID()
	if s.disp.Synchronous(driver.OpCreateTexture) {
		s.drv.CreateTexture(id, desc)
		return id
	}
	p := s.record(uint32(driver.OpCreateTexture), sizeCreateTexture)
	off := putU64(p, 0, uint64(id))
	putTextureDesc(p, off, desc)
	return id
}

// DestroyTexture records destruction of a texture.
func (s *CommandStream) DestroyTexture(id driver.TextureID) {
	if s.disp.Synchronous(driver.OpDestroyTexture) {
		s.drv.DestroyTexture(id)
		return
	}
	p := s.record(uint32(driver.OpDestroyTexture), sizeHandleOnly)
	putU64(p, 0, uint64(id))
}

// UpdateTexture records a pixel upload into a mip level. Descriptor
// ownership follows the UpdateBuffer rule.
func (s *CommandStream) UpdateTexture(id driver.TextureID, level uint32, data driver.BufferDescriptor) {
	if s.disp.Synchronous(driver.OpUpdateTexture) {
		s.drv.UpdateTexture(id, level, data)
		return
	}
	idx, err := s.descs.Put(data)
	if err != nil {
		panic(fmt.Sprintf("cmdstream: cannot record texture update: %v", err))
	}
	p := s.record(uint32(driver.OpUpdateTexture), sizeUpdateTexture)
	off := putU64(p, 0, uint64(id))
	off = putU32(p, off, level)
	putU32(p, off, idx)
}

// CreateProgram allocates a program handle synchronously and records
// compilation of the given sources.
func (s *CommandStream) CreateProgram(src driver.ProgramSource) driver.ProgramID {
	id := s.drv.AllocProgramID()
	if s.disp.Synchronous(driver.OpCreateProgram) {
		s.drv.CreateProgram(id, src)
		return id
	}
	idx, err := s.progs.Put(src)
	if err != nil {
		panic(fmt.Sprintf("cmdstream: cannot record program creation: %v", err))
	}
	p := s.record(uint32(driver.OpCreateProgram), sizeCreateProgram)
	off := putU64(p, 0, uint64(id))
	putU32(p, off, idx)
	return id
}

// DestroyProgram records destruction of a program.
func (s *CommandStream) DestroyProgram(id driver.ProgramID) {
	if s.disp.Synchronous(driver.OpDestroyProgram) {
		s.drv.DestroyProgram(id)
		return
	}
	p := s.record(uint32(driver.OpDestroyProgram), sizeHandleOnly)
	putU64(p, 0, uint64(id))
}

// BeginRenderPass records the start of a render pass on target.
func (s *CommandStream) BeginRenderPass(target driver.TextureID, params driver.RenderPassParams) {
	if s.disp.Synchronous(driver.OpBeginRenderPass) {
		s.drv.BeginRenderPass(target, params)
		return
	}
	p := s.record(uint32(driver.OpBeginRenderPass), sizeBeginRenderPass)
	off := putU64(p, 0, uint64(target))
	putRenderPassParams(p, off, params)
}

// EndRenderPass records the end of the current render pass.
func (s *CommandStream) EndRenderPass() {
	if s.disp.Synchronous(driver.OpEndRenderPass) {
		s.drv.EndRenderPass()
		return
	}
	s.record(uint32(driver.OpEndRenderPass), sizeNoArgs)
}

// SetViewport records a viewport change.
func (s *CommandStream) SetViewport(v driver.Viewport) {
	if s.disp.Synchronous(driver.OpSetViewport) {
		s.drv.SetViewport(v)
		return
	}
	p := s.record(uint32(driver.OpSetViewport), sizeViewport)
	putViewport(p, 0, v)
}

// SetScissor records a scissor box change.
func (s *CommandStream) SetScissor(v driver.Viewport) {
	if s.disp.Synchronous(driver.OpSetScissor) {
		s.drv.SetScissor(v)
		return
	}
	p := s.record(uint32(driver.OpSetScissor), sizeViewport)
	putViewport(p, 0, v)
}

// Clear records a clear of the current render target.
func (s *CommandStream) Clear(color gputypes.Color) {
	if s.disp.Synchronous(driver.OpClear) {
		s.drv.Clear(color)
		return
	}
	p := s.record(uint32(driver.OpClear), sizeClear)
	putColor(p, 0, color)
}

// Draw records a draw call.
func (s *CommandStream) Draw(pipeline driver.PipelineState, vertices, indices driver.BufferID, firstIndex, indexCount uint32) {
	if s.disp.Synchronous(driver.OpDraw) {
		s.drv.Draw(pipeline, vertices, indices, firstIndex, indexCount)
		return
	}
	p := s.record(uint32(driver.OpDraw), sizeDraw)
	off := putPipelineState(p, 0, pipeline)
	off = putU64(p, off, uint64(vertices))
	off = putU64(p, off, uint64(indices))
	off = putU32(p, off, firstIndex)
	putU32(p, off, indexCount)
}

// Commit records frame presentation.
func (s *CommandStream) Commit() {
	if s.disp.Synchronous(driver.OpCommit) {
		s.drv.Commit()
		return
	}
	s.record(uint32(driver.OpCommit), sizeNoArgs)
}
