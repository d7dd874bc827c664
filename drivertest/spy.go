// Package drivertest provides a spy driver for testing command streams.
// The spy records every call it receives, with argument snapshots, so
// tests can assert on replay order and argument fidelity without a real
// GPU backend.
package drivertest

import (
	"sync"

	"github.com/gogpu/cmdstream/driver"
	"github.com/gogpu/gputypes"
)

// Call is one recorded driver invocation.
type Call struct {
	// Op identifies the invoked operation.
	Op driver.Op

	// Args holds the call's arguments in declaration order. Buffer
	// descriptor payloads appear as copied []byte snapshots.
	Args []any
}

// SpyDriver records every operation invoked on it. Descriptor-carrying
// operations copy the payload for later assertions and then release the
// descriptor, the way a real backend does once an upload is consumed.
//
// The zero Dispatcher defers every operation; tests flip individual ops
// synchronous through Disp before constructing a stream.
type SpyDriver struct {
	driver.HandleAllocator

	// Disp is returned by Dispatcher. Configure before cmdstream.New.
	Disp driver.Dispatcher

	// OnCall, when set, runs after each call is recorded. Tests use it to
	// emulate driver-side behavior such as internal error handling.
	OnCall func(c Call)

	mu    sync.Mutex
	calls []Call
}

// New returns a spy with every operation deferred.
func New() *SpyDriver {
	return &SpyDriver{}
}

// Calls returns a snapshot of the recorded calls in invocation order.
func (d *SpyDriver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Ops returns just the operation sequence of the recorded calls.
func (d *SpyDriver) Ops() []driver.Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]driver.Op, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Op
	}
	return out
}

// CallCount returns the number of recorded calls.
func (d *SpyDriver) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// Reset discards the recorded calls.
func (d *SpyDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

func (d *SpyDriver) observe(op driver.Op, args ...any) {
	c := Call{Op: op, Args: args}
	d.mu.Lock()
	d.calls = append(d.calls, c)
	hook := d.OnCall
	d.mu.Unlock()
	if hook != nil {
		hook(c)
	}
}

// Dispatcher returns the configured dispatch table.
func (d *SpyDriver) Dispatcher() driver.Dispatcher {
	return d.Disp
}

// AllocBufferID hands out a fresh buffer handle.
func (d *SpyDriver) AllocBufferID() driver.BufferID {
	return d.NextBufferID()
}

// AllocTextureID hands out a fresh texture handle.
func (d *SpyDriver) AllocTextureID() driver.TextureID {
	return d.NextTextureID()
}

// AllocProgramID hands out a fresh program handle.
func (d *SpyDriver) AllocProgramID() driver.ProgramID {
	return d.NextProgramID()
}

func (d *SpyDriver) BeginFrame(frameTimeNanos int64) {
	d.observe(driver.OpBeginFrame, frameTimeNanos)
}

func (d *SpyDriver) EndFrame(frameID uint32) {
	d.observe(driver.OpEndFrame, frameID)
}

func (d *SpyDriver) Flush() {
	d.observe(driver.OpFlush)
}

func (d *SpyDriver) Tick() {
	d.observe(driver.OpTick)
}

func (d *SpyDriver) CreateBuffer(id driver.BufferID, size uint64, usage gputypes.BufferUsage) {
	d.observe(driver.OpCreateBuffer, id, size, usage)
}

func (d *SpyDriver) DestroyBuffer(id driver.BufferID) {
	d.observe(driver.OpDestroyBuffer, id)
}

func (d *SpyDriver) UpdateBuffer(id driver.BufferID, offset uint64, data driver.BufferDescriptor) {
	payload := append([]byte(nil), data.Data...)
	d.observe(driver.OpUpdateBuffer, id, offset, payload)
	data.ReleaseData()
}

func (d *SpyDriver) CreateTexture(id driver.TextureID, desc driver.TextureDesc) {
	d.observe(driver.OpCreateTexture, id, desc)
}

func (d *SpyDriver) DestroyTexture(id driver.TextureID) {
	d.observe(driver.OpDestroyTexture, id)
}

func (d *SpyDriver) UpdateTexture(id driver.TextureID, level uint32, data driver.BufferDescriptor) {
	payload := append([]byte(nil), data.Data...)
	d.observe(driver.OpUpdateTexture, id, level, payload)
	data.ReleaseData()
}

func (d *SpyDriver) CreateProgram(id driver.ProgramID, src driver.ProgramSource) {
	d.observe(driver.OpCreateProgram, id, src)
}

func (d *SpyDriver) DestroyProgram(id driver.ProgramID) {
	d.observe(driver.OpDestroyProgram, id)
}

func (d *SpyDriver) BeginRenderPass(target driver.TextureID, params driver.RenderPassParams) {
	d.observe(driver.OpBeginRenderPass, target, params)
}

func (d *SpyDriver) EndRenderPass() {
	d.observe(driver.OpEndRenderPass)
}

func (d *SpyDriver) SetViewport(v driver.Viewport) {
	d.observe(driver.OpSetViewport, v)
}

func (d *SpyDriver) SetScissor(v driver.Viewport) {
	d.observe(driver.OpSetScissor, v)
}

func (d *SpyDriver) Clear(color gputypes.Color) {
	d.observe(driver.OpClear, color)
}

func (d *SpyDriver) Draw(pipeline driver.PipelineState, vertices, indices driver.BufferID, firstIndex, indexCount uint32) {
	d.observe(driver.OpDraw, pipeline, vertices, indices, firstIndex, indexCount)
}

func (d *SpyDriver) Commit() {
	d.observe(driver.OpCommit)
}
