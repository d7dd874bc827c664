package driver

import "github.com/gogpu/gputypes"

// Driver is the capability the command stream replays against: one method
// per Op with a fixed signature, plus synchronous handle allocation and the
// dispatch table.
//
// Deferred operations are void by construction: the recording thread
// cannot wait for a result computed later on another thread. The only
// values that cross back synchronously are pre-allocated resource handles.
//
// A Driver implementation owns its error handling. Operations that fail
// must leave the driver in a state where subsequent operations can still be
// invoked, because the stream always advances to the next record regardless
// of what a call did.
type Driver interface {
	// Dispatcher returns the driver's synchronous-operation table.
	// Queried once, at stream construction.
	Dispatcher() Dispatcher

	// Handle allocation. Always synchronous, callable from the recording
	// thread at any time.
	AllocBufferID() BufferID
	AllocTextureID() TextureID
	AllocProgramID() ProgramID

	// Frame lifecycle.
	BeginFrame(frameTimeNanos int64)
	EndFrame(frameID uint32)
	Flush()
	Tick()

	// Buffers.
	CreateBuffer(id BufferID, size uint64, usage gputypes.BufferUsage)
	DestroyBuffer(id BufferID)
	// UpdateBuffer uploads data to a buffer region. The driver takes
	// ownership of the descriptor and must call its ReleaseData exactly
	// once when the payload has been consumed.
	UpdateBuffer(id BufferID, offset uint64, data BufferDescriptor)

	// Textures.
	CreateTexture(id TextureID, desc TextureDesc)
	DestroyTexture(id TextureID)
	// UpdateTexture uploads pixel data to a mip level. Descriptor
	// ownership follows the UpdateBuffer rule.
	UpdateTexture(id TextureID, level uint32, data BufferDescriptor)

	// Programs.
	CreateProgram(id ProgramID, src ProgramSource)
	DestroyProgram(id ProgramID)

	// Render passes and state.
	BeginRenderPass(target TextureID, params RenderPassParams)
	EndRenderPass()
	SetViewport(v Viewport)
	SetScissor(v Viewport)
	Clear(color gputypes.Color)
	Draw(pipeline PipelineState, vertices, indices BufferID, firstIndex, indexCount uint32)

	// Commit presents the frame.
	Commit()
}
