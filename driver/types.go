package driver

import (
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// Resource handles. Opaque uint64 IDs: each driver maintains the mapping
// between IDs and its backend objects. The zero value is never a valid
// handle.
type (
	// BufferID is an opaque handle to a driver buffer.
	BufferID uint64

	// TextureID is an opaque handle to a driver texture.
	TextureID uint64

	// ProgramID is an opaque handle to a driver shader program.
	ProgramID uint64
)

// InvalidID is the zero value of every handle type.
const InvalidID = 0

// HandleAllocator hands out monotonically increasing resource IDs. Handle
// allocation is the synchronous half of deferred resource creation: the
// producer gets an ID immediately and records the creation for later.
// Drivers embed one to back their Alloc*ID methods.
type HandleAllocator struct {
	next atomic.Uint64
}

// NextBufferID returns a fresh buffer handle.
func (h *HandleAllocator) NextBufferID() BufferID {
	return BufferID(h.next.Add(1))
}

// NextTextureID returns a fresh texture handle.
func (h *HandleAllocator) NextTextureID() TextureID {
	return TextureID(h.next.Add(1))
}

// NextProgramID returns a fresh program handle.
func (h *HandleAllocator) NextProgramID() ProgramID {
	return ProgramID(h.next.Add(1))
}

// Viewport is an axis-aligned pixel rectangle used for viewports and
// scissor boxes.
type Viewport struct {
	X, Y          int32
	Width, Height int32
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Size          gputypes.Extent3D
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
	MipLevelCount uint32
	SampleCount   uint32
}

// RenderPassParams configures one render pass.
type RenderPassParams struct {
	Viewport     Viewport
	ClearColor   gputypes.Color
	ClearDepth   float32
	ClearStencil uint32
	ColorLoad    gputypes.LoadOp
	ColorStore   gputypes.StoreOp
	DepthLoad    gputypes.LoadOp
	DepthStore   gputypes.StoreOp
}

// RasterState is the fixed-function state of a draw.
type RasterState struct {
	Culling      gputypes.CullMode
	Topology     gputypes.PrimitiveTopology
	DepthCompare gputypes.CompareFunction
	DepthWrite   bool
	ColorWrite   gputypes.ColorWriteMask
}

// PipelineState selects the program and fixed-function state for a draw.
type PipelineState struct {
	Program ProgramID
	Raster  RasterState
}

// ProgramSource carries shader sources for program creation.
type ProgramSource struct {
	Label    string
	Vertex   string
	Fragment string
}

// BufferDescriptor is a data blob whose ownership moves with it: into the
// command record at enqueue, then to the driver at execute. The enqueuing
// caller must not touch Data afterward. Whoever consumes the descriptor
// calls ReleaseData exactly once when the bytes are no longer needed.
type BufferDescriptor struct {
	// Data is the payload. Valid until ReleaseData is called.
	Data []byte

	// Release is invoked with Data when the payload can be reclaimed.
	// May be nil for borrowed or static data.
	Release func(data []byte)
}

// NewBufferDescriptor builds a descriptor over data with an optional
// release callback.
func NewBufferDescriptor(data []byte, release func(data []byte)) BufferDescriptor {
	return BufferDescriptor{Data: data, Release: release}
}

// ReleaseData fires the release callback, exactly once, and drops the
// payload reference. Safe to call on a descriptor without a callback.
func (d *BufferDescriptor) ReleaseData() {
	if d.Release != nil {
		d.Release(d.Data)
		d.Release = nil
	}
	d.Data = nil
}
