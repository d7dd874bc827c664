package cmdstream

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/cmdstream/driver"
	"github.com/gogpu/gputypes"
)

// Record wire format. Every record starts with an 8-byte header, a code
// word and a size word, both little-endian. The size includes the header
// and is a multiple of arena.Align, so the next record begins at
// offset+size. Codes below driver.OpCount are driver operations; the rest
// are stream-internal markers.
const recordHeaderSize = 8

const (
	// recCustom wraps one deferred closure from the custom ring.
	recCustom = uint32(driver.OpCount) + iota

	// recSkip marks an abandoned buffer tail: the walk continues at
	// offset 0. Its size word is zero.
	recSkip

	// recEnd is the end-of-stream sentinel: the walk stops.
	recEnd
)

// Payload sizes per operation, before header and alignment. These are
// compile-time constants per signature; a size change here is a wire
// format change.
const (
	sizeBeginFrame      = 8
	sizeEndFrame        = 4
	sizeNoArgs          = 0
	sizeCreateBuffer    = 20
	sizeHandleOnly      = 8
	sizeUpdateBuffer    = 20
	sizeCreateTexture   = 36
	sizeUpdateTexture   = 16
	sizeCreateProgram   = 12
	sizeBeginRenderPass = 80
	sizeViewport        = 16
	sizeClear           = 32
	sizeDraw            = 52
	sizeCustom          = 4
)

func putHeader(b []byte, code, size uint32) {
	binary.LittleEndian.PutUint32(b, code)
	binary.LittleEndian.PutUint32(b[4:], size)
}

func getHeader(b []byte) (code, size uint32) {
	return binary.LittleEndian.Uint32(b), binary.LittleEndian.Uint32(b[4:])
}

func putU32(b []byte, off int, v uint32) int {
	binary.LittleEndian.PutUint32(b[off:], v)
	return off + 4
}

func putU64(b []byte, off int, v uint64) int {
	binary.LittleEndian.PutUint64(b[off:], v)
	return off + 8
}

func getU32(b []byte, off int) (uint32, int) {
	return binary.LittleEndian.Uint32(b[off:]), off + 4
}

func getU64(b []byte, off int) (uint64, int) {
	return binary.LittleEndian.Uint64(b[off:]), off + 8
}

func putViewport(b []byte, off int, v driver.Viewport) int {
	off = putU32(b, off, uint32(v.X))
	off = putU32(b, off, uint32(v.Y))
	off = putU32(b, off, uint32(v.Width))
	return putU32(b, off, uint32(v.Height))
}

func getViewport(b []byte, off int) (driver.Viewport, int) {
	var v driver.Viewport
	var u uint32
	u, off = getU32(b, off)
	v.X = int32(u)
	u, off = getU32(b, off)
	v.Y = int32(u)
	u, off = getU32(b, off)
	v.Width = int32(u)
	u, off = getU32(b, off)
	v.Height = int32(u)
	return v, off
}

func putColor(b []byte, off int, c gputypes.Color) int {
	off = putU64(b, off, math.Float64bits(float64(c.R)))
	off = putU64(b, off, math.Float64bits(float64(c.G)))
	off = putU64(b, off, math.Float64bits(float64(c.B)))
	return putU64(b, off, math.Float64bits(float64(c.A)))
}

func getColor(b []byte, off int) (gputypes.Color, int) {
	var c gputypes.Color
	var u uint64
	u, off = getU64(b, off)
	c.R = math.Float64frombits(u)
	u, off = getU64(b, off)
	c.G = math.Float64frombits(u)
	u, off = getU64(b, off)
	c.B = math.Float64frombits(u)
	u, off = getU64(b, off)
	c.A = math.Float64frombits(u)
	return c, off
}

func putRenderPassParams(b []byte, off int, p driver.RenderPassParams) int {
	off = putViewport(b, off, p.Viewport)
	off = putColor(b, off, p.ClearColor)
	off = putU32(b, off, math.Float32bits(p.ClearDepth))
	off = putU32(b, off, p.ClearStencil)
	off = putU32(b, off, uint32(p.ColorLoad))
	off = putU32(b, off, uint32(p.ColorStore))
	off = putU32(b, off, uint32(p.DepthLoad))
	return putU32(b, off, uint32(p.DepthStore))
}

func getRenderPassParams(b []byte, off int) (driver.RenderPassParams, int) {
	var p driver.RenderPassParams
	var u uint32
	p.Viewport, off = getViewport(b, off)
	p.ClearColor, off = getColor(b, off)
	u, off = getU32(b, off)
	p.ClearDepth = math.Float32frombits(u)
	p.ClearStencil, off = getU32(b, off)
	u, off = getU32(b, off)
	p.ColorLoad = gputypes.LoadOp(u)
	u, off = getU32(b, off)
	p.ColorStore = gputypes.StoreOp(u)
	u, off = getU32(b, off)
	p.DepthLoad = gputypes.LoadOp(u)
	u, off = getU32(b, off)
	p.DepthStore = gputypes.StoreOp(u)
	return p, off
}

func putPipelineState(b []byte, off int, p driver.PipelineState) int {
	off = putU64(b, off, uint64(p.Program))
	off = putU32(b, off, uint32(p.Raster.Culling))
	off = putU32(b, off, uint32(p.Raster.Topology))
	off = putU32(b, off, uint32(p.Raster.DepthCompare))
	off = putU32(b, off, uint32(p.Raster.ColorWrite))
	var w uint32
	if p.Raster.DepthWrite {
		w = 1
	}
	return putU32(b, off, w)
}

func getPipelineState(b []byte, off int) (driver.PipelineState, int) {
	var p driver.PipelineState
	var u uint32
	var h uint64
	h, off = getU64(b, off)
	p.Program = driver.ProgramID(h)
	u, off = getU32(b, off)
	p.Raster.Culling = gputypes.CullMode(u)
	u, off = getU32(b, off)
	p.Raster.Topology = gputypes.PrimitiveTopology(u)
	u, off = getU32(b, off)
	p.Raster.DepthCompare = gputypes.CompareFunction(u)
	u, off = getU32(b, off)
	p.Raster.ColorWrite = gputypes.ColorWriteMask(u)
	u, off = getU32(b, off)
	p.Raster.DepthWrite = u != 0
	return p, off
}

func putTextureDesc(b []byte, off int, d driver.TextureDesc) int {
	off = putU32(b, off, d.Size.Width)
	off = putU32(b, off, d.Size.Height)
	off = putU32(b, off, d.Size.DepthOrArrayLayers)
	off = putU32(b, off, uint32(d.Format))
	off = putU32(b, off, uint32(d.Usage))
	off = putU32(b, off, d.MipLevelCount)
	return putU32(b, off, d.SampleCount)
}

func getTextureDesc(b []byte, off int) (driver.TextureDesc, int) {
	var d driver.TextureDesc
	var u uint32
	d.Size.Width, off = getU32(b, off)
	d.Size.Height, off = getU32(b, off)
	d.Size.DepthOrArrayLayers, off = getU32(b, off)
	u, off = getU32(b, off)
	d.Format = gputypes.TextureFormat(u)
	u, off = getU32(b, off)
	d.Usage = gputypes.TextureUsage(u)
	d.MipLevelCount, off = getU32(b, off)
	d.SampleCount, off = getU32(b, off)
	return d, off
}
