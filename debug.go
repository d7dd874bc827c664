//go:build cmdstreamdebug

package cmdstream

import (
	"fmt"

	"github.com/gogpu/cmdstream/driver"
)

// debugLogRecord dumps a record's operation name and argument values
// through the package logger. Development diagnostic only; the format is
// not stable. Compiled in only under the cmdstreamdebug build tag.
func debugLogRecord(op driver.Op, p []byte) {
	slogger().Debug("cmdstream: execute",
		"op", op.String(),
		"size", len(p)+recordHeaderSize,
		"args", formatArgs(op, p),
	)
}

func formatArgs(op driver.Op, p []byte) string {
	switch op {
	case driver.OpBeginFrame:
		v, _ := getU64(p, 0)
		return fmt.Sprintf("frameTimeNanos=%d", int64(v))

	case driver.OpEndFrame:
		v, _ := getU32(p, 0)
		return fmt.Sprintf("frameID=%d", v)

	case driver.OpCreateBuffer:
		id, off := getU64(p, 0)
		size, off := getU64(p, off)
		usage, _ := getU32(p, off)
		return fmt.Sprintf("id=%d size=%d usage=0x%x", id, size, usage)

	case driver.OpDestroyBuffer, driver.OpDestroyTexture, driver.OpDestroyProgram:
		id, _ := getU64(p, 0)
		return fmt.Sprintf("id=%d", id)

	case driver.OpUpdateBuffer:
		id, off := getU64(p, 0)
		dst, off := getU64(p, off)
		idx, _ := getU32(p, off)
		return fmt.Sprintf("id=%d offset=%d desc=#%d", id, dst, idx)

	case driver.OpCreateTexture:
		id, off := getU64(p, 0)
		desc, _ := getTextureDesc(p, off)
		return fmt.Sprintf("id=%d size=%dx%dx%d format=%d usage=0x%x mips=%d samples=%d",
			id, desc.Size.Width, desc.Size.Height, desc.Size.DepthOrArrayLayers,
			desc.Format, desc.Usage, desc.MipLevelCount, desc.SampleCount)

	case driver.OpUpdateTexture:
		id, off := getU64(p, 0)
		level, off := getU32(p, off)
		idx, _ := getU32(p, off)
		return fmt.Sprintf("id=%d level=%d desc=#%d", id, level, idx)

	case driver.OpCreateProgram:
		id, off := getU64(p, 0)
		idx, _ := getU32(p, off)
		return fmt.Sprintf("id=%d src=#%d", id, idx)

	case driver.OpBeginRenderPass:
		id, off := getU64(p, 0)
		params, _ := getRenderPassParams(p, off)
		return fmt.Sprintf("target=%d viewport=%+v clearColor=%+v clearDepth=%g clearStencil=%d",
			id, params.Viewport, params.ClearColor, params.ClearDepth, params.ClearStencil)

	case driver.OpSetViewport, driver.OpSetScissor:
		v, _ := getViewport(p, 0)
		return fmt.Sprintf("%+v", v)

	case driver.OpClear:
		c, _ := getColor(p, 0)
		return fmt.Sprintf("color=%+v", c)

	case driver.OpDraw:
		pipe, off := getPipelineState(p, 0)
		vb, off := getU64(p, off)
		ib, off := getU64(p, off)
		first, off := getU32(p, off)
		count, _ := getU32(p, off)
		return fmt.Sprintf("program=%d vertices=%d indices=%d first=%d count=%d",
			pipe.Program, vb, ib, first, count)

	default:
		return ""
	}
}
