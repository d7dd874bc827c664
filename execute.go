package cmdstream

import (
	"fmt"
	"time"

	"github.com/gogpu/cmdstream/driver"
	"github.com/gogpu/gputypes"
)

// Execute replays every record from start until the end-of-stream
// sentinel, in FIFO order, destructing each record as it goes. It is a
// blocking linear walk on the calling thread: total cost is the sum of the
// driver calls plus a bounded per-record decode.
//
// Consumer-only. Execute must not run concurrently with itself, and must
// not run on a generation the producer is still writing; the producer may
// fill the next generation concurrently. The walk advances by each
// record's declared size, never by the outcome of the invoked call, so a
// failing driver operation cannot corrupt the walk.
func (s *CommandStream) Execute(start int) {
	if !s.draining.CompareAndSwap(false, true) {
		panic("cmdstream: concurrent Execute on the same stream")
	}
	defer s.draining.Store(false)

	obs := s.observer
	var began time.Time
	if obs != nil {
		obs.BeginDrain()
		began = time.Now()
	}

	data := s.buf.Bytes()
	off := start
	var records, customs, bytes int
	for {
		code, size := getHeader(data[off:])
		if code == recEnd {
			bytes += recordHeaderSize
			break
		}
		if code == recSkip {
			bytes += len(data) - off
			off = 0
			continue
		}
		p := data[off+recordHeaderSize : off+int(size)]
		if code == recCustom {
			idx, _ := getU32(p, 0)
			fn := s.custom.Take(idx)
			fn()
			customs++
		} else {
			s.invoke(driver.Op(code), p)
		}
		records++
		bytes += int(size)
		off += int(size)
	}

	s.executed.Add(int64(records))
	s.drains.Add(1)
	if obs != nil {
		obs.EndDrain(DrainStats{
			Records:        records,
			CustomCommands: customs,
			Bytes:          bytes,
			Duration:       time.Since(began),
		})
	}
}

// invoke decodes one driver record and performs the call. Slot ring
// entries referenced by the record are taken (and thereby destructed)
// exactly once, before the call, so ownership is in flight only for the
// duration of the invocation.
func (s *CommandStream) invoke(op driver.Op, p []byte) {
	debugLogRecord(op, p)
	switch op {
	case driver.OpBeginFrame:
		v, _ := getU64(p, 0)
		s.drv.BeginFrame(int64(v))

	case driver.OpEndFrame:
		v, _ := getU32(p, 0)
		s.drv.EndFrame(v)

	case driver.OpFlush:
		s.drv.Flush()

	case driver.OpTick:
		s.drv.Tick()

	case driver.OpCreateBuffer:
		id, off := getU64(p, 0)
		size, off := getU64(p, off)
		usage, _ := getU32(p, off)
		s.drv.CreateBuffer(driver.BufferID(id), size, gputypes.BufferUsage(usage))

	case driver.OpDestroyBuffer:
		id, _ := getU64(p, 0)
		s.drv.DestroyBuffer(driver.BufferID(id))

	case driver.OpUpdateBuffer:
		id, off := getU64(p, 0)
		dst, off := getU64(p, off)
		idx, _ := getU32(p, off)
		s.drv.UpdateBuffer(driver.BufferID(id), dst, s.descs.Take(idx))

	case driver.OpCreateTexture:
		id, off := getU64(p, 0)
		desc, _ := getTextureDesc(p, off)
		s.drv.CreateTexture(driver.TextureID(id), desc)

	case driver.OpDestroyTexture:
		id, _ := getU64(p, 0)
		s.drv.DestroyTexture(driver.TextureID(id))

	case driver.OpUpdateTexture:
		id, off := getU64(p, 0)
		level, off := getU32(p, off)
		idx, _ := getU32(p, off)
		s.drv.UpdateTexture(driver.TextureID(id), level, s.descs.Take(idx))

	case driver.OpCreateProgram:
		id, off := getU64(p, 0)
		idx, _ := getU32(p, off)
		s.drv.CreateProgram(driver.ProgramID(id), s.progs.Take(idx))

	case driver.OpDestroyProgram:
		id, _ := getU64(p, 0)
		s.drv.DestroyProgram(driver.ProgramID(id))

	case driver.OpBeginRenderPass:
		id, off := getU64(p, 0)
		params, _ := getRenderPassParams(p, off)
		s.drv.BeginRenderPass(driver.TextureID(id), params)

	case driver.OpEndRenderPass:
		s.drv.EndRenderPass()

	case driver.OpSetViewport:
		v, _ := getViewport(p, 0)
		s.drv.SetViewport(v)

	case driver.OpSetScissor:
		v, _ := getViewport(p, 0)
		s.drv.SetScissor(v)

	case driver.OpClear:
		c, _ := getColor(p, 0)
		s.drv.Clear(c)

	case driver.OpDraw:
		pipe, off := getPipelineState(p, 0)
		vb, off := getU64(p, off)
		ib, off := getU64(p, off)
		first, off := getU32(p, off)
		count, _ := getU32(p, off)
		s.drv.Draw(pipe, driver.BufferID(vb), driver.BufferID(ib), first, count)

	case driver.OpCommit:
		s.drv.Commit()

	default:
		panic(fmt.Sprintf("cmdstream: corrupt record, unknown op %d", op))
	}
}
