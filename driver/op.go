// Package driver defines the capability consumed by the command stream: a
// driver object exposing one callable per graphics operation, a dispatch
// table declaring which operations run synchronously, and the argument
// types those operations take.
//
// Concrete driver implementations (GPU backends) live outside this module.
// The stream treats them uniformly: it either calls an operation directly
// (synchronous) or records it for later replay (deferred). Errors raised by
// an operation are the driver's own business; the stream never inspects
// them.
package driver

// Op identifies one recordable driver operation.
type Op uint32

// All recordable driver operations. The order is the record-code order on
// the wire; appending is safe, reordering is not.
const (
	OpBeginFrame Op = iota
	OpEndFrame
	OpFlush
	OpTick
	OpCreateBuffer
	OpDestroyBuffer
	OpUpdateBuffer
	OpCreateTexture
	OpDestroyTexture
	OpUpdateTexture
	OpCreateProgram
	OpDestroyProgram
	OpBeginRenderPass
	OpEndRenderPass
	OpSetViewport
	OpSetScissor
	OpClear
	OpDraw
	OpCommit

	// OpCount is the number of driver operations.
	OpCount
)

// opNames is the constant name table used by the debug dump. Names come
// from here, never from runtime type information.
var opNames = [OpCount]string{
	OpBeginFrame:      "BeginFrame",
	OpEndFrame:        "EndFrame",
	OpFlush:           "Flush",
	OpTick:            "Tick",
	OpCreateBuffer:    "CreateBuffer",
	OpDestroyBuffer:   "DestroyBuffer",
	OpUpdateBuffer:    "UpdateBuffer",
	OpCreateTexture:   "CreateTexture",
	OpDestroyTexture:  "DestroyTexture",
	OpUpdateTexture:   "UpdateTexture",
	OpCreateProgram:   "CreateProgram",
	OpDestroyProgram:  "DestroyProgram",
	OpBeginRenderPass: "BeginRenderPass",
	OpEndRenderPass:   "EndRenderPass",
	OpSetViewport:     "SetViewport",
	OpSetScissor:      "SetScissor",
	OpClear:           "Clear",
	OpDraw:            "Draw",
	OpCommit:          "Commit",
}

// String returns the operation name.
func (op Op) String() string {
	if op < OpCount {
		return opNames[op]
	}
	return "Unknown"
}
