//go:build !cmdstreamdebug

package cmdstream

import "github.com/gogpu/cmdstream/driver"

// debugLogRecord is compiled out unless the cmdstreamdebug build tag is
// set. The empty body inlines to nothing, so the dump imposes zero cost
// when disabled.
func debugLogRecord(driver.Op, []byte) {}
