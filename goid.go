package substrates

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the calling goroutine's runtime id by parsing the
// header line of its own stack trace ("goroutine N [running]:"). The Go
// runtime deliberately exposes no public goroutine-id API; parsing the
// debug stack header is the standard, widely used workaround for the
// worker-identity checks this package needs: Circuit.schedule uses it to
// route emits made on the worker to the transit queue, Await uses it to
// detect "await called from the Circuit's own worker" (§4.6), and Current
// uses it to guard against cross-goroutine reuse (§9).
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
