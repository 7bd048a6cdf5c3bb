package boot

import (
	"rvkernel/kernel/kfmt"
	"rvkernel/kernel/kfmt/early"
	"rvkernel/kernel/sbi"
)

// consoleWriter adapts kernel/sbi's single-byte console to the
// io.Writer kfmt.SetOutputSink expects, the same narrow adapter role
// kernel/hal.go's terminal writer plays for the teacher's VGA console.
type consoleWriter struct{}

func (consoleWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		sbi.PutChar(b)
	}
	return len(p), nil
}

// InitConsole wires both of kernel/kfmt's diagnostic surfaces onto the
// platform console: kfmt/early.Printf becomes usable immediately (for
// tracing InitPhys itself, before anything else has run), and
// kfmt.Printf's boot-time ring buffer is flushed and redirected to the
// same byte sink. cmd/kernel's trampoline calls this before InitPhys.
func InitConsole() {
	early.SetPutChar(sbi.PutChar)
	kfmt.SetOutputSink(consoleWriter{})
}
