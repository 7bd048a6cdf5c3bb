// Package kfmt is a minimal, allocation-free replacement for fmt usable
// once the Go runtime is up but before a heap allocator is trustworthy
// (i.e. everywhere in this kernel, which never initializes one). Output
// is buffered in a ring buffer until a sink is registered via
// SetOutputSink.
package kfmt

import (
	"io"
	"unsafe"
)

const intBufSize = 32

var (
	tagMissingArg   = []byte("(MISSING)")
	tagWrongType    = []byte("%!(WRONGTYPE)")
	tagNoVerb       = []byte("%!(NOVERB)")
	tagExtraArg     = []byte("%!(EXTRA)")
	tagTrue         = []byte("true")
	tagFalse        = []byte("false")

	scratch  [intBufSize]byte
	oneByte  = []byte{0}

	boot ring

	sink io.Writer
)

// SetOutputSink directs future Printf output to w, flushing anything
// accumulated in the boot-time ring buffer into w first.
func SetOutputSink(w io.Writer) {
	sink = w
	if w != nil {
		io.Copy(w, &boot)
	}
}

// Printf writes to the currently registered sink (or the boot ring buffer
// if none is registered yet). Supported verbs: %s %d %o %x %t, with an
// optional leading decimal width.
func Printf(format string, args ...interface{}) {
	Fprintf(sink, format, args...)
}

// Fprintf is Printf but writes to an explicit io.Writer (nil meaning the
// boot ring buffer).
func Fprintf(w io.Writer, format string, args ...interface{}) {
	argIdx := 0
	i := 0
	for i < len(format) {
		if format[i] != '%' {
			j := i
			for j < len(format) && format[j] != '%' {
				j++
			}
			writeLiteral(w, format[i:j])
			i = j
			continue
		}

		i++ // consume '%'
		width := 0
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}

		if i >= len(format) {
			writeBytes(w, tagNoVerb)
			break
		}

		verb := format[i]
		i++

		if verb == '%' {
			writeBytes(w, []byte{'%'})
			continue
		}

		if argIdx >= len(args) {
			writeBytes(w, tagMissingArg)
			continue
		}
		arg := args[argIdx]
		argIdx++

		switch verb {
		case 'o':
			writeInt(w, arg, 8, width)
		case 'd':
			writeInt(w, arg, 10, width)
		case 'x':
			writeInt(w, arg, 16, width)
		case 's':
			writeString(w, arg, width)
		case 't':
			writeBool(w, arg)
		default:
			writeBytes(w, tagNoVerb)
		}
	}

	for ; argIdx < len(args); argIdx++ {
		writeBytes(w, tagExtraArg)
	}
}

func writeLiteral(w io.Writer, s string) {
	for i := 0; i < len(s); i++ {
		oneByte[0] = s[i]
		writeBytes(w, oneByte)
	}
}

func writeBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	if !ok {
		writeBytes(w, tagWrongType)
		return
	}
	if b {
		writeBytes(w, tagTrue)
	} else {
		writeBytes(w, tagFalse)
	}
}

func writeString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		pad(w, width-len(s))
		for i := 0; i < len(s); i++ {
			oneByte[0] = s[i]
			writeBytes(w, oneByte)
		}
	case []byte:
		pad(w, width-len(s))
		writeBytes(w, s)
	default:
		writeBytes(w, tagWrongType)
	}
}

func pad(w io.Writer, n int) {
	oneByte[0] = ' '
	for ; n > 0; n-- {
		writeBytes(w, oneByte)
	}
}

func asUint64(v interface{}) (u uint64, signed bool, ok bool) {
	switch t := v.(type) {
	case uint8:
		return uint64(t), false, true
	case uint16:
		return uint64(t), false, true
	case uint32:
		return uint64(t), false, true
	case uint64:
		return t, false, true
	case uintptr:
		return uint64(t), false, true
	case int8:
		return uint64(t), true, true
	case int16:
		return uint64(t), true, true
	case int32:
		return uint64(t), true, true
	case int64:
		return uint64(t), true, true
	case int:
		return uint64(t), true, true
	default:
		return 0, false, false
	}
}

func writeInt(w io.Writer, v interface{}, base, width int) {
	raw, signed, ok := asUint64(v)
	if !ok {
		writeBytes(w, tagWrongType)
		return
	}

	if width >= intBufSize {
		width = intBufSize - 1
	}

	var (
		divider  = uint64(base)
		padCh    = byte(' ')
		negative bool
		uval     = raw
	)
	if base != 10 {
		padCh = '0'
	}
	if signed && base == 10 && int64(raw) < 0 {
		negative = true
		uval = uint64(-int64(raw))
	}

	left, right := 0, 0
	for {
		rem := uval % divider
		if rem < 10 {
			scratch[right] = byte(rem) + '0'
		} else {
			scratch[right] = byte(rem-10) + 'a'
		}
		right++
		uval /= divider
		if uval == 0 {
			break
		}
	}

	for ; right-left < width; right++ {
		scratch[right] = padCh
	}

	if negative {
		end := right - 1
		for scratch[end] == ' ' {
			end--
		}
		if end == right-1 {
			right++
		}
		scratch[end+1] = '-'
	}

	for l, r := left, right-1; l < r; l, r = l+1, r-1 {
		scratch[l], scratch[r] = scratch[r], scratch[l]
	}

	writeBytes(w, scratch[0:right])
}

// writeBytes hides p from escape analysis (via noEscape) so Printf calls
// made before the allocator is trustworthy don't trigger a runtime
// conversion-to-interface allocation when p is handed to an io.Writer.
func writeBytes(w io.Writer, p []byte) {
	realWrite(w, noEscape(unsafe.Pointer(&p)))
}

func realWrite(w io.Writer, pp unsafe.Pointer) {
	p := *(*[]byte)(pp)
	if w != nil {
		w.Write(p)
		return
	}
	boot.Write(p)
}

//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
