// Package kfmt implements the kernel's formatted output and panic reporting.
// Nothing in this package allocates memory, so it can be used while the
// physical frame allocator is still being set up.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize is large enough to hold a 64-bit value in base 8 plus a sign.
const numBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")
	digits          = "0123456789abcdef"

	numBuf [numBufSize]byte

	// oneByte is a shared buffer for emitting single characters.
	oneByte = []byte{0}

	// earlyOutput buffers Printf output until a sink is attached.
	earlyOutput ringBuffer

	// outputSink receives all Printf output. While nil, output is kept in
	// earlyOutput.
	outputSink io.Writer
)

// SetOutputSink directs Printf output to w and replays anything that was
// buffered before a sink was available.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyOutput)
	}
}

// Printf writes formatted output to the active sink. It understands a small
// subset of the fmt verbs:
//
//	%s  string or []byte
//	%d  base 10 integer, left-padded with spaces
//	%x  base 16 integer, left-padded with zeroes
//	%o  base 8 integer, left-padded with zeroes
//	%t  bool
//	%%  a literal percent sign
//
// An optional decimal width may precede the verb. Only built-in integer,
// string and bool types are supported; other values print as %!(WRONGTYPE).
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var argIndex int

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		width := 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}

		verb := format[i]
		if verb == '%' {
			writeByte(w, '%')
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 's':
			fmtString(w, args[argIndex], width)
		case 't':
			fmtBool(w, args[argIndex])
		default:
			doWrite(w, errNoVerb)
			continue
		}
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		writeRepeat(w, ' ', width-len(s))
		// string to []byte conversions allocate; emit one byte at a time.
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		writeRepeat(w, ' ', width-len(s))
		doWrite(w, s)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtInt renders v in the requested base. Base 10 values are padded with
// spaces, everything else with zeroes.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		mag uint64
		neg bool
	)

	switch n := v.(type) {
	case uint8:
		mag = uint64(n)
	case uint16:
		mag = uint64(n)
	case uint32:
		mag = uint64(n)
	case uint64:
		mag = n
	case uint:
		mag = uint64(n)
	case uintptr:
		mag = uint64(n)
	case int8:
		mag, neg = abs(int64(n))
	case int16:
		mag, neg = abs(int64(n))
	case int32:
		mag, neg = abs(int64(n))
	case int64:
		mag, neg = abs(n)
	case int:
		mag, neg = abs(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if width > numBufSize-1 {
		width = numBufSize - 1
	}

	// Digits are written right-to-left starting at the end of numBuf.
	pos := numBufSize
	for {
		pos--
		numBuf[pos] = digits[mag%base]
		mag /= base
		if mag == 0 {
			break
		}
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	switch {
	case neg && padCh == ' ':
		numBuf[pos-1] = '-'
		pos--
		for numBufSize-pos < width {
			pos--
			numBuf[pos] = padCh
		}
	case neg:
		for numBufSize-pos < width-1 {
			pos--
			numBuf[pos] = padCh
		}
		pos--
		numBuf[pos] = '-'
	default:
		for numBufSize-pos < width {
			pos--
			numBuf[pos] = padCh
		}
	}

	doWrite(w, numBuf[pos:])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeByte(w io.Writer, b byte) {
	oneByte[0] = b
	doWrite(w, oneByte)
}

func writeRepeat(w io.Writer, b byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, b)
	}
}

// doWrite hides p from escape analysis. Without it the compiler assumes that
// p escapes through the io.Writer interface call and every Printf would end
// up allocating.
func doWrite(w io.Writer, p []byte) {
	writeTo(w, noEscape(unsafe.Pointer(&p)))
}

func writeTo(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w == nil {
		_, _ = earlyOutput.Write(p)
		return
	}
	_, _ = w.Write(p)
}

// noEscape hides a pointer from escape analysis (see runtime/stubs.go).
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
