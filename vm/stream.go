package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors for stream framing and decode failures, matching the
// error family chazu's image codec uses: distinct sentinels per failure
// kind, wrapped with fmt.Errorf for the offending value or position.
var (
	ErrInvalidMagic    = errors.New("vm: invalid magic number")
	ErrVersionMismatch = errors.New("vm: version mismatch")
	ErrCorruptHeader   = errors.New("vm: corrupt header")
	ErrCorruptData     = errors.New("vm: corrupt data")
	ErrUnexpectedEOF   = errors.New("vm: unexpected end of stream")
	ErrUnknownGlobal   = errors.New("vm: function header references unknown global")
)

// kMetaVMBytecodeMagic is the fixed 64-bit magic constant identifying
// this format.
const kMetaVMBytecodeMagic uint64 = 0xC5E5DF72A3014D56

// FormatVersion is the producer version string. Load requires an
// exact match, rejecting bytecode produced by an incompatible writer
// rather than guessing at forward or backward compatibility.
const FormatVersion = "1.0"

// streamCheck formats a section-scoped framing failure, mirroring the
// original codec's "Invalid VM file format in the <section> section"
// diagnostic text.
func streamCheck(section string, err error) error {
	return fmt.Errorf("Invalid VM file format in the %s section: %w", section, err)
}

// byteWriter accumulates a sequence of length-prefixed records into an
// in-memory buffer. It never returns an error: bytes.Buffer.Write never
// fails.
type byteWriter struct {
	buf bytes.Buffer
}

func newByteWriter() *byteWriter { return &byteWriter{} }

func (w *byteWriter) Bytes() []byte { return w.buf.Bytes() }

func (w *byteWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *byteWriter) writeInt64(v int64) {
	w.writeUint64(uint64(v))
}

func (w *byteWriter) writeBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *byteWriter) writeBytes(b []byte) {
	w.buf.Write(b)
}

func (w *byteWriter) writeString(s string) {
	w.writeUint64(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *byteWriter) writeStrings(ss []string) {
	w.writeUint64(uint64(len(ss)))
	for _, s := range ss {
		w.writeString(s)
	}
}

func (w *byteWriter) writeIndices(vs []Index) {
	w.writeUint64(uint64(len(vs)))
	for _, v := range vs {
		w.writeInt64(int64(v))
	}
}

// byteReader is the sequential, non-seeking counterpart of byteWriter.
type byteReader struct {
	r *bytes.Reader
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{r: bytes.NewReader(data)}
}

func (r *byteReader) readUint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, ErrUnexpectedEOF
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (r *byteReader) readInt64() (int64, error) {
	v, err := r.readUint64()
	return int64(v), err
}

func (r *byteReader) readBool() (bool, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return false, ErrUnexpectedEOF
	}
	return b != 0, nil
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, ErrUnexpectedEOF
	}
	return buf, nil
}

const maxReasonableLength = 1 << 32

func (r *byteReader) readString() (string, error) {
	n, err := r.readUint64()
	if err != nil {
		return "", err
	}
	if n > maxReasonableLength {
		return "", fmt.Errorf("%w: string length %d implausibly large", ErrCorruptData, n)
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *byteReader) readStrings() ([]string, error) {
	n, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	if n > maxReasonableLength {
		return nil, fmt.Errorf("%w: list length %d implausibly large", ErrCorruptData, n)
	}
	out := make([]string, n)
	for i := range out {
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (r *byteReader) readIndices() ([]Index, error) {
	n, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	if n > maxReasonableLength {
		return nil, fmt.Errorf("%w: field count %d implausibly large", ErrCorruptData, n)
	}
	out := make([]Index, n)
	for i := range out {
		v, err := r.readInt64()
		if err != nil {
			return nil, err
		}
		out[i] = Index(v)
	}
	return out, nil
}

func (r *byteReader) remaining() int { return r.r.Len() }
