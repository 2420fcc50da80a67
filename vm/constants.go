package vm

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Constant is an opaque value held in an executable's constant pool.
// Its representation is not interpreted by this package beyond what the
// external value codec requires to round-trip it.
type Constant = any

var cborEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		// CanonicalEncOptions() is a fixed, known-good option set; a
		// failure here means the cbor library's defaults changed
		// underneath us.
		panic(fmt.Sprintf("vm: building canonical cbor encoder: %v", err))
	}
	return mode
}()

// SerializeValue writes a single constant-pool value to w using
// canonical CBOR encoding. CBOR is self-delimiting, so no additional
// length prefix is written.
func SerializeValue(w io.Writer, v Constant) error {
	data, err := cborEncMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("vm: serializing constant: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// DeserializeValue reads a single constant-pool value from r, consuming
// exactly the bytes of one canonical CBOR item.
func DeserializeValue(r io.Reader) (Constant, error) {
	// cbor.Decoder stops reading once its buffer holds one complete item,
	// so handing it one byte per Read keeps it from buffering the bytes
	// of the records that follow.
	dec := cbor.NewDecoder(oneByteReader{r})
	var v Constant
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("vm: deserializing constant: %w", err)
	}
	return v, nil
}

// oneByteReader returns at most one byte per Read call.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}
