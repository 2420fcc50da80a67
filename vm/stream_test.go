package vm

import (
	"bytes"
	"testing"
)

func TestByteWriterReaderStringRoundTrip(t *testing.T) {
	w := newByteWriter()
	w.writeString("hello, vm")
	r := newByteReader(w.Bytes())
	got, err := r.readString()
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello, vm" {
		t.Fatalf("got %q, want %q", got, "hello, vm")
	}
}

func TestByteWriterReaderStringsRoundTrip(t *testing.T) {
	w := newByteWriter()
	w.writeStrings([]string{"a", "", "ccc"})
	r := newByteReader(w.Bytes())
	got, err := r.readStrings()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "", "ccc"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestByteReaderUnexpectedEOF(t *testing.T) {
	r := newByteReader([]byte{1, 2, 3})
	if _, err := r.readUint64(); err != ErrUnexpectedEOF {
		t.Fatalf("got %v, want ErrUnexpectedEOF", err)
	}
}

func TestIndicesRoundTripNegative(t *testing.T) {
	w := newByteWriter()
	w.writeIndices([]Index{-1, 0, 1, -100})
	r := newByteReader(w.Bytes())
	got, err := r.readIndices()
	if err != nil {
		t.Fatal(err)
	}
	want := []Index{-1, 0, 1, -100}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestConstantValueRoundTripViaCBOR(t *testing.T) {
	var buf bytes.Buffer
	if err := SerializeValue(&buf, "a constant"); err != nil {
		t.Fatal(err)
	}
	got, err := DeserializeValue(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a constant" {
		t.Fatalf("got %v, want %q", got, "a constant")
	}
}

func TestMultipleConstantsAreSelfDelimiting(t *testing.T) {
	var buf bytes.Buffer
	if err := SerializeValue(&buf, "first"); err != nil {
		t.Fatal(err)
	}
	if err := SerializeValue(&buf, "second"); err != nil {
		t.Fatal(err)
	}
	first, err := DeserializeValue(&buf)
	if err != nil {
		t.Fatal(err)
	}
	second, err := DeserializeValue(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if first != "first" || second != "second" {
		t.Fatalf("got %v, %v; want first, second", first, second)
	}
}
