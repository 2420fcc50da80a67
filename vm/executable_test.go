package vm

import (
	"bytes"
	"testing"
)

func TestEmptyExecutableRoundTrip(t *testing.T) {
	exec := NewExecutable(NullOpLibrary{})
	data := exec.Save()

	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.GlobalMap) != 0 || len(got.PrimitiveMap) != 0 || len(got.Constants) != 0 || len(got.Functions) != 0 {
		t.Fatalf("expected all tables empty, got globals=%d primitives=%d constants=%d functions=%d",
			len(got.GlobalMap), len(got.PrimitiveMap), len(got.Constants), len(got.Functions))
	}
}

func singleFunctionExecutable() *Executable {
	exec := NewExecutable(NullOpLibrary{})
	fn := NewFunction("main", []string{"x"}, 2, []Instruction{
		&Move{From: 0, Dst: 1},
		&Ret{Result: 1},
	})
	exec.GlobalMap["main"] = 0
	exec.Functions = []*Function{fn}
	return exec
}

func TestSingleInstructionFunctionRoundTrip(t *testing.T) {
	exec := singleFunctionExecutable()
	data := exec.Save()

	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if arity := got.GetFunctionArity("main"); arity != 1 {
		t.Fatalf("GetFunctionArity(main) = %d, want 1", arity)
	}
	disasm := got.GetBytecode()
	if !bytes.Contains([]byte(disasm), []byte("VM Function[0]: main(x)")) {
		t.Fatalf("disassembly missing function header, got:\n%s", disasm)
	}
}

func TestVariableArityRoundTrip(t *testing.T) {
	exec := NewExecutable(NullOpLibrary{})
	fn := NewFunction("f", nil, 5, []Instruction{
		&InvokePacked{PackedIndex: 3, Arity: 4, OutputSize: 2, Args: []RegName{0, 1, 2, 3}},
	})
	exec.GlobalMap["f"] = 0
	exec.Functions = []*Function{fn}

	data := exec.Save()
	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inst := got.Functions[0].Instructions[0].(*InvokePacked)
	enc := SerializeInstruction(inst)
	if got, want := len(enc.Fields), 7; got != want {
		t.Fatalf("fields.size() = %d, want %d", got, want)
	}
	if inst.Arity != 4 {
		t.Fatalf("decoded arity = %d, want 4", inst.Arity)
	}
}

func TestTensorAllocationRoundTrip(t *testing.T) {
	inst := &AllocTensor{Storage: 0, Offset: 0, Dtype: DataType{Code: 0, Bits: 32, Lanes: 1}, Own: true, Ndim: 3, Dst: 4, Shape: []Index{2, 3, 5}}
	exec := NewExecutable(NullOpLibrary{})
	fn := NewFunction("f", nil, 10, []Instruction{inst})
	exec.GlobalMap["f"] = 0
	exec.Functions = []*Function{fn}

	data := exec.Save()
	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	roundtripped := got.Functions[0].Instructions[0]
	enc := SerializeInstruction(roundtripped)
	if len(enc.Fields) != 11 {
		t.Fatalf("encoded field count = %d, want 11", len(enc.Fields))
	}
}

func TestControlFlowNegativeOffsetsRoundTrip(t *testing.T) {
	exec := NewExecutable(NullOpLibrary{})
	fn := NewFunction("f", nil, 5, []Instruction{
		&If{Test: 0, Target: 1, TrueOffset: 2, FalseOffset: -3},
		&Goto{PCOffset: -5},
		&Ret{Result: 0},
	})
	exec.GlobalMap["f"] = 0
	exec.Functions = []*Function{fn}

	data := exec.Save()
	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ifInst := got.Functions[0].Instructions[0].(*If)
	if ifInst.FalseOffset != -3 {
		t.Fatalf("FalseOffset = %d, want -3", ifInst.FalseOffset)
	}
	gotoInst := got.Functions[0].Instructions[1].(*Goto)
	if gotoInst.PCOffset != -5 {
		t.Fatalf("PCOffset = %d, want -5", gotoInst.PCOffset)
	}
}

func TestDirectoryCollisionFailsLoad(t *testing.T) {
	// Build a stream by hand whose code section names a function absent
	// from the global section.
	w := newByteWriter()
	w.writeUint64(kMetaVMBytecodeMagic)
	w.writeString(FormatVersion)
	w.writeStrings(nil) // empty global section
	w.writeUint64(0)    // no constants
	w.writeStrings(nil) // no primitives
	w.writeUint64(1)    // one function
	w.writeString("ghost")
	w.writeInt64(1)
	w.writeUint64(0)
	w.writeStrings(nil)

	_, err := Load(w.Bytes(), NullOpLibrary{})
	if err == nil {
		t.Fatal("expected load failure for unknown global reference")
	}
}

func TestHeaderRejection(t *testing.T) {
	exec := singleFunctionExecutable()
	data := exec.Save()

	corruptMagic := append([]byte(nil), data...)
	corruptMagic[0] ^= 0xFF
	if _, err := Load(corruptMagic, NullOpLibrary{}); err == nil {
		t.Fatal("expected failure on wrong magic")
	}

	// Corrupt the version string (it is written immediately after the
	// 8-byte magic and an 8-byte length prefix).
	corruptVersion := append([]byte(nil), data...)
	corruptVersion[16] ^= 0xFF
	if _, err := Load(corruptVersion, NullOpLibrary{}); err == nil {
		t.Fatal("expected failure on wrong version")
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	exec := singleFunctionExecutable()
	a := append([]byte(nil), exec.Save()...)
	b := append([]byte(nil), exec.Save()...)
	if !bytes.Equal(a, b) {
		t.Fatal("Save produced different output across calls for the same executable")
	}
}

func TestGlobalMapRoundTripsAsSet(t *testing.T) {
	exec := NewExecutable(NullOpLibrary{})
	exec.GlobalMap = map[string]Index{"a": 0, "b": 1}
	exec.Functions = []*Function{
		NewFunction("a", nil, 1, nil),
		NewFunction("b", nil, 1, nil),
	}

	data := exec.Save()
	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.GlobalMap) != 2 || got.GlobalMap["a"] != 0 || got.GlobalMap["b"] != 1 {
		t.Fatalf("unexpected global map: %v", got.GlobalMap)
	}
}

func TestPrimitiveMapRoundTrip(t *testing.T) {
	exec := NewExecutable(NullOpLibrary{})
	exec.PrimitiveMap = map[string]Index{"add": 0, "mul": 2}

	data := exec.Save()
	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatal(err)
	}
	if got.PrimitiveMap["add"] != 0 || got.PrimitiveMap["mul"] != 2 {
		t.Fatalf("unexpected primitive map: %v", got.PrimitiveMap)
	}
	if _, ok := got.PrimitiveMap[""]; ok {
		t.Fatal("gap index should not be present in the reconstructed primitive map")
	}
}

func TestConstantPoolRoundTrip(t *testing.T) {
	exec := NewExecutable(NullOpLibrary{})
	exec.Constants = []Constant{int64(42), "hello", []interface{}{int64(1), int64(2)}}

	data := exec.Save()
	got, err := Load(data, NullOpLibrary{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Constants) != 3 {
		t.Fatalf("constant count = %d, want 3", len(got.Constants))
	}
	if got.Constants[1] != "hello" {
		t.Fatalf("constants[1] = %v, want %q", got.Constants[1], "hello")
	}
}
