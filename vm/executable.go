package vm

import (
	"fmt"
	"sort"
)

// Executable is the top-level aggregate: a constant pool, the global
// and primitive directories, the function table, and a handle to an
// external compiled operator library.
type Executable struct {
	Lib          OpLibrary
	Constants    []Constant
	GlobalMap    map[string]Index
	PrimitiveMap map[string]Index
	Functions    []*Function

	// codeBuffer caches the serialized form produced by the most recent
	// Save call. It is scratch storage: callers must treat the slice
	// returned by Save as borrowed until the next Save.
	codeBuffer []byte
}

// NewExecutable constructs an empty Executable bound to lib.
func NewExecutable(lib OpLibrary) *Executable {
	return &Executable{
		Lib:          lib,
		GlobalMap:    make(map[string]Index),
		PrimitiveMap: make(map[string]Index),
	}
}

// sortedGlobals returns (name, index) pairs from GlobalMap in ascending
// index order. Saving in this fixed order is what makes two equivalent
// executables serialize to byte-identical output.
func (e *Executable) sortedGlobals() []struct {
	Name  string
	Index Index
} {
	out := make([]struct {
		Name  string
		Index Index
	}, 0, len(e.GlobalMap))
	for name, idx := range e.GlobalMap {
		out = append(out, struct {
			Name  string
			Index Index
		}{name, idx})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// sortedPrimitiveNames returns primitive names ordered by their assigned
// packed index. A gap in the assigned indices is emitted as an empty
// string at that position, so a reader can recover each primitive's
// packed index from its position in the slice alone.
func (e *Executable) sortedPrimitiveNames() []string {
	maxIdx := Index(-1)
	for _, idx := range e.PrimitiveMap {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	if maxIdx < 0 {
		return nil
	}
	out := make([]string, maxIdx+1)
	for name, idx := range e.PrimitiveMap {
		out[idx] = name
	}
	return out
}

// Save serializes the executable to its binary wire form. The returned
// slice aliases the executable's internal code buffer and is only
// valid until the next Save call.
func (e *Executable) Save() []byte {
	w := newByteWriter()

	// Header.
	w.writeUint64(kMetaVMBytecodeMagic)
	w.writeString(FormatVersion)

	// Global section: function names ordered by assigned index.
	globals := e.sortedGlobals()
	names := make([]string, len(globals))
	for i, g := range globals {
		names[i] = g.Name
	}
	w.writeStrings(names)

	// Constant section.
	w.writeUint64(uint64(len(e.Constants)))
	for _, c := range e.Constants {
		if err := SerializeValue(&w.buf, c); err != nil {
			// The opaque value codec only fails on values it cannot
			// represent at all; an executable built through this
			// package's API never holds such a value.
			panic(fmt.Sprintf("vm: save: %v", err))
		}
	}

	// Primitive section.
	w.writeStrings(e.sortedPrimitiveNames())

	// Code section.
	w.writeUint64(uint64(len(e.Functions)))
	for _, fn := range e.Functions {
		w.writeString(fn.Name)
		w.writeInt64(int64(fn.RegisterFileSize))
		w.writeUint64(uint64(len(fn.Instructions)))
		w.writeStrings(fn.Params)
		for _, inst := range fn.Instructions {
			enc := SerializeInstruction(inst)
			w.writeUint64(uint64(enc.Opcode))
			w.writeIndices(enc.Fields)
		}
	}

	e.codeBuffer = w.Bytes()
	return e.codeBuffer
}

// Load reconstructs a fresh Executable from a previously saved byte
// buffer and an operator library handle. It proceeds header, then
// global section, then code section, resolving each function's name
// against the global map built in the second phase before it can
// place that function in the table built in the third.
func Load(data []byte, lib OpLibrary) (*Executable, error) {
	r := newByteReader(data)

	magic, err := r.readUint64()
	if err != nil {
		return nil, streamCheck("header", err)
	}
	if magic != kMetaVMBytecodeMagic {
		return nil, streamCheck("header", fmt.Errorf("%w: got 0x%016x", ErrInvalidMagic, magic))
	}
	version, err := r.readString()
	if err != nil {
		return nil, streamCheck("version", err)
	}
	if version != FormatVersion {
		return nil, streamCheck("version", fmt.Errorf("%w: got %q, want %q", ErrVersionMismatch, version, FormatVersion))
	}

	// Phase (b): global section builds global_map.
	globalNames, err := r.readStrings()
	if err != nil {
		return nil, streamCheck("global", err)
	}
	globalMap := make(map[string]Index, len(globalNames))
	for i, name := range globalNames {
		globalMap[name] = Index(i)
	}

	// Constant section.
	constCount, err := r.readUint64()
	if err != nil {
		return nil, streamCheck("constant", err)
	}
	constants := make([]Constant, constCount)
	for i := range constants {
		v, err := DeserializeValue(r.r)
		if err != nil {
			return nil, streamCheck("constant", err)
		}
		constants[i] = v
	}

	// Primitive section.
	primitiveNames, err := r.readStrings()
	if err != nil {
		return nil, streamCheck("primitive", err)
	}
	primitiveMap := make(map[string]Index)
	for i, name := range primitiveNames {
		if name == "" {
			continue
		}
		primitiveMap[name] = Index(i)
	}

	// Phase (c): code section, resolving each function header against
	// global_map.
	functionCount, err := r.readUint64()
	if err != nil {
		return nil, streamCheck("code", err)
	}
	functions := make([]*Function, len(globalNames))
	for i := uint64(0); i < functionCount; i++ {
		fn, err := readFunction(r)
		if err != nil {
			return nil, streamCheck("code", err)
		}
		idx, ok := globalMap[fn.Name]
		if !ok {
			return nil, streamCheck("code", fmt.Errorf("%w: %q", ErrUnknownGlobal, fn.Name))
		}
		if int(idx) < 0 || int(idx) >= len(functions) {
			return nil, streamCheck("code", fmt.Errorf("%w: %q maps to out-of-range index %d", ErrUnknownGlobal, fn.Name, idx))
		}
		functions[idx] = fn
	}

	return &Executable{
		Lib:          lib,
		Constants:    constants,
		GlobalMap:    globalMap,
		PrimitiveMap: primitiveMap,
		Functions:    functions,
		codeBuffer:   append([]byte(nil), data...),
	}, nil
}

func readFunction(r *byteReader) (*Function, error) {
	name, err := r.readString()
	if err != nil {
		return nil, err
	}
	regFileSize, err := r.readInt64()
	if err != nil {
		return nil, err
	}
	numInstructions, err := r.readUint64()
	if err != nil {
		return nil, err
	}
	params, err := r.readStrings()
	if err != nil {
		return nil, err
	}
	instructions := make([]Instruction, numInstructions)
	for i := range instructions {
		opVal, err := r.readUint64()
		if err != nil {
			return nil, err
		}
		fields, err := r.readIndices()
		if err != nil {
			return nil, err
		}
		inst, err := DeserializeInstruction(EncodedInstruction{Opcode: Opcode(opVal), Fields: fields})
		if err != nil {
			return nil, err
		}
		instructions[i] = inst
	}
	return &Function{
		Name:             name,
		Params:           params,
		RegisterFileSize: Index(regFileSize),
		Instructions:     instructions,
	}, nil
}
