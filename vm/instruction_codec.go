package vm

import "fmt"

// EncodedInstruction is an instruction's flat on-the-wire shape: an
// opcode tag plus a sequence of Index-typed fields. Fixed fields come
// first; any variable-length tail (shapes, args, free_vars) is appended
// last.
type EncodedInstruction struct {
	Opcode Opcode
	Fields []Index
}

// ErrFieldCount reports a field-count invariant violation on decode.
type ErrFieldCount struct {
	Op       Opcode
	Got      int
	Expected int
}

func (e *ErrFieldCount) Error() string {
	return fmt.Sprintf("instruction decode: opcode %s: expected %d fields, got %d", e.Op, e.Expected, e.Got)
}

// ErrUnknownOpcode reports a decode attempt against an opcode value this
// codec does not recognize.
type ErrUnknownOpcode struct {
	Value Opcode
}

func (e *ErrUnknownOpcode) Error() string {
	return fmt.Sprintf("instruction decode: unknown opcode %d", uint8(e.Value))
}

func regs(rs ...RegName) []Index {
	out := make([]Index, len(rs))
	for i, r := range rs {
		out[i] = Index(r)
	}
	return out
}

func regSlice(rs []RegName) []Index {
	out := make([]Index, len(rs))
	for i, r := range rs {
		out[i] = Index(r)
	}
	return out
}

func toRegs(fields []Index) []RegName {
	if len(fields) == 0 {
		return nil
	}
	out := make([]RegName, len(fields))
	for i, f := range fields {
		out[i] = RegName(f)
	}
	return out
}

func dtypeFields(d DataType) []Index {
	return []Index{Index(d.Code), Index(d.Bits), Index(d.Lanes)}
}

func readDtype(fields []Index) DataType {
	return DataType{Code: uint8(fields[0]), Bits: uint8(fields[1]), Lanes: uint16(fields[2])}
}

func boolField(b bool) Index {
	if b {
		return 1
	}
	return 0
}

// SerializeInstruction flattens an Instruction into its wire field
// sequence, using each opcode's fixed-then-variable-length layout.
func SerializeInstruction(inst Instruction) EncodedInstruction {
	op := inst.Opcode()
	var fields []Index

	switch v := inst.(type) {
	case *Move:
		fields = regs(v.From, v.Dst)
	case *Ret:
		fields = regs(v.Result)
	case *Fatal:
		fields = nil
	case *InvokePacked:
		fields = append([]Index{v.PackedIndex, v.Arity, v.OutputSize}, regSlice(v.Args)...)
	case *AllocTensor:
		fields = []Index{Index(v.Storage), v.Offset}
		fields = append(fields, dtypeFields(v.Dtype)...)
		fields = append(fields, boolField(v.Own), v.Ndim, Index(v.Dst))
		fields = append(fields, v.Shape...)
	case *AllocTensorReg:
		fields = []Index{Index(v.Storage), v.Offset, Index(v.ShapeRegister)}
		fields = append(fields, dtypeFields(v.Dtype)...)
		fields = append(fields, Index(v.Dst), boolField(v.Own))
	case *AllocStorage:
		fields = []Index{v.AllocationSize, v.Alignment}
		fields = append(fields, dtypeFields(v.DtypeHint)...)
		fields = append(fields, v.DeviceType, v.DeviceID, Index(v.Dst))
	case *Free:
		fields = regs(v.Memory)
	case *AllocTuple:
		fields = append([]Index{Index(len(v.Fields)), Index(v.Dst)}, regSlice(v.Fields)...)
	case *AllocClosure:
		fields = append([]Index{v.FuncIndex, Index(len(v.FreeVars)), Index(v.Dst)}, regSlice(v.FreeVars)...)
	case *SetShape:
		fields = regs(v.Data, v.Shape, v.Dst)
	case *If:
		fields = []Index{Index(v.Test), v.Target, v.TrueOffset, v.FalseOffset}
	case *InvokeFunc:
		fields = append([]Index{v.FuncIndex, Index(len(v.Args)), Index(v.Dst)}, regSlice(v.Args)...)
	case *InvokeClosure:
		fields = append([]Index{Index(v.Closure), Index(len(v.Args)), Index(v.Dst)}, regSlice(v.Args)...)
	case *LoadConst:
		fields = []Index{v.ConstIndex, Index(v.Dst)}
	case *LoadConsti:
		fields = []Index{v.Val, Index(v.Dst)}
	case *GetField:
		fields = []Index{Index(v.Object), v.FieldIndex, Index(v.Dst)}
	case *Goto:
		fields = []Index{v.PCOffset}
	case *InvokeJit:
		fields = append([]Index{Index(v.OpReg), v.Arity, v.OutputSize}, regSlice(v.Args)...)
	case *InferType:
		fields = append([]Index{Index(v.OpReg), Index(len(v.Args)), Index(v.Dst)}, regSlice(v.Args)...)
	case *CudaSetStream:
		fields = []Index{v.DeviceID, v.StreamID}
	case *CudaAddEvent:
		fields = []Index{v.EventID, v.StreamID}
	case *CudaWaitEvent:
		fields = []Index{v.EventID, v.StreamID}
	case *CudaStreamBarrier:
		fields = nil
	default:
		panic(fmt.Sprintf("instruction encode: unhandled instruction type %T", inst))
	}

	return EncodedInstruction{Opcode: op, Fields: fields}
}

func checkFieldCount(op Opcode, got, want int) error {
	if got != want {
		return &ErrFieldCount{Op: op, Got: got, Expected: want}
	}
	return nil
}

func checkFieldCountAtLeast(op Opcode, got, min int) error {
	if got < min {
		return &ErrFieldCount{Op: op, Got: got, Expected: min}
	}
	return nil
}

// DeserializeInstruction reconstructs an Instruction from its flattened
// wire form, enforcing each opcode's field-count invariant. Unknown
// opcodes and field-count mismatches fail with a structured error
// identifying the offending value.
func DeserializeInstruction(e EncodedInstruction) (Instruction, error) {
	f := e.Fields
	n := len(f)

	switch e.Opcode {
	case OpMove:
		if err := checkFieldCount(e.Opcode, n, 2); err != nil {
			return nil, err
		}
		return &Move{From: RegName(f[0]), Dst: RegName(f[1])}, nil

	case OpRet:
		if err := checkFieldCount(e.Opcode, n, 1); err != nil {
			return nil, err
		}
		return &Ret{Result: RegName(f[0])}, nil

	case OpFatal:
		if err := checkFieldCount(e.Opcode, n, 0); err != nil {
			return nil, err
		}
		return &Fatal{}, nil

	case OpInvokePacked:
		if err := checkFieldCountAtLeast(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		arity := int(f[1])
		if err := checkFieldCount(e.Opcode, n, 3+arity); err != nil {
			return nil, err
		}
		return &InvokePacked{PackedIndex: f[0], Arity: f[1], OutputSize: f[2], Args: toRegs(f[3:])}, nil

	case OpAllocTensor:
		if err := checkFieldCountAtLeast(e.Opcode, n, 8); err != nil {
			return nil, err
		}
		ndim := int(f[6])
		if err := checkFieldCount(e.Opcode, n, 8+ndim); err != nil {
			return nil, err
		}
		return &AllocTensor{
			Storage: RegName(f[0]),
			Offset:  f[1],
			Dtype:   readDtype(f[2:5]),
			Own:     f[5] != 0,
			Ndim:    f[6],
			Dst:     RegName(f[7]),
			Shape:   append([]Index(nil), f[8:]...),
		}, nil

	case OpAllocTensorReg:
		// The original decoder reads only 7 fields and indexes fields[7]
		// out of bounds, a latent bug; the encoder always writes 8. This
		// decoder reads all 8, with `own` last, matching the encoder.
		if err := checkFieldCount(e.Opcode, n, 8); err != nil {
			return nil, err
		}
		return &AllocTensorReg{
			Storage:       RegName(f[0]),
			Offset:        f[1],
			ShapeRegister: RegName(f[2]),
			Dtype:         readDtype(f[3:6]),
			Dst:           RegName(f[6]),
			Own:           f[7] != 0,
		}, nil

	case OpAllocStorage:
		if err := checkFieldCount(e.Opcode, n, 8); err != nil {
			return nil, err
		}
		return &AllocStorage{
			AllocationSize: f[0],
			Alignment:      f[1],
			DtypeHint:      readDtype(f[2:5]),
			DeviceType:     f[5],
			DeviceID:       f[6],
			Dst:            RegName(f[7]),
		}, nil

	case OpFree:
		if err := checkFieldCount(e.Opcode, n, 1); err != nil {
			return nil, err
		}
		return &Free{Memory: RegName(f[0])}, nil

	case OpAllocTuple:
		if err := checkFieldCountAtLeast(e.Opcode, n, 2); err != nil {
			return nil, err
		}
		numFields := int(f[0])
		if err := checkFieldCount(e.Opcode, n, 2+numFields); err != nil {
			return nil, err
		}
		return &AllocTuple{Dst: RegName(f[1]), Fields: toRegs(f[2:])}, nil

	case OpAllocClosure:
		if err := checkFieldCountAtLeast(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		numFree := int(f[1])
		if err := checkFieldCount(e.Opcode, n, 3+numFree); err != nil {
			return nil, err
		}
		return &AllocClosure{FuncIndex: f[0], Dst: RegName(f[2]), FreeVars: toRegs(f[3:])}, nil

	case OpSetShape:
		if err := checkFieldCount(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		return &SetShape{Data: RegName(f[0]), Shape: RegName(f[1]), Dst: RegName(f[2])}, nil

	case OpIf:
		if err := checkFieldCount(e.Opcode, n, 4); err != nil {
			return nil, err
		}
		return &If{Test: RegName(f[0]), Target: f[1], TrueOffset: f[2], FalseOffset: f[3]}, nil

	case OpInvokeFunc:
		if err := checkFieldCountAtLeast(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		numArgs := int(f[1])
		if err := checkFieldCount(e.Opcode, n, 3+numArgs); err != nil {
			return nil, err
		}
		return &InvokeFunc{FuncIndex: f[0], Dst: RegName(f[2]), Args: toRegs(f[3:])}, nil

	case OpInvokeClosure:
		if err := checkFieldCountAtLeast(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		numArgs := int(f[1])
		if err := checkFieldCount(e.Opcode, n, 3+numArgs); err != nil {
			return nil, err
		}
		return &InvokeClosure{Closure: RegName(f[0]), Dst: RegName(f[2]), Args: toRegs(f[3:])}, nil

	case OpLoadConst:
		if err := checkFieldCount(e.Opcode, n, 2); err != nil {
			return nil, err
		}
		return &LoadConst{ConstIndex: f[0], Dst: RegName(f[1])}, nil

	case OpLoadConsti:
		if err := checkFieldCount(e.Opcode, n, 2); err != nil {
			return nil, err
		}
		return &LoadConsti{Val: f[0], Dst: RegName(f[1])}, nil

	case OpGetField:
		if err := checkFieldCount(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		return &GetField{Object: RegName(f[0]), FieldIndex: f[1], Dst: RegName(f[2])}, nil

	case OpGoto:
		if err := checkFieldCount(e.Opcode, n, 1); err != nil {
			return nil, err
		}
		return &Goto{PCOffset: f[0]}, nil

	case OpInvokeJit:
		if err := checkFieldCountAtLeast(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		arity := int(f[1])
		if err := checkFieldCount(e.Opcode, n, 3+arity); err != nil {
			return nil, err
		}
		return &InvokeJit{OpReg: RegName(f[0]), Arity: f[1], OutputSize: f[2], Args: toRegs(f[3:])}, nil

	case OpInferType:
		if err := checkFieldCountAtLeast(e.Opcode, n, 3); err != nil {
			return nil, err
		}
		numArgs := int(f[1])
		if err := checkFieldCount(e.Opcode, n, 3+numArgs); err != nil {
			return nil, err
		}
		return &InferType{OpReg: RegName(f[0]), Dst: RegName(f[2]), Args: toRegs(f[3:])}, nil

	case OpCudaSetStream:
		if err := checkFieldCount(e.Opcode, n, 2); err != nil {
			return nil, err
		}
		return &CudaSetStream{DeviceID: f[0], StreamID: f[1]}, nil

	case OpCudaAddEvent:
		if err := checkFieldCount(e.Opcode, n, 2); err != nil {
			return nil, err
		}
		return &CudaAddEvent{EventID: f[0], StreamID: f[1]}, nil

	case OpCudaWaitEvent:
		if err := checkFieldCount(e.Opcode, n, 2); err != nil {
			return nil, err
		}
		return &CudaWaitEvent{EventID: f[0], StreamID: f[1]}, nil

	case OpCudaStreamBarrier:
		// The original decoder returns Fatal() here rather than
		// reconstructing a barrier; fixed to round-trip correctly.
		if err := checkFieldCount(e.Opcode, n, 0); err != nil {
			return nil, err
		}
		return &CudaStreamBarrier{}, nil

	default:
		return nil, &ErrUnknownOpcode{Value: e.Opcode}
	}
}
