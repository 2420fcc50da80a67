package vm

import "fmt"

// RegName identifies a virtual register within a function's register
// file. Valid register names are nonnegative.
type RegName int64

// Index denotes a generic offset, count, or table index. Most indices
// are nonnegative; pc_offset and the branch offsets of If are signed.
type Index int64

// DataType is a packed numeric/tensor element type descriptor.
type DataType struct {
	Code  uint8
	Bits  uint8
	Lanes uint16
}

// Opcode tags an Instruction variant.
type Opcode uint8

const (
	OpMove Opcode = iota
	OpRet
	OpFatal
	OpInvokePacked
	OpAllocTensor
	OpAllocTensorReg
	OpAllocStorage
	OpFree
	OpAllocTuple
	OpAllocClosure
	OpSetShape
	OpIf
	OpInvokeFunc
	OpInvokeClosure
	OpLoadConst
	OpLoadConsti
	OpGetField
	OpGoto
	OpInvokeJit
	OpInferType
	OpCudaSetStream
	OpCudaAddEvent
	OpCudaWaitEvent
	OpCudaStreamBarrier
)

var opcodeNames = [...]string{
	OpMove:              "move",
	OpRet:                "ret",
	OpFatal:              "fatal",
	OpInvokePacked:       "invoke_packed",
	OpAllocTensor:        "alloc_tensor",
	OpAllocTensorReg:     "alloc_tensor_reg",
	OpAllocStorage:       "alloc_storage",
	OpFree:               "free",
	OpAllocTuple:         "alloc_tuple",
	OpAllocClosure:       "alloc_closure",
	OpSetShape:           "set_shape",
	OpIf:                 "if",
	OpInvokeFunc:         "invoke_func",
	OpInvokeClosure:      "invoke_closure",
	OpLoadConst:          "load_const",
	OpLoadConsti:         "load_consti",
	OpGetField:           "get_field",
	OpGoto:               "goto",
	OpInvokeJit:          "invoke_jit",
	OpInferType:          "infer_type",
	OpCudaSetStream:      "cuda_set_stream",
	OpCudaAddEvent:       "cuda_add_event",
	OpCudaWaitEvent:      "cuda_wait_event",
	OpCudaStreamBarrier:  "cuda_stream_barrier",
}

// String renders the opcode's canonical lowercase mnemonic, matching the
// disassembler's rendering.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}
