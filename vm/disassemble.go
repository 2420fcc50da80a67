package vm

import (
	"fmt"
	"strings"
)

// GetBytecode renders a human-readable disassembly of every function in
// the executable. Each function block consists of a title line, a
// register-file-size line, an instruction-count line, and one line per
// instruction (indices right-aligned to width 2), followed by a
// trailing blank line.
func (e *Executable) GetBytecode() string {
	var b strings.Builder
	for i, fn := range e.Functions {
		fmt.Fprintf(&b, "VM Function[%d]: %s(%s)\n", i, fn.Name, strings.Join(fn.Params, ", "))
		fmt.Fprintf(&b, "# reg file size = %d\n", fn.RegisterFileSize)
		fmt.Fprintf(&b, "# instruction count = %d\n", len(fn.Instructions))
		for idx, inst := range fn.Instructions {
			enc := SerializeInstruction(inst)
			fieldStrs := make([]string, len(enc.Fields))
			for j, f := range enc.Fields {
				fieldStrs[j] = fmt.Sprintf("%d", f)
			}
			fmt.Fprintf(&b, "%2d: %s %s  # %s\n", idx, enc.Opcode, strings.Join(fieldStrs, " "), prettyPrint(inst))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// prettyPrint renders an instruction's payload in a compact,
// field=value form for disassembly readability.
func prettyPrint(inst Instruction) string {
	switch v := inst.(type) {
	case *Move:
		return fmt.Sprintf("Move(from=%d, dst=%d)", v.From, v.Dst)
	case *Ret:
		return fmt.Sprintf("Ret(result=%d)", v.Result)
	case *Fatal:
		return "Fatal()"
	case *InvokePacked:
		return fmt.Sprintf("InvokePacked(packed_index=%d, arity=%d, output_size=%d, args=%v)", v.PackedIndex, v.Arity, v.OutputSize, v.Args)
	case *AllocTensor:
		return fmt.Sprintf("AllocTensor(storage=%d, offset=%d, dtype=%s, own=%t, ndim=%d, dst=%d, shape=%v)", v.Storage, v.Offset, formatDtype(v.Dtype), v.Own, v.Ndim, v.Dst, v.Shape)
	case *AllocTensorReg:
		return fmt.Sprintf("AllocTensorReg(storage=%d, offset=%d, shape_register=%d, dtype=%s, dst=%d, own=%t)", v.Storage, v.Offset, v.ShapeRegister, formatDtype(v.Dtype), v.Dst, v.Own)
	case *AllocStorage:
		return fmt.Sprintf("AllocStorage(allocation_size=%d, alignment=%d, dtype_hint=%s, device_type=%d, device_id=%d, dst=%d)", v.AllocationSize, v.Alignment, formatDtype(v.DtypeHint), v.DeviceType, v.DeviceID, v.Dst)
	case *Free:
		return fmt.Sprintf("Free(memory=%d)", v.Memory)
	case *AllocTuple:
		return fmt.Sprintf("AllocTuple(dst=%d, fields=%v)", v.Dst, v.Fields)
	case *AllocClosure:
		return fmt.Sprintf("AllocClosure(func_index=%d, dst=%d, free_vars=%v)", v.FuncIndex, v.Dst, v.FreeVars)
	case *SetShape:
		return fmt.Sprintf("SetShape(data=%d, shape=%d, dst=%d)", v.Data, v.Shape, v.Dst)
	case *If:
		return fmt.Sprintf("If(test=%d, target=%d, true_offset=%d, false_offset=%d)", v.Test, v.Target, v.TrueOffset, v.FalseOffset)
	case *InvokeFunc:
		return fmt.Sprintf("InvokeFunc(func_index=%d, dst=%d, args=%v)", v.FuncIndex, v.Dst, v.Args)
	case *InvokeClosure:
		return fmt.Sprintf("InvokeClosure(closure=%d, dst=%d, args=%v)", v.Closure, v.Dst, v.Args)
	case *LoadConst:
		return fmt.Sprintf("LoadConst(const_index=%d, dst=%d)", v.ConstIndex, v.Dst)
	case *LoadConsti:
		return fmt.Sprintf("LoadConsti(val=%d, dst=%d)", v.Val, v.Dst)
	case *GetField:
		return fmt.Sprintf("GetField(object=%d, field_index=%d, dst=%d)", v.Object, v.FieldIndex, v.Dst)
	case *Goto:
		return fmt.Sprintf("Goto(pc_offset=%d)", v.PCOffset)
	case *InvokeJit:
		return fmt.Sprintf("InvokeJit(op_reg=%d, arity=%d, output_size=%d, args=%v)", v.OpReg, v.Arity, v.OutputSize, v.Args)
	case *InferType:
		return fmt.Sprintf("InferType(op_reg=%d, dst=%d, args=%v)", v.OpReg, v.Dst, v.Args)
	case *CudaSetStream:
		return fmt.Sprintf("CudaSetStream(device_id=%d, stream_id=%d)", v.DeviceID, v.StreamID)
	case *CudaAddEvent:
		return fmt.Sprintf("CudaAddEvent(event_id=%d, stream_id=%d)", v.EventID, v.StreamID)
	case *CudaWaitEvent:
		return fmt.Sprintf("CudaWaitEvent(event_id=%d, stream_id=%d)", v.EventID, v.StreamID)
	case *CudaStreamBarrier:
		return "CudaStreamBarrier()"
	default:
		return fmt.Sprintf("%T", inst)
	}
}

func formatDtype(d DataType) string {
	return fmt.Sprintf("{code=%d, bits=%d, lanes=%d}", d.Code, d.Bits, d.Lanes)
}

// Stats renders a three-line summary: the constant count (shape-aware
// rendering is a documented future extension and is left as a
// count-only line for now), the global map as ordered (name, index)
// pairs, and the primitive ops in packed-index order.
func (e *Executable) Stats() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Constants: %d\n", len(e.Constants))

	globals := e.sortedGlobals()
	pairs := make([]string, len(globals))
	for i, g := range globals {
		pairs[i] = fmt.Sprintf("%s=%d", g.Name, g.Index)
	}
	fmt.Fprintf(&b, "Globals: %s\n", strings.Join(pairs, ", "))

	names := e.sortedPrimitiveNames()
	fmt.Fprintf(&b, "Primitives: %s\n", strings.Join(names, ", "))

	return b.String()
}
