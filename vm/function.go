package vm

import "fmt"

// Function is a named, callable unit of bytecode: a parameter list, the
// size of its register file, and its instruction sequence.
type Function struct {
	Name              string
	Params            []string
	RegisterFileSize  Index
	Instructions      []Instruction
}

// NewFunction constructs a Function, panicking if any instruction
// references a register outside [0, registerFileSize). Such a reference
// is a programming error in the compiler producing the function, not a
// runtime condition callers should be expected to recover from.
func NewFunction(name string, params []string, registerFileSize Index, instructions []Instruction) *Function {
	fn := &Function{Name: name, Params: params, RegisterFileSize: registerFileSize, Instructions: instructions}
	fn.checkRegisterBounds()
	return fn
}

func (fn *Function) checkRegisterBounds() {
	check := func(r RegName) {
		if r < 0 || Index(r) >= fn.RegisterFileSize {
			panic(fmt.Sprintf("vm: function %q: register %d out of bounds [0, %d)", fn.Name, r, fn.RegisterFileSize))
		}
	}
	checkAll := func(rs []RegName) {
		for _, r := range rs {
			check(r)
		}
	}

	for _, inst := range fn.Instructions {
		switch v := inst.(type) {
		case *Move:
			check(v.From)
			check(v.Dst)
		case *Ret:
			check(v.Result)
		case *Fatal:
		case *InvokePacked:
			checkAll(v.Args)
		case *AllocTensor:
			check(v.Storage)
			check(v.Dst)
		case *AllocTensorReg:
			check(v.Storage)
			check(v.ShapeRegister)
			check(v.Dst)
		case *AllocStorage:
			check(v.Dst)
		case *Free:
			check(v.Memory)
		case *AllocTuple:
			check(v.Dst)
			checkAll(v.Fields)
		case *AllocClosure:
			check(v.Dst)
			checkAll(v.FreeVars)
		case *SetShape:
			check(v.Data)
			check(v.Shape)
			check(v.Dst)
		case *If:
			check(v.Test)
		case *InvokeFunc:
			check(v.Dst)
			checkAll(v.Args)
		case *InvokeClosure:
			check(v.Closure)
			check(v.Dst)
			checkAll(v.Args)
		case *LoadConst:
			check(v.Dst)
		case *LoadConsti:
			check(v.Dst)
		case *GetField:
			check(v.Object)
			check(v.Dst)
		case *Goto:
		case *InvokeJit:
			check(v.OpReg)
			checkAll(v.Args)
		case *InferType:
			check(v.OpReg)
			check(v.Dst)
			checkAll(v.Args)
		case *CudaSetStream, *CudaAddEvent, *CudaWaitEvent, *CudaStreamBarrier:
		default:
			panic(fmt.Sprintf("vm: function %q: unhandled instruction type %T", fn.Name, inst))
		}
	}
}
