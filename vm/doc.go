// Package vm implements the bytecode executable format for the RAF
// register-based virtual machine: its in-memory data model, instruction
// set, binary codec, and disassembly/statistics rendering.
//
// An Executable is the persisted representation of compiled model
// programs — named functions operating on virtual registers, a constant
// pool, and directories of globals and externally provided primitive
// operators. This package does not execute bytecode; it only encodes,
// decodes, and describes it.
package vm
