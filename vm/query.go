package vm

import "fmt"

// GetFunctionArity returns the number of parameters the named function
// takes, or -1 if name is not a known global. Unlike a malformed stream,
// an unknown name here is a caller mistake the caller can recover from.
func (e *Executable) GetFunctionArity(name string) int {
	idx, ok := e.GlobalMap[name]
	if !ok {
		return -1
	}
	fn := e.Functions[idx]
	return len(fn.Params)
}

// GetFunctionParameterName returns the i-th parameter name of the named
// function, or "" if name is unknown or i is out of range. i ==
// len(params) is out of range and returns "".
func (e *Executable) GetFunctionParameterName(name string, i int) string {
	idx, ok := e.GlobalMap[name]
	if !ok {
		return ""
	}
	fn := e.Functions[idx]
	if i < 0 || i >= len(fn.Params) {
		return ""
	}
	return fn.Params[i]
}

// The registered query surface below is a small set of stateless
// facades over an Executable, intended for an external host to call by
// name. Each is a thin wrapper over the global/primitive directories;
// index-out-of-range is a checked failure here, distinct from the
// sentinel-valued inspection queries above.

// GetNumOfGlobals returns the number of functions registered as
// globals.
func GetNumOfGlobals(e *Executable) int {
	return len(e.GlobalMap)
}

// GetGlobalFields returns the name at the idx-th position when globals
// are sorted ascending by index.
func GetGlobalFields(e *Executable, idx int) (string, error) {
	globals := e.sortedGlobals()
	if idx < 0 || idx >= len(globals) {
		return "", fmt.Errorf("vm: GetGlobalFields: index %d out of range [0, %d)", idx, len(globals))
	}
	return globals[idx].Name, nil
}

// GetNumOfPrimitives returns the number of primitive ops registered in
// the primitive map.
func GetNumOfPrimitives(e *Executable) int {
	return len(e.PrimitiveMap)
}

// GetPrimitiveFields searches the primitive map for the entry with the
// given packed index and returns its name.
func GetPrimitiveFields(e *Executable, idx int) (string, error) {
	for name, i := range e.PrimitiveMap {
		if int(i) == idx {
			return name, nil
		}
	}
	return "", fmt.Errorf("vm: GetPrimitiveFields: no primitive at index %d", idx)
}

// Load_Executable loads a serialized executable from code against the
// given operator library handle. It is named to match the registered
// query entry point's conventional name rather than Go's
// exported-identifier convention, since it is the query surface's
// direct counterpart to Load.
func Load_Executable(code []byte, lib OpLibrary) (*Executable, error) {
	return Load(code, lib)
}
