package vm

// OpLibrary is the externally produced compiled-operator module handle
// an Executable is bound to. It is opaque: this package never calls
// into it, since invoking primitives is out of scope, but a loader must
// supply one, and the two implementations in oplib_manifest.go and
// oplib_grpc.go give it a concrete, testable shape.
type OpLibrary interface {
	// HasPrimitive reports whether name is resolvable by this library.
	HasPrimitive(name string) bool
}

// NullOpLibrary is an OpLibrary that resolves nothing. It is useful for
// tests and for executables with an empty primitive map.
type NullOpLibrary struct{}

func (NullOpLibrary) HasPrimitive(string) bool { return false }
