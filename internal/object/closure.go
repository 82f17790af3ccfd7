package object

// NativeFunc is a host-supplied C-style closure (§3 "Closure"). It
// receives its arguments and returns its results directly; errors are
// signalled by returning a non-nil error, which the VM turns into a
// RUNTIME throw at the call site (§4.8 call_init/call_fini, §7).
type NativeFunc func(args []Value) ([]Value, error)

// Closure is either a Lua closure (a chunk plus its declared parameter
// count — no upvalues) or a C closure wrapping a native callback and an
// optional light-userdata slot (§3).
type Closure struct {
	Chunk *Chunk // nil for a native closure

	Native     NativeFunc
	UserdataUD Value // optional light-userdata slot for a native closure

	Name string
}

func NewLuaClosure(chunk *Chunk) *Closure {
	return &Closure{Chunk: chunk, Name: chunk.SourceName}
}

func NewNativeClosure(name string, fn NativeFunc) *Closure {
	return &Closure{Native: fn, Name: name, UserdataUD: Nil()}
}

func (c *Closure) IsNative() bool { return c.Native != nil }

func (c *Closure) Arity() int {
	if c.Chunk != nil {
		return c.Chunk.NumParams
	}
	return 0
}
