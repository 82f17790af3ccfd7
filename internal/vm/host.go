// Host callback types of §6 "External Interfaces".
package vm

// Allocator mirrors the host allocation callback: `fn(user, ptr,
// old_size, new_size) -> ptr`. Go's garbage collector performs the
// actual memory management underneath this VM, so there is no `ptr` to
// thread through; what remains of the host's contract is the ability to
// refuse a growth request (e.g. to enforce a memory ceiling), which
// SetAllocator wires to a MEMORY throw exactly as §6 describes: "must
// return a non-null pointer or the VM raises MEMORY and unwinds".
// Return true to permit the allocation, false to refuse it.
type Allocator func(user any, oldSize, newSize int) bool

// Reader is the source-reader callback `load` uses: `fn(user, &out_len)
// -> bytes`. ok=false signals end of input ("returning null or
// out_len=0"). The lexer/compiler do not retain chunk across calls.
type Reader func(user any) (chunk []byte, ok bool)

// readAll drains reader into one contiguous byte slice, the form
// compiler.Compile expects (§4.4's lexer is not itself chunked).
func readAll(reader Reader, user any) []byte {
	var out []byte
	for {
		chunk, ok := reader(user)
		if !ok || len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
	}
	return out
}
