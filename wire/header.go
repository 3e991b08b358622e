package wire

// Header is the case-insensitive, multi-valued header set of one
// request or response. Fields are kept in first-seen order and
// duplicates are preserved end to end: the parser appends fields as
// they arrive, chunked trailers append after the body, and the
// serializer replays the set in the same order.
//
// Storage model: one flat arena holds every name and value back to
// back; each field is a span of offsets into it. Reset keeps both
// allocations, so a pooled Request reaches zero allocations per
// request once the arena has grown to its working size. Unlike a
// map-backed store, the arena never loses ordering or multiplicity,
// which the keep-alive trailer and Set-Cookie paths depend on.
type Header struct {
	// arena backs all names and values, appended in arrival order.
	arena []byte

	// spans locates each field inside the arena, in first-seen order.
	spans []headerSpan
}

// headerSpan is one field's location in the arena.
type headerSpan struct {
	nameOff, nameLen int32
	valOff, valLen   int32
}

// maxHeaderValueBytes is the per-value size cap. Values beyond it
// (runaway cookies) are rejected rather than truncated.
const maxHeaderValueBytes = 8192

// validateField rejects oversized and CRLF-bearing fields.
// RFC 7230 §3.2: field values MUST NOT contain CR or LF; letting one
// through is a response-splitting vector.
func validateField(name, value []byte) error {
	if len(name) == 0 {
		return ErrInvalidHeader
	}
	if len(name) > MaxHeaderName {
		return ErrHeaderTooLarge
	}
	if len(value) > maxHeaderValueBytes {
		return ErrHeaderTooLarge
	}
	for _, b := range name {
		if b == '\r' || b == '\n' || b == ' ' || b == '\t' {
			return ErrInvalidHeader
		}
	}
	for _, b := range value {
		if b == '\r' || b == '\n' {
			return ErrInvalidHeader
		}
	}
	return nil
}

// Add appends a field, preserving arrival order and duplicates.
//
// Allocation behavior: 0 allocs/op once the arena reached its
// working size (pooled reuse keeps capacity across Reset).
func (h *Header) Add(name, value []byte) error {
	if err := validateField(name, value); err != nil {
		return err
	}

	nameOff := int32(len(h.arena))
	h.arena = append(h.arena, name...)
	valOff := int32(len(h.arena))
	h.arena = append(h.arena, value...)

	h.spans = append(h.spans, headerSpan{
		nameOff: nameOff, nameLen: int32(len(name)),
		valOff: valOff, valLen: int32(len(value)),
	})
	return nil
}

// name and value return a span's byte windows.
func (h *Header) name(s headerSpan) []byte {
	return h.arena[s.nameOff : s.nameOff+s.nameLen]
}

func (h *Header) value(s headerSpan) []byte {
	return h.arena[s.valOff : s.valOff+s.valLen]
}

// find returns the index of the first field with the given name,
// -1 when absent. Lookup is case-insensitive per RFC 7230.
func (h *Header) find(name []byte) int {
	for i, s := range h.spans {
		if int(s.nameLen) == len(name) && bytesEqualCaseInsensitive(h.name(s), name) {
			return i
		}
	}
	return -1
}

// Get retrieves the first value for name (case-insensitive).
// Returns nil if the header is not found.
//
// The returned slice references the arena and is valid only until the
// next Reset.
//
// Allocation behavior: 0 allocs/op
func (h *Header) Get(name []byte) []byte {
	if i := h.find(name); i >= 0 {
		return h.value(h.spans[i])
	}
	return nil
}

// GetString retrieves the first value for name as a string,
// "" when absent.
//
// Allocation behavior: 1 alloc/op (string conversion)
func (h *Header) GetString(name []byte) string {
	val := h.Get(name)
	if val == nil {
		return ""
	}
	return string(val)
}

// Has checks if a header exists (case-insensitive).
// Allocation behavior: 0 allocs/op
func (h *Header) Has(name []byte) bool {
	return h.find(name) >= 0
}

// Set replaces the first field with the given name, adding it when
// absent. Later duplicates are left alone (Set targets singleton
// fields; multi-valued fields go through Add).
//
// The new value is appended to the arena and the span repointed; the
// old bytes stay orphaned until Reset reclaims the arena.
func (h *Header) Set(name, value []byte) error {
	if err := validateField(name, value); err != nil {
		return err
	}
	i := h.find(name)
	if i < 0 {
		return h.Add(name, value)
	}
	valOff := int32(len(h.arena))
	h.arena = append(h.arena, value...)
	h.spans[i].valOff = valOff
	h.spans[i].valLen = int32(len(value))
	return nil
}

// Del removes every field with the given name (case-insensitive),
// keeping the remaining fields in order.
//
// Allocation behavior: 0 allocs/op
func (h *Header) Del(name []byte) {
	kept := h.spans[:0]
	for _, s := range h.spans {
		if int(s.nameLen) == len(name) && bytesEqualCaseInsensitive(h.name(s), name) {
			continue
		}
		kept = append(kept, s)
	}
	h.spans = kept
}

// Len returns the number of fields, duplicates included.
func (h *Header) Len() int {
	return len(h.spans)
}

// Reset clears the set for reuse, keeping arena and span capacity so
// pooled requests allocate nothing in steady state.
//
// Allocation behavior: 0 allocs/op
func (h *Header) Reset() {
	h.arena = h.arena[:0]
	h.spans = h.spans[:0]
}

// VisitAll calls the visitor for each field in first-seen order,
// duplicates included. Iteration stops if the visitor returns false.
//
// This is the serializer's replay path: the visiting order is exactly
// the order user code and the parser added fields.
func (h *Header) VisitAll(visitor func(name, value []byte) bool) {
	for _, s := range h.spans {
		if !visitor(h.name(s), h.value(s)) {
			return
		}
	}
}

// VisitValues calls the visitor for every value of one name, in
// first-seen order.
func (h *Header) VisitValues(name []byte, visitor func(value []byte) bool) {
	for _, s := range h.spans {
		if int(s.nameLen) == len(name) && bytesEqualCaseInsensitive(h.name(s), name) {
			if !visitor(h.value(s)) {
				return
			}
		}
	}
}

// bytesEqualCaseInsensitive compares two byte slices case-insensitively.
// This is required per RFC 7230 - header field names are case-insensitive.
//
// Allocation behavior: 0 allocs/op
func bytesEqualCaseInsensitive(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if toLower(a[i]) != toLower(b[i]) {
			return false
		}
	}
	return true
}

// toLower converts an ASCII uppercase letter to lowercase.
// Non-letter bytes are returned unchanged.
// This is sufficient for HTTP header names which are ASCII.
//
// Allocation behavior: 0 allocs/op
func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 32
	}
	return b
}
