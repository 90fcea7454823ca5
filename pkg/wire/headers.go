package wire

import "strings"

// ContentType is the parsed form of a Content-Type header value.
type ContentType struct {
	Mime    string
	Charset string
}

// Headers is a case-sensitive name→value map with at most one value per
// name (spec section 3 "Headers" — multi-valued headers are the caller's
// concern). Iteration order is insertion order, which the writer relies on
// to reproduce the header block in the order the caller built it.
type Headers struct {
	order []string
	data  map[string]string
}

// NewHeaders returns an empty header set ready for use.
func NewHeaders() *Headers {
	return &Headers{data: make(map[string]string)}
}

func (h *Headers) ensure() {
	if h.data == nil {
		h.data = make(map[string]string)
	}
}

// Add sets name to value, overwriting any prior value for name (last write
// wins — the duplicate-header Open Question, resolved in favor of the
// reference implementation's observed behavior). A first-seen name is
// appended at the end of iteration order; an overwrite keeps its original
// position.
func (h *Headers) Add(name, value string) {
	h.ensure()
	if _, exists := h.data[name]; !exists {
		h.order = append(h.order, name)
	}
	h.data[name] = value
}

// Set is an alias for Add; this core makes no distinction between the two
// beyond the reference implementation's naming.
func (h *Headers) Set(name, value string) {
	h.Add(name, value)
}

// SetDefault sets name to value only if name is not already present.
func (h *Headers) SetDefault(name, value string) {
	h.ensure()
	if _, exists := h.data[name]; exists {
		return
	}
	h.order = append(h.order, name)
	h.data[name] = value
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	if h.data == nil {
		return false
	}
	_, ok := h.data[name]
	return ok
}

// Get returns the value for name, or the empty string if absent — get
// never fails.
func (h *Headers) Get(name string) string {
	if h.data == nil {
		return ""
	}
	return h.data[name]
}

// Remove deletes name, if present.
func (h *Headers) Remove(name string) {
	if h.data == nil {
		return
	}
	if _, exists := h.data[name]; !exists {
		return
	}
	delete(h.data, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Clear empties the header set.
func (h *Headers) Clear() {
	h.order = nil
	h.data = make(map[string]string)
}

// Len returns the number of distinct header names.
func (h *Headers) Len() int {
	return len(h.order)
}

// Each calls fn once per header in insertion order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, name := range h.order {
		fn(name, h.data[name])
	}
}

// Names returns the header names in insertion order. The returned slice
// must not be modified.
func (h *Headers) Names() []string {
	return h.order
}

// ContentType parses the Content-Type header into its mime and charset
// parts (spec section 3 "ContentType"): split on ';', then on 'charset='
// if present. Absence of Content-Type yields a zero ContentType.
func (h *Headers) ContentType() ContentType {
	raw := h.Get("Content-Type")
	if raw == "" {
		return ContentType{}
	}
	parts := strings.SplitN(raw, ";", 2)
	ct := ContentType{Mime: strings.TrimSpace(parts[0])}
	if len(parts) == 2 {
		param := strings.TrimSpace(parts[1])
		if idx := strings.Index(strings.ToLower(param), "charset="); idx >= 0 {
			ct.Charset = strings.TrimSpace(param[idx+len("charset="):])
		}
	}
	return ct
}

// SetContentType sets Content-Type from mime and an optional charset.
func (h *Headers) SetContentType(mime, charset string) {
	if charset == "" {
		h.Add("Content-Type", mime)
		return
	}
	h.Add("Content-Type", mime+"; charset="+charset)
}

// Clone returns a deep copy.
func (h *Headers) Clone() *Headers {
	out := NewHeaders()
	h.Each(func(name, value string) {
		out.Add(name, value)
	})
	return out
}
