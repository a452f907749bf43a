package device

// Binding ties a {vendor, product} pair to the topology, codec and input
// decoder for that model. Dispatch is data-driven: supporting a new
// device means registering a new entry, not subclassing anything.
type Binding struct {
	Name     string
	Class    Class
	Topology Topology

	// NewCodec builds a fresh codec; codecs hold per-device report
	// buffers and must not be shared between bound devices.
	NewCodec func() Codec
	Decode   DecodeFunc
}

// Registry maps vendor/product identifiers to bindings.
type Registry struct {
	m map[uint32]Binding
}

func regKey(vendor, product uint16) uint32 {
	return uint32(vendor)<<16 | uint32(product)
}

// NewRegistry returns a registry pre-populated with the built-in generic
// bindings.
func NewRegistry() *Registry {
	r := &Registry{m: map[uint32]Binding{}}
	r.Register(0x1e7d, 0x3098, Binding{
		Name:     "generic per-key RGB keyboard",
		Class:    ClassKeyboard,
		Topology: GenericKeyboard(),
		NewCodec: func() Codec { return newKeyboardCodec(0x0f) },
		Decode:   decodeGenericKeyboard,
	})
	r.Register(0x1e7d, 0x2e27, Binding{
		Name:     "generic RGB mouse",
		Class:    ClassMouse,
		Topology: GenericMouse(),
		NewCodec: func() Codec { return newMouseCodec(0x10) },
		Decode:   decodeGenericMouse,
	})
	return r
}

// Register adds or replaces a binding.
func (r *Registry) Register(vendor, product uint16, b Binding) {
	r.m[regKey(vendor, product)] = b
}

// Lookup finds the binding for a vendor/product pair.
func (r *Registry) Lookup(vendor, product uint16) (Binding, bool) {
	b, ok := r.m[regKey(vendor, product)]
	return b, ok
}

// Names lists registered binding names, for status reporting.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.m))
	for _, b := range r.m {
		out = append(out, b.Name)
	}
	return out
}
