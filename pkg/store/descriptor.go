package store

// Descriptor configures one adapter slot in the router's registry. The set
// of descriptors is supplied at construction time from an external
// configuration source and is immutable afterwards except through explicit
// reconfiguration.
type Descriptor struct {
	// Name is the unique registry key.
	Name string
	// Kind selects the provider family the adapter binds to.
	Kind Kind
	// Priority orders selection; lower numbers are preferred.
	Priority int
	// Enabled excludes the adapter from construction and selection when false.
	Enabled bool
	// Options carries provider-specific settings (paths, endpoints,
	// namespaces) opaque to the router.
	Options map[string]string
}
