package monitoring

// MethodConfiguration is the declarative description of one instrumented
// call, assembled by the facade's CallBuilder (spec.md §4.7) and consumed by
// the Call Stack Engine's create() and the Class Monitor facade. It is plain
// data with no dependency on the business layer.
type MethodConfiguration struct {
	// ReporterTypes are the reporter component types this call should be
	// associated with. Empty means "all enabled reporters are interested"
	// (spec.md §4.4 admission rule default).
	ReporterTypes []ComponentType

	// FilterTypes are filter component types declared directly against this
	// call (type-level relationship, spec.md §3).
	FilterTypes []ComponentType

	// Parameters are statically declared config-level parameters; they take
	// priority over attribute-declared parameters with the same key
	// (spec.md §4.4).
	Parameters *Params

	// GenericArgs and ParameterTypes describe the instrumented method's
	// static shape, stamped onto the rented MethodCallInfo.
	GenericArgs    []string
	ParameterTypes []string

	// IsExternal, ExternalType, ExternalMethod are set by the "external
	// method" variant (spec.md §4.7) which skips descriptor resolution.
	IsExternal     bool
	ExternalType   string
	ExternalMethod string

	// IsStatic and IsExtension stamp the corresponding MethodCallInfo flags.
	IsStatic    bool
	IsExtension bool
}

// NewMethodConfiguration returns a MethodConfiguration with an initialized
// parameter set, ready for a CallBuilder to populate.
func NewMethodConfiguration() MethodConfiguration {
	return MethodConfiguration{Parameters: NewParams()}
}
