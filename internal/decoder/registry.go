package decoder

// The real MF4/CAN decoder binding registers itself here from its own
// package init (typically behind a build tag), keeping this module free
// of any hard dependency on a particular decoder implementation.

var (
	defaultOpener       Opener
	defaultConcatenator Concatenator
)

// RegisterDefault installs the process-wide recording opener.
func RegisterDefault(o Opener) { defaultOpener = o }

// RegisterDefaultConcatenator installs the process-wide concatenator.
func RegisterDefaultConcatenator(c Concatenator) { defaultConcatenator = c }

// Default returns the registered opener, or nil when no binding is
// compiled in.
func Default() Opener { return defaultOpener }

// DefaultConcatenator returns the registered concatenator, or nil.
func DefaultConcatenator() Concatenator { return defaultConcatenator }
