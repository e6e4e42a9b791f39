package constants

// ProcessingMethod is the `_method` provenance tag attached to every result.
// Stable values (stored in document_processing_log).
type ProcessingMethod string

const (
	MethodNativeModel    ProcessingMethod = "native+model"
	MethodOCRModel       ProcessingMethod = "ocr+model"
	MethodNativeFallback ProcessingMethod = "native+fallback"
	MethodOCRFallback    ProcessingMethod = "ocr+fallback"
)

// ProcessingMethodFor combines the extraction source with the structuring path.
func ProcessingMethodFor(native, model bool) ProcessingMethod {
	switch {
	case native && model:
		return MethodNativeModel
	case native:
		return MethodNativeFallback
	case model:
		return MethodOCRModel
	default:
		return MethodOCRFallback
	}
}

// Structuring outcomes recorded in metrics.
const (
	OutcomeOK          = "ok"
	OutcomeUnparseable = "unparseable"
	OutcomeTimeout     = "timeout"
	OutcomeAPIError    = "api_error"
)
