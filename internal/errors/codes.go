package errors

// Error codes for the gneiss instrumentation engine
// These codes are used in diagnostics and documentation
// to provide consistent error identification across the toolchain.
//
// Error code ranges:
// G0100-G0199: Input errors (.ll text that cannot be read or lowered)
// G0200-G0299: Pipeline configuration errors
// G0300-G0399: Setup errors
// G0400-G0499: Instrumentation errors
// G0500-G0599: Verification errors

const (
	// G0100: Text outside the supported .ll subset
	ErrorParse = "G0100"

	// G0101: Reference to a value or label that is never defined
	ErrorUndefinedValue = "G0101"

	// G0102: Input file could not be read
	ErrorReadInput = "G0102"

	// G0200: Malformed pipeline description
	ErrorConfig = "G0200"

	// G0201: Pipeline names a pass that does not exist
	ErrorUnknownPass = "G0201"

	// G0202: Pipeline selects both profiles
	ErrorConflictingPasses = "G0202"

	// G0203: Pipeline selects no pass at all
	ErrorEmptyPipeline = "G0203"

	// G0300: Generic setup failure
	ErrorSetup = "G0300"

	// G0301: Entry function missing or only declared
	ErrorMissingEntry = "G0301"

	// G0302: A collaborator symbol exists with another signature
	ErrorSignatureClash = "G0302"

	// G0303: Setup marker present but the sink handle is gone
	ErrorMissingSinkHandle = "G0303"

	// G0400: Generic instrumentation failure
	ErrorInstrumentation = "G0400"

	// G0401: Block without a terminator, nowhere to insert
	ErrorNoInsertionPoint = "G0401"

	// G0500: Module rejected by the verifier after rewriting
	ErrorVerification = "G0500"
)

// GetErrorDescription returns a human-readable description of the error code
func GetErrorDescription(code string) string {
	switch code {
	case ErrorParse:
		return "Input is not in the supported .ll subset"
	case ErrorUndefinedValue:
		return "Input refers to a value or label that is never defined"
	case ErrorReadInput:
		return "Input file could not be read"
	case ErrorConfig:
		return "Pipeline description is malformed"
	case ErrorUnknownPass:
		return "Pipeline names an unknown pass"
	case ErrorConflictingPasses:
		return "The funclog and varassign passes cannot run together"
	case ErrorEmptyPipeline:
		return "Pipeline selects no pass"
	case ErrorSetup:
		return "Log sink setup failed"
	case ErrorMissingEntry:
		return "Module has no definition of the entry function"
	case ErrorSignatureClash:
		return "A logging collaborator is already declared with another signature"
	case ErrorMissingSinkHandle:
		return "Module is marked as set up but the log sink handle is missing"
	case ErrorInstrumentation:
		return "Instrumentation failed"
	case ErrorNoInsertionPoint:
		return "A block has no instruction to insert in front of"
	case ErrorVerification:
		return "Rewritten module is not well formed"
	default:
		return "Unknown error code"
	}
}

// GetErrorCategory returns the category of the error based on its code
func GetErrorCategory(code string) string {
	switch {
	case code >= "G0100" && code < "G0200":
		return "Input"
	case code >= "G0200" && code < "G0300":
		return "Configuration"
	case code >= "G0300" && code < "G0400":
		return "Setup"
	case code >= "G0400" && code < "G0500":
		return "Instrumentation"
	case code >= "G0500" && code < "G0600":
		return "Verification"
	default:
		return "Unknown"
	}
}
