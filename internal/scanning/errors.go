package scanning

import "fmt"

// FailureKind distinguishes the ways a structured-extraction attempt can
// fail. The pipeline treats all of them as one "extraction failed" outcome
// and falls back to the pattern extractor, but the kind is kept for
// diagnostics and metrics so prompt or schema drift is visible in logs.
type FailureKind string

const (
	// FailureNetwork covers transport errors and timeouts.
	FailureNetwork FailureKind = "network"
	// FailureStatus covers non-2xx responses from the service.
	FailureStatus FailureKind = "status"
	// FailureEnvelope means the outer response body did not decode.
	FailureEnvelope FailureKind = "envelope"
	// FailureSchema means the inner payload did not validate or decode.
	FailureSchema FailureKind = "schema"
)

// ExtractionError is the typed failure for one extraction attempt. Body
// holds a truncated copy of the offending payload.
type ExtractionError struct {
	Kind   FailureKind
	Status int
	Body   string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("structured extraction failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("structured extraction failed (%s): %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Retryable reports whether a user-initiated retry can plausibly succeed.
// Every extraction-service failure class is retryable; only input errors
// upstream of extraction are not.
func (e *ExtractionError) Retryable() bool { return true }

const maxDiagnosticBody = 4 << 10

// truncateBody caps raw payloads kept on errors so logs stay readable.
func truncateBody(b []byte) string {
	if len(b) <= maxDiagnosticBody {
		return string(b)
	}
	return string(b[:maxDiagnosticBody]) + "...(truncated)"
}
