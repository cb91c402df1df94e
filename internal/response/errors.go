package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrTestNotFound            ErrCode = "TEST_NOT_FOUND"
	ErrTestNotPublished        ErrCode = "TEST_NOT_PUBLISHED"
	ErrSessionNotFound         ErrCode = "SESSION_NOT_FOUND"
	ErrPhaseViolation          ErrCode = "PHASE_VIOLATION"
	ErrDisplayCapabilityDenied ErrCode = "DISPLAY_CAPABILITY_REQUIRED"
	ErrInstructionsNotAccepted ErrCode = "INSTRUCTIONS_NOT_ACCEPTED"
	ErrQuestionOutOfRange      ErrCode = "QUESTION_OUT_OF_RANGE"

	// ─── Results / release gate ────────────────────────────────────────
	ErrResultNotFound      ErrCode = "RESULT_NOT_FOUND"
	ErrResultEmbargoed     ErrCode = "RESULT_EMBARGOED"
	ErrResultPersistFailed ErrCode = "RESULT_PERSIST_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your login session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrTestNotFound:
		return "The test could not be loaded. Please go back and try again."
	case ErrTestNotPublished:
		return "This test is not currently available."
	case ErrSessionNotFound:
		return "No exam session was found. Start the test again."
	case ErrPhaseViolation:
		return "This action is not allowed in the current exam phase."
	case ErrDisplayCapabilityDenied:
		return "Fullscreen mode is required to start the exam. Enable it and try again."
	case ErrInstructionsNotAccepted:
		return "You must accept the instructions before starting."
	case ErrQuestionOutOfRange:
		return "The question number is out of range."

	// ─── Results / release gate ────────────────────────────────────────
	case ErrResultNotFound:
		return "The result was not found."
	case ErrResultEmbargoed:
		return "The result is not yet available. Check back after the countdown."
	case ErrResultPersistFailed:
		return "Your score was computed but could not be saved. Please retry — it will not be recalculated."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
