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

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz / attempt specific ───────────────────────────────────────
	ErrQuizNotAvailable    ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrQuizNotPublished    ErrCode = "QUIZ_NOT_PUBLISHED"
	ErrQuizNotDraft        ErrCode = "QUIZ_NOT_DRAFT"
	ErrNotQuizOwner        ErrCode = "NOT_QUIZ_OWNER"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrInvalidAccessCode   ErrCode = "INVALID_ACCESS_CODE"
	ErrAttemptSubmitted    ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrNoAttemptsRemaining ErrCode = "NO_ATTEMPTS_REMAINING"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrTeacherAccessOnly:
		return "This resource is restricted to teachers."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."

	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."

	case ErrQuizNotAvailable:
		return "This quiz is not currently available."
	case ErrQuizNotPublished:
		return "This quiz has not been published."
	case ErrQuizNotDraft:
		return "This quiz is not in DRAFT status."
	case ErrNotQuizOwner:
		return "You are not the owner of this quiz."
	case ErrNoQuestions:
		return "This quiz has no questions."
	case ErrInvalidAccessCode:
		return "Invalid access code. Please contact your teacher."
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrNoAttemptsRemaining:
		return "You have no attempts remaining for this quiz."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
