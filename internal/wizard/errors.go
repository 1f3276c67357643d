package wizard

import "errors"

var (
	// ErrInvalidPath is returned for an empty or malformed field path
	ErrInvalidPath = errors.New("invalid field path")

	// ErrFlowClosed is returned for intents applied after submission
	ErrFlowClosed = errors.New("flow already submitted")

	// ErrValidationFailed is returned when a submit attempt has section errors
	ErrValidationFailed = errors.New("validation failed")

	// ErrUnknownIntent is returned by Reduce for an unsupported intent type
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrDocumentIndex is returned when a document index is out of range
	ErrDocumentIndex = errors.New("document index out of range")

	// ErrManagedPath is returned for a field write that would replace the
	// document list, which only changes through the document intents
	ErrManagedPath = errors.New("field is managed by document uploads")
)

// Upload policy rejections
var (
	ErrTooManyFiles      = errors.New("too many files")
	ErrFileTooLarge      = errors.New("file too large")
	ErrTotalSizeExceeded = errors.New("total upload size exceeded")
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrDuplicateFile     = errors.New("duplicate file")
	ErrInvalidFileSize   = errors.New("invalid file size")
)

// Submission failures
var (
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrSubmissionTimeout    = errors.New("submission timed out")
	ErrSubmissionFailed     = errors.New("submission failed")
)
