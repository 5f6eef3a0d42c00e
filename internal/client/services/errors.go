package services

import "errors"

var (
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrAuthInProgress       = errors.New("authentication in progress")

	ErrFileNotFound       = errors.New("file not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrWatermarkInvariant = errors.New("watermarked file must have a watermark id")
	ErrNotProvisional     = errors.New("record is not provisional")

	// ErrUnsupportedType is wrapped by the validation error returned for a
	// document that is not pdf, doc or docx.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrDuplicateSubmission is returned when the same file is submitted
	// while an earlier submission of it is still in flight.
	ErrDuplicateSubmission = errors.New("submission already in progress")
	// ErrDuplicateFile is wrapped by the validation error returned when the
	// server reports the uploaded bytes as already stored.
	ErrDuplicateFile = errors.New("file already exists")
	// ErrProcessingFailed is returned when the server settles a watermark
	// request with an unsuccessful result.
	ErrProcessingFailed = errors.New("processing failed")
)
