package remote

import "errors"

// Sentinel errors wrapped by the model.Error values the adapter returns.
var (
	ErrTooLarge       = errors.New("image exceeds size limit")
	ErrBadEncoding    = errors.New("image is not valid base64")
	ErrEmptyResponse  = errors.New("empty response from vision service")
	ErrUnparsable     = errors.New("response is not valid JSON")
	ErrSchema         = errors.New("response does not match schema")
	ErrRejected       = errors.New("vision service rejected the image")
	ErrRateLimited    = errors.New("vision service is throttling requests")
	ErrNotConfigured  = errors.New("gemini API key is required")
	ErrMaxTokens      = errors.New("max tokens out of range")
	ErrUnexpectedPart = errors.New("unexpected response part from vision service")
)
