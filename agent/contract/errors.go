package contract

import "errors"

var (
	ErrModelInvoke    = errors.New("model invoke failed")
	ErrValidation     = errors.New("validation failed")
	ErrConvNotFound   = errors.New("conversation not found")
	ErrNoPendingDraft = errors.New("no pending draft")
	ErrDraftExists    = errors.New("pending draft already exists")
	ErrStateConflict  = errors.New("conversation state changed concurrently")
	ErrRateLimited    = errors.New("reply rate limit exceeded")
)
