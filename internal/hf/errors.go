package hf

import "errors"

var (
	ErrUnavailable     = errors.New("completion service unavailable")
	ErrTimeout         = errors.New("completion request timeout")
	ErrInvalidPreset   = errors.New("invalid task preset")
	ErrInvalidResponse = errors.New("completion service returned invalid response")
)
