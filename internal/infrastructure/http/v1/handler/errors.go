package handler

import "errors"

var (
	ErrFailedToDecodeRequestBody = errors.New("failed to decode request body")
	ErrEngineStopped             = errors.New("pipeline is shutting down")
)
