package app

import "errors"

// Sentinel kinds for ingestion rejections. Unauthorized and storage
// failures reuse the token and repository sentinels.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limited")
)
