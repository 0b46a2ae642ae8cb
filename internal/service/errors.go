package service

import "errors"

// Error kinds surfaced by the service layer. Handlers map these to HTTP
// statuses with errors.Is. Validation errors are detected before any write;
// ErrStorage can be returned even when the link store write succeeded, since
// the catalog write is not transactionally linked to it.
var (
	ErrInvalidURL   = errors.New("invalid URL format, must be http:// or https://")
	ErrInvalidAlias = errors.New("invalid custom alias, use 3-20 alphanumeric characters, hyphens, or underscores")
	ErrAliasTaken   = errors.New("custom alias already taken")
	ErrNotFound     = errors.New("short code not found")
	ErrLinkExpired  = errors.New("link has expired")
	ErrMissingOwner = errors.New("owner identity required")
	ErrStorage      = errors.New("storage error")
)
