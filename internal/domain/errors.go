package domain

import "errors"

var (
	ErrJobNotFound        = errors.New("download not found")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrToolFailed         = errors.New("downloader tool failed")
	ErrToolTimeout        = errors.New("downloader tool timed out")
	ErrCredentialsMissing = errors.New("provider credentials not configured")
	ErrCatalogRejected    = errors.New("catalog rejected downloaded file")
)
