package audits

import "errors"

var (
	ErrNotFound        = errors.New("audit not found")
	ErrInvalidType     = errors.New("invalid audit type")
	ErrUnsupportedFile = errors.New("file type not allowed")
	ErrFileTooLarge    = errors.New("file too large")
)
