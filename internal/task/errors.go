package task

import "errors"

var (
	ErrDuplicate         = errors.New("task with the same interval and details already exists")
	ErrNotFound          = errors.New("task not found")
	ErrInvalidUnit       = errors.New("invalid interval unit")
	ErrInvalidInterval   = errors.New("interval must be > 0")
	ErrInvalidDefinition = errors.New("invalid task definition")
)
