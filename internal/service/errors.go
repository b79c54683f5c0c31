package service

import "errors"

var (
	ErrReportNotFound   = errors.New("report not found")
	ErrAlreadyProcessed = errors.New("report already processed")
	ErrNotReviewed      = errors.New("report has not been reviewed")

	ErrNoSession       = errors.New("no active edit session")
	ErrFieldMismatch   = errors.New("submitted field does not match the active prompt")
	ErrUnknownField    = errors.New("unknown report field")
	ErrInvalidDuration = errors.New("could not parse duration")
	ErrInvalidWorkMode = errors.New("unknown work mode")
	ErrEmptyValue      = errors.New("value must not be empty")

	ErrClientDeliveryFailed = errors.New("client delivery failed")
)
