package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidProfile = errors.New("invalid profile")
)
