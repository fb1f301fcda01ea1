package service

import "errors"

var (
	ErrProductUnavailable = errors.New("product is not available for sale")
	ErrForbidden          = errors.New("resource belongs to another user")
)
