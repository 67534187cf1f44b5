package loader

import "errors"

const Namespace = "loader"

var (
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
)
