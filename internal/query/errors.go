package query

import "errors"

// ErrMalformed marks a model answer that is not parseable JSON.
var ErrMalformed = errors.New("model answer is not valid JSON")
