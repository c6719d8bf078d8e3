package sse

import "errors"

var errMalformed = errors.New("malformed event payload")
