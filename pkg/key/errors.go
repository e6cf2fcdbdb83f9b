package key

import "errors"

// ErrInvalidKind indicates a kind byte outside the {i,a,r} vocabulary.
var ErrInvalidKind = errors.New("invalid kind")

// ErrInvalidKey indicates a malformed guid or hash component.
var ErrInvalidKey = errors.New("invalid key")
