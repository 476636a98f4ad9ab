package types

import "errors"

// Table store errors. Callers match them with errors.Is; the store wraps them
// with the table id and encoded key.
var (
	ErrNotFound     = errors.New("entry not found")
	ErrEncode       = errors.New("encode failed")
	ErrDecode       = errors.New("decode failed")
	ErrCorrupt      = errors.New("checksum mismatch")
	ErrTypeMismatch = errors.New("type mismatch")
	ErrStoreClosed  = errors.New("store is closed")
)
