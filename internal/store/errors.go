package store

import "errors"

var (
	ErrAuditDisabled = errors.New("audit disabled")
	ErrAuditFull     = errors.New("audit buffer full")
)
