package store

import "errors"

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrBusinessNotFound = errors.New("business not found")
	ErrVersionConflict  = errors.New("ticket status changed concurrently")
	ErrDuplicateTicket  = errors.New("ticket already exists")
)
