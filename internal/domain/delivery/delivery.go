// Package delivery holds the bookkeeping states for outbound
// notification deliveries. The queue is at-least-once, so the worker
// records each delivery and refuses to send the same one twice.
package delivery

import "errors"

var (
	ErrAlreadySent = errors.New("delivery already sent")
	ErrInProgress  = errors.New("delivery in progress")
)

type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)
