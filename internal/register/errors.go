package register

import (
	"errors"
	"fmt"
)

// ErrDuplicateRegistration 同一证件哈希已经注册过
var ErrDuplicateRegistration = errors.New("identity already registered")

// ValidationError 请求本身不合法，调用方应返回 400
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// VerificationRejectedError carries the model's verdict when a document is
// rejected. It is an expected outcome, not an infrastructure failure.
type VerificationRejectedError struct {
	Reason string
}

func (e *VerificationRejectedError) Error() string {
	if e.Reason == "" {
		return "identity verification rejected"
	}
	return fmt.Sprintf("identity verification rejected: %s", e.Reason)
}
