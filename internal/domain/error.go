package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// CodeConfigInvalid: missing or malformed credential/config. Fatal before serving.
	CodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	// CodeTargetNotFound: configured target server absent from the backend
	// response. Non-fatal, the caller falls back to unscoped registration.
	CodeTargetNotFound ErrorCode = "TARGET_NOT_FOUND"
	// CodeFetchFailure: network or auth failure during startup discovery.
	// Fatal for the primary servers fetch, degrade-to-empty for the rest.
	CodeFetchFailure ErrorCode = "FETCH_FAILURE"
	// CodeToolExecutionFailure: remote tool call failed or returned malformed
	// data. Recovered locally into an isError tool result, never a protocol error.
	CodeToolExecutionFailure ErrorCode = "TOOL_EXECUTION_FAILURE"
	// CodeResourceReadFailure: remote resource read failed. Hard error.
	CodeResourceReadFailure ErrorCode = "RESOURCE_READ_FAILURE"
	// CodePromptRetrievalFailure: remote prompt retrieval failed. Hard error.
	CodePromptRetrievalFailure ErrorCode = "PROMPT_RETRIEVAL_FAILURE"
	// CodeStackOverflow: execution stack exhausted by a deeply nested payload.
	// Non-recoverable within a run; reported with a remediation hint.
	CodeStackOverflow ErrorCode = "STACK_OVERFLOW"
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
		}
	}
	return E(code, op, "", err)
}

func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	got, ok := CodeFrom(err)
	return ok && got == code
}
