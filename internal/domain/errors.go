package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the connection workflow.
var (
	ErrUnsupportedPlatform      = fmt.Errorf("this platform does not support Bluetooth")
	ErrUserCancelled            = fmt.Errorf("device selection cancelled")
	ErrNoDevicesFound           = fmt.Errorf("no devices found")
	ErrTransportFailure         = fmt.Errorf("bluetooth transport failure")
	ErrNoWritableCharacteristic = fmt.Errorf("no writable characteristic found")
	ErrSendFailure              = fmt.Errorf("send failed")
	ErrNotConnected             = fmt.Errorf("not connected")
	ErrEmptyInput               = fmt.Errorf("empty input")
	ErrConnectInProgress        = fmt.Errorf("connection attempt already in progress")
	ErrAlreadyConnected         = fmt.Errorf("already connected")
)

// Sentinel errors for analysis and infrastructure.
var (
	ErrSummarizationUnavailable = fmt.Errorf("summarization unavailable")
	ErrProviderNotFound         = fmt.Errorf("llm provider not found")
	ErrProviderError            = fmt.Errorf("provider error")
	ErrRateLimit                = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid              = fmt.Errorf("authentication failed")
	ErrTimeout                  = fmt.Errorf("operation timed out")
	ErrConfigLoad               = fmt.Errorf("failed to load configuration")
	ErrEncryption               = fmt.Errorf("encryption operation failed")
	ErrDecryption               = fmt.Errorf("decryption failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Connection.Send")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsSilent reports whether err is a no-op rejection that must not be logged
// to the user (blank input, nothing connected).
func IsSilent(err error) bool {
	return errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrNotConnected)
}

// ErrorCode is a machine-parseable error category for logs.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeUnsupportedPlatform ErrorCode = "UNSUPPORTED_PLATFORM"
	CodeUserCancelled       ErrorCode = "USER_CANCELLED"
	CodeNoDevicesFound      ErrorCode = "NO_DEVICES_FOUND"
	CodeTransportFailure    ErrorCode = "TRANSPORT_FAILURE"
	CodeNoWritableChar      ErrorCode = "NO_WRITABLE_CHARACTERISTIC"
	CodeSendFailure         ErrorCode = "SEND_FAILURE"
	CodeNotConnected        ErrorCode = "NOT_CONNECTED"
	CodeEmptyInput          ErrorCode = "EMPTY_INPUT"
	CodeConnectInProgress   ErrorCode = "CONNECT_IN_PROGRESS"
	CodeAlreadyConnected    ErrorCode = "ALREADY_CONNECTED"
	CodeSummarization       ErrorCode = "SUMMARIZATION_UNAVAILABLE"
	CodeProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"
	CodeProviderError       ErrorCode = "PROVIDER_ERROR"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeEncryption          ErrorCode = "ENCRYPTION"
	CodeDecryption          ErrorCode = "DECRYPTION"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrUnsupportedPlatform:      CodeUnsupportedPlatform,
	ErrUserCancelled:            CodeUserCancelled,
	ErrNoDevicesFound:           CodeNoDevicesFound,
	ErrTransportFailure:         CodeTransportFailure,
	ErrNoWritableCharacteristic: CodeNoWritableChar,
	ErrSendFailure:              CodeSendFailure,
	ErrNotConnected:             CodeNotConnected,
	ErrEmptyInput:               CodeEmptyInput,
	ErrConnectInProgress:        CodeConnectInProgress,
	ErrAlreadyConnected:         CodeAlreadyConnected,
	ErrSummarizationUnavailable: CodeSummarization,
	ErrProviderNotFound:         CodeProviderNotFound,
	ErrProviderError:            CodeProviderError,
	ErrRateLimit:                CodeRateLimit,
	ErrAuthInvalid:              CodeAuthInvalid,
	ErrTimeout:                  CodeTimeout,
	ErrConfigLoad:               CodeConfigLoad,
	ErrEncryption:               CodeEncryption,
	ErrDecryption:               CodeDecryption,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
