package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConcurrencyConflict indicates that an optimistic write lost against a concurrent writer.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrConfiguration indicates that a required configuration setting or value is missing.
var ErrConfiguration = errors.New("configuration error")

// ErrExternalProvider indicates a network, transport or payload failure against the quote provider.
var ErrExternalProvider = errors.New("external provider error")

// ErrStorage indicates a persistence failure other than an optimistic conflict.
var ErrStorage = errors.New("storage error")

// ErrUniqueViolation is the storage failure raised when a currency pair is inserted twice.
var ErrUniqueViolation = fmt.Errorf("%w: unique constraint violation", ErrStorage)

// ConfigStage identifies which step of a setting -> env var -> value lookup failed.
type ConfigStage string

const (
	StageSetting ConfigStage = "setting"
	StageValue   ConfigStage = "value"
)

// ConfigError reports a missing configuration setting (StageSetting) or a
// setting whose environment variable holds no value (StageValue).
type ConfigError struct {
	Stage ConfigStage
	Key   string
}

func (e *ConfigError) Error() string {
	if e.Stage == StageSetting {
		return fmt.Sprintf("configuration setting %q not found", e.Key)
	}
	return fmt.Sprintf("environment variable %q is not set", e.Key)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// NewConfigError creates a ConfigError for the given stage and key.
func NewConfigError(stage ConfigStage, key string) *ConfigError {
	return &ConfigError{Stage: stage, Key: key}
}

// ProviderError describes a failed call to the external quote provider.
type ProviderError struct {
	Op         string // request, status, read, parse, throttled
	From, To   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s failed for %s/%s", e.Op, e.From, e.To)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the provider sentinel and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalProvider}
	}
	return []error{ErrExternalProvider, e.Err}
}

// StorageError wraps a persistence failure with the operation that produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// NewStorageError wraps err as a StorageError for op.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// NewNotFoundError creates an error that matches ErrNotFound with extra detail.
func NewNotFoundError(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, msg)
}

// NewValidationError creates an error that matches ErrValidation with extra detail.
func NewValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
