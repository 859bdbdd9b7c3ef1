package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML or JSON parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeBrowser represents failures talking to the browser tab
	ErrorTypeBrowser ErrorType = "browser"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// BridgeError represents an error raised by one of the bridge components
type BridgeError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *BridgeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeBrowser:
		return true
	default:
		return false
	}
}

// Is reports whether target is a BridgeError of the same type.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Component == "" || t.Component == e.Component)
}

// New creates a new BridgeError
func New(errType ErrorType, component, message string, err error) *BridgeError {
	return &BridgeError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(component, message string, err error) *BridgeError {
	return New(ErrorTypeNetwork, component, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(component, message string, err error) *BridgeError {
	return New(ErrorTypeParsing, component, message, err)
}

// NewBrowser creates a new browser error
func NewBrowser(component, message string, err error) *BridgeError {
	return New(ErrorTypeBrowser, component, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *BridgeError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *BridgeError {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *BridgeError {
	return New(ErrorTypePublisher, component, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *BridgeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err is a BridgeError of the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		if be, ok := err.(*BridgeError); ok && be.Type == errType {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
