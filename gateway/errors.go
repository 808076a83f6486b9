// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package gateway

import "fmt"

// ConfigError reports inconsistent or malformed model configuration.
// It is raised at adapter construction, before any network call, and
// is never retried.
type ConfigError struct {
	ModelID string
	Message string
}

// NewConfigError creates a configuration error for a model.
func NewConfigError(modelID, format string, args ...any) *ConfigError {
	return &ConfigError{ModelID: modelID, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for model %q: %s", e.ModelID, e.Message)
}

// VendorError reports a non-success response from an upstream vendor.
// The vendor's status code, status text, and raw error body are kept so
// operators can distinguish vendor failures from gateway failures. The
// gateway does not retry vendor errors on its own.
type VendorError struct {
	Vendor     VendorType
	StatusCode int
	Status     string
	Body       []byte
}

// NewVendorError creates a vendor error from a non-2xx response.
func NewVendorError(vendor VendorType, statusCode int, status string, body []byte) *VendorError {
	return &VendorError{Vendor: vendor, StatusCode: statusCode, Status: status, Body: body}
}

// Error implements the error interface.
func (e *VendorError) Error() string {
	return fmt.Sprintf("%s vendor error (status %d %s): %s",
		e.Vendor, e.StatusCode, e.Status, string(e.Body))
}

// UnknownModelError reports a request for a model id with no configured
// adapter.
type UnknownModelError struct {
	ModelID string
}

// Error implements the error interface.
func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no adapter configured for model %q", e.ModelID)
}

// UnsupportedOperationError reports an operation the model's vendor
// does not offer (e.g. image generation on a text vendor).
type UnsupportedOperationError struct {
	ModelID   string
	Operation string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("model %q does not support %s", e.ModelID, e.Operation)
}
