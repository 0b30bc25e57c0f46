package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	// ErrCredential marks provider rejections tied to the credential in use
	// (quota exhausted, key revoked). Another key may succeed.
	ErrCredential = errors.New("credential rejected")
	// ErrNoCredential is job-fatal: the key pool had nothing to hand out.
	ErrNoCredential = errors.New("no credential available")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCredentialFailure reports whether err should trigger key rotation.
func IsCredentialFailure(err error) bool {
	return errors.Is(err, ErrCredential)
}

// ErrorHint returns a short operator-facing hint for the error class.
func ErrorHint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCredential):
		return "add provider keys with 'subtrans keys set'"
	case errors.Is(err, ErrCredential):
		return "provider rejected the key; check quota or rotate keys"
	case errors.Is(err, ErrTimeout):
		return "raise provider.timeout_seconds or shorten batch.max_video_duration"
	case errors.Is(err, ErrConfiguration):
		return "check the config file"
	case errors.Is(err, ErrValidation):
		return "check the request parameters"
	case errors.Is(err, ErrExternalTool):
		return "check that the external tool is installed"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// ErrorDetails returns the log fields describing err: its class marker and an
// operator hint.
func ErrorDetails(err error) (kind string, hint string) {
	if err == nil {
		return "", ""
	}
	switch {
	case errors.Is(err, ErrNoCredential):
		kind = "no_credential"
	case errors.Is(err, ErrCredential):
		kind = "credential"
	case errors.Is(err, ErrTimeout):
		kind = "timeout"
	case errors.Is(err, ErrConfiguration):
		kind = "configuration"
	case errors.Is(err, ErrValidation):
		kind = "validation"
	case errors.Is(err, ErrNotFound):
		kind = "not_found"
	case errors.Is(err, ErrExternalTool):
		kind = "external_tool"
	default:
		kind = "transient"
	}
	return kind, ErrorHint(err)
}
