package device

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error kinds. Every error returned by this package wraps exactly one of them,
// so callers can branch with errors.Is.
var (
	DeviceNotFound          = errors.New("device not found")
	DeviceBusy              = errors.New("device busy")
	IoError                 = errors.New("io error")
	PermissionDenied        = errors.New("permission denied")
	UnknownArch             = errors.New("unknown architecture")
	IncompatibleDriver      = errors.New("incompatible device driver")
	HwmonError              = errors.New("hwmon error")
	PerformanceCounterError = errors.New("performance counter error")
	UnexpectedValue         = errors.New("unexpected value")
	ParseError              = errors.New("parse error")
	Unsupported             = errors.New("unsupported")
)

// DeviceError is the concrete error type of this package.
type DeviceError struct {
	kind    error
	message string
	cause   error
}

func (e *DeviceError) Error() string {
	return e.message
}

// Kind returns the sentinel this error is classified as.
func (e *DeviceError) Kind() error {
	return e.kind
}

func (e *DeviceError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func newDeviceError(kind error, cause error, format string, args ...any) *DeviceError {
	return &DeviceError{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

func deviceNotFound(name any) error {
	return newDeviceError(DeviceNotFound, nil, "Device %v not found", name)
}

func unrecognizedFile(file any) error {
	return newDeviceError(IncompatibleDriver, nil, "Incompatible device driver: %v file cannot be recognized", file)
}

func invalidDeviceFile(file any) error {
	return newDeviceError(IncompatibleDriver, nil, "Incompatible device driver: %v is not a valid device file", file)
}

func unknownArch(arch string) error {
	return newDeviceError(UnknownArch, nil, "Unknown architecture, arch: %s", arch)
}

func unexpectedValue(format string, args ...any) error {
	return newDeviceError(UnexpectedValue, nil, "Unexpected value: "+format, args...)
}

func parseError(message string, cause any) error {
	return newDeviceError(ParseError, nil, "Failed to parse given message %s: %v", message, cause)
}

func unsupported(arch Arch, operation string) error {
	return newDeviceError(Unsupported, nil, "%s is not supported on %s", operation, arch)
}

// NewPerformanceCounterError wraps a failure of a performance counter reader.
func NewPerformanceCounterError(cause error) error {
	return newDeviceError(PerformanceCounterError, cause, "PerformanceCounterError: %v", cause)
}

// NewHwmonError wraps a failure of a hwmon reader with the owning device index.
func NewHwmonError(deviceIndex uint8, cause error) error {
	return newDeviceError(HwmonError, cause, "HwmonError: [npu%d] %v", deviceIndex, cause)
}

// fromIOError classifies an os-level failure. Errors that already carry a kind
// pass through unchanged.
func fromIOError(err error) error {
	if err == nil {
		return nil
	}

	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return err
	}

	if errors.Is(err, fs.ErrPermission) {
		return newDeviceError(PermissionDenied, err, "PermissionDenied: %v", err)
	}
	return newDeviceError(IoError, err, "IoError: %v", err)
}
