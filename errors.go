package tdm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies configuration and runtime failures.
type ErrorKind int

const (
	KindInvalidPins ErrorKind = iota + 1
	KindUnsupportedVariant
	KindPortLimitExceeded
	KindSlotOverflow
	KindSlotConflict
	KindFormatUnsupported
	KindMclkDivisibility
	KindInconsistentConfig
	KindInvalidState
	KindHardwareBusy
	KindDmaFailure
)

// Sentinel errors, one per kind. Typed errors match them with errors.Is.
var (
	ErrInvalidPins        = errors.New("invalid pins")
	ErrUnsupportedVariant = errors.New("unsupported variant")
	ErrPortLimitExceeded  = errors.New("port limit exceeded")
	ErrSlotOverflow       = errors.New("slot overflow")
	ErrSlotConflict       = errors.New("slot conflict")
	ErrFormatUnsupported  = errors.New("format unsupported")
	ErrMclkDivisibility   = errors.New("mclk multiple not divisible by 3 for 24-bit format")
	ErrInconsistentConfig = errors.New("inconsistent configuration")
	ErrInvalidState       = errors.New("invalid state")
	ErrHardwareBusy       = errors.New("hardware busy")
	ErrDmaFailure         = errors.New("dma failure")
)

var kindSentinel = map[ErrorKind]error{
	KindInvalidPins:        ErrInvalidPins,
	KindUnsupportedVariant: ErrUnsupportedVariant,
	KindPortLimitExceeded:  ErrPortLimitExceeded,
	KindSlotOverflow:       ErrSlotOverflow,
	KindSlotConflict:       ErrSlotConflict,
	KindFormatUnsupported:  ErrFormatUnsupported,
	KindMclkDivisibility:   ErrMclkDivisibility,
	KindInconsistentConfig: ErrInconsistentConfig,
	KindInvalidState:       ErrInvalidState,
	KindHardwareBusy:       ErrHardwareBusy,
	KindDmaFailure:         ErrDmaFailure,
}

// String returns the sentinel message for the kind.
func (k ErrorKind) String() string {
	if s, ok := kindSentinel[k]; ok {
		return s.Error()
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ConfigError is returned by configuration-time operations. Port is -1 when
// the failure is not tied to a port.
type ConfigError struct {
	Kind ErrorKind
	Port int
	Err  error
}

func (e *ConfigError) Error() string {
	prefix := e.Kind.String()
	if e.Port >= 0 {
		prefix = fmt.Sprintf("port %d: %s", e.Port, prefix)
	}

	if e.Err == nil {
		return prefix
	}

	return prefix + ": " + e.Err.Error()
}

// Unwrap exposes the cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *ConfigError) Is(target error) bool {
	return kindSentinel[e.Kind] == target
}

// RuntimeError is returned when hardware acquisition or DMA start fails.
type RuntimeError struct {
	Kind ErrorKind
	Port int
	Err  error
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("port %d: %s", e.Port, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes the driver error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *RuntimeError) Is(target error) bool {
	return kindSentinel[e.Kind] == target
}

func configErr(kind ErrorKind, port int, format string, args ...any) error {
	return &ConfigError{Kind: kind, Port: port, Err: fmt.Errorf(format, args...)}
}

// ErrorKindOf returns the kind of a ConfigError or RuntimeError in err's chain, or 0.
func ErrorKindOf(err error) ErrorKind {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Kind
	}

	return 0
}
