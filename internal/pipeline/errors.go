package pipeline

import (
	"fmt"

	"github.com/ivlev/trailgen/internal/camera"
)

// CaptureError is fatal: a missing frame would corrupt the output sequence.
// It carries the frame index and timeline phase so a failure can be diagnosed
// without re-running the render.
type CaptureError struct {
	Frame int
	Phase camera.Phase
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("frame capture failed at frame %d (%s phase): %v", e.Frame, e.Phase, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// DeliveryError wraps a sink failure with the frame it happened on.
type DeliveryError struct {
	Frame int
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("frame delivery failed at frame %d: %v", e.Frame, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
