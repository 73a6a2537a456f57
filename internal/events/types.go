package events

// Event type constants for kelindar/event.
const (
	TypeFrameDropped uint32 = iota + 1
	TypeFrameLeakSuspected
	TypeBackendChanged
	TypeCaptureStarted
	TypeCaptureStopped
	TypeConversionFailed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// FrameDroppedEvent fires when the available queue evicts its oldest frame
// to stay within bounds. A drop is backpressure, not an error.
type FrameDroppedEvent struct {
	FrameIndex uint64 `json:"frame_index" doc:"Index of the dropped frame"`
	QueueDepth int    `json:"queue_depth" doc:"Queue depth at the time of the drop"`
	Timestamp  string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameDroppedEvent.
func (e FrameDroppedEvent) Type() uint32 { return TypeFrameDropped }

// FrameLeakSuspectedEvent fires when the reuse pool is full of held frames
// and must evict one, which means consumers keep frames longer than the
// cache allows.
type FrameLeakSuspectedEvent struct {
	PoolSize  int    `json:"pool_size" doc:"Configured pool bound"`
	Timestamp string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameLeakSuspectedEvent.
func (e FrameLeakSuspectedEvent) Type() uint32 { return TypeFrameLeakSuspected }

// BackendChangedEvent fires when the conversion engine selects a different
// backend.
type BackendChangedEvent struct {
	Backend   string `json:"backend" example:"paired" doc:"Selected backend name"`
	Policy    string `json:"policy" example:"auto" doc:"Selection policy in effect"`
	Timestamp string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BackendChangedEvent.
func (e BackendChangedEvent) Type() uint32 { return TypeBackendChanged }

// CaptureStartedEvent fires when a pipeline starts accepting frames.
type CaptureStartedEvent struct {
	OutputFormat string `json:"output_format" example:"rgb24" doc:"Requested output format"`
	Timestamp    string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStartedEvent.
func (e CaptureStartedEvent) Type() uint32 { return TypeCaptureStarted }

// CaptureStoppedEvent fires when a pipeline stops.
type CaptureStoppedEvent struct {
	FramesDelivered uint64 `json:"frames_delivered" doc:"Total frames delivered during the session"`
	FramesDropped   uint64 `json:"frames_dropped" doc:"Total frames dropped during the session"`
	Timestamp       string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStoppedEvent.
func (e CaptureStoppedEvent) Type() uint32 { return TypeCaptureStopped }

// ConversionFailedEvent fires when a conversion downgrades delivery to the
// source format.
type ConversionFailedEvent struct {
	SourceFormat    string `json:"source_format" example:"rgb24" doc:"Incoming frame format"`
	RequestedFormat string `json:"requested_format" example:"nv12" doc:"Requested output format"`
	Reason          string `json:"reason" doc:"Failure description"`
	Timestamp       string `json:"timestamp" example:"2026-08-24T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConversionFailedEvent.
func (e ConversionFailedEvent) Type() uint32 { return TypeConversionFailed }
