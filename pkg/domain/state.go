package domain

// Status is the lifecycle stage of a single flow instance.
type Status string

const (
	StatusNone        Status = ""            // Constructed, not prepared
	StatusInitialized Status = "initialized" // Context and completion bound
	StatusRunning     Status = "running"     // Interpreting nodes
	StatusCompleted   Status = "completed"   // Every node succeeded
	StatusFailed      Status = "failed"      // A node failed; completion carried the error
)

// Terminal reports whether the status is a sink state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
