package app

// StopReason is logged when the app shuts down.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	// StopAppStop means the loop returned on its own with no error.
	StopAppStop StopReason = "app_stop"
)
