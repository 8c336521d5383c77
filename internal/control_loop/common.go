package control_loop

// Regulator turns a raw target duty cycle into the duty cycle that is actually applied.
// Implementations keep per channel state, so Regulate must be called exactly once per
// channel and control tick.
type Regulator interface {
	Regulate(channel int, temperature float64, target int) int
	// Reset forgets everything known about the given channel
	Reset(channel int)
}
