package dlom

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParallelism prices events on up to n goroutines once a schedule has
// at least n events. n <= 1 keeps pricing sequential.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithGreeks attaches put Greeks to every per-event result.
func WithGreeks(enabled bool) Option {
	return func(e *Engine) {
		e.greeks = enabled
	}
}
