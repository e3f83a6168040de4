package assert

// Positive panics when `n` is zero or negative, it guards arguments that callers
// are expected to have validated already.
func Positive(n int) {
	if n <= 0 {
		panic("expected a positive integer")
	}
}
