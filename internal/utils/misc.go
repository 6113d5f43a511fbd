package utils

func Val[T any](p *T) T {
	if p != nil {
		return *p
	}
	var zero T
	return zero
}
