package must

// Must panics on a non-nil error. Only for package-level initialisation of
// values that are known to be valid, such as embedded ABI definitions.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
