package bboltx

// PanicSentinel is the value passed to panic() by Must() and the helpers
// that call it.
type PanicSentinel struct {
	// Cause is the error returned by BoltDB.
	Cause error
}

// Must panics with a PanicSentinel if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(PanicSentinel{err})
	}
}

// Recover assigns the cause of a PanicSentinel panic to *err.
//
// It must be called directly by a deferred statement. Any other panic value
// is re-raised.
func Recover(err *error) {
	if err == nil {
		panic("err must be a non-nil pointer")
	}

	r := recover()
	if r == nil {
		return
	}

	if s, ok := r.(PanicSentinel); ok {
		*err = s.Cause
		return
	}

	panic(r)
}
