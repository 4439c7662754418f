// Package try shortens (value, error) handling where an error can only be fatal,
// in tests and at command startup.
//
//	cfg := try.To(pipeline.Load(path)).OrFatal(t)
package try

// Fataler is something having Fatal, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either holds a pair of (T, error). It is "ok" when the error is nil.
type Either[T any] interface {
	// Get returns the pair as it is.
	Get() (T, error)

	// OrFatal returns the value if ok. Otherwise it calls Fatal with the error.
	//
	// When ftl has Helper() (like *testing.T), it is called before Fatal.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value if ok. Otherwise d.
	OrDefault(d T) T
}

func To[T any](value T, err error) Either[T] {
	return either[T]{value: value, err: err}
}

type either[T any] struct {
	value T
	err   error
}

func (e either[T]) Get() (T, error) {
	if e.err != nil {
		return *new(T), e.err
	}
	return e.value, nil
}

func (e either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}

func (e either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}
