package catalog

// Result is the one-shot outcome of a fetch: Pets on success, Err on failure.
type Result struct {
	Pets []Pet
	Err  *Error
}

// Success wraps a validated pet list.
func Success(pets []Pet) Result {
	if pets == nil {
		pets = []Pet{}
	}
	return Result{Pets: pets}
}

// Failure wraps a typed error.
func Failure(err *Error) Result {
	return Result{Err: err}
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}
