package llm

import "context"

// AdmissionPolicy decides whether a gateway invocation against a backend
// may proceed. How concurrent runs hitting one backend should be handled
// (serialize, queue, reject) is deliberately left to the installed policy;
// the reference behavior applies none.
type AdmissionPolicy interface {
	// Acquire blocks or fails according to the policy. The returned
	// release func must be called once the invocation finishes.
	Acquire(ctx context.Context, backend string) (release func(), err error)
}

type noAdmission struct{}

func (noAdmission) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// NoAdmission is the reference policy: every invocation proceeds
// immediately, concurrency left to the backend.
func NoAdmission() AdmissionPolicy { return noAdmission{} }
