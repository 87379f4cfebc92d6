package snapshot

import "fmt"

// Check asserts an invariant over a snapshot pair and the instruction data
// that produced it.
type Check func(pair Pair, data []byte) error

// CheckError names the invariant a check found broken.
type CheckError struct {
	Invariant string
	Detail    string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("invariant %q violated: %s", e.Invariant, e.Detail)
}

func Violation(invariant string, format string, args ...any) error {
	return &CheckError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

// All runs checks in order and returns the first failure.
func All(checks ...Check) Check {
	return func(pair Pair, data []byte) error {
		for _, check := range checks {
			if err := check(pair, data); err != nil {
				return err
			}
		}
		return nil
	}
}
