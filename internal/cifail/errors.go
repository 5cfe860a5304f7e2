package cifail

import "fmt"

// ValidationError reports a malformed Record or field value. It is fatal
// to the offending record only; callers drop the record and continue the
// cycle with the rest.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
