package notify

import (
	"fmt"
)

// runSafely executes fn and converts panics into returned errors tagged with scope.
// Every subscription worker wraps handler calls with it so one misbehaving
// consumer cannot take down the fan-out loop.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
