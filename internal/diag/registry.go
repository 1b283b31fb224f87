package diag

import "github.com/richl9/drgn-tools/internal/corelens"

// Registry returns a fresh registry holding every built-in
// diagnostic module. Callers get their own registry so that test
// code can register fakes without touching global state.
func Registry() *corelens.Registry {
	return corelens.NewRegistry().MustRegister(
		newLockup,
		newWorkqueueLockup,
		newInflightIO,
		newCrsEviction,
		newSysInfo,
	)
}
