package api

type ErrorCategory string
type ExitCode int

const (
	ExitSuccess                         = ExitCode(0)
	ExitUsage, ErrUsage                 = ExitCode(1), ErrorCategory("shelf-usage-error")     // Some piece of user input to a command was invalid and unrunnable.
	ExitPanic                           = ExitCode(2)                                         // Placeholder.  '2' happens when golang exits due to panic.
	ExitStoreNotFound, ErrStoreNotFound = ExitCode(3), ErrorCategory("shelf-store-not-found") // The storage root directory does not exist.
	ExitKeyNotFound, ErrKeyNotFound     = ExitCode(4), ErrorCategory("shelf-key-not-found")   // Get or delete of a key that is not on the shelf.
	ExitLockTimeout, ErrLockTimeout     = ExitCode(5), ErrorCategory("shelf-lock-timeout")    // The tree lock could not be acquired before the configured timeout.
	ExitStoreFailure, ErrStoreFailure   = ExitCode(6), ErrorCategory("shelf-store-failure")   // The backing tree failed a read, write, or commit.  Not retried.
	ExitTODO                            = ExitCode(254)                                       // This exit code should be replaced with something more specific
)

/*
	Maps an error category to the exit code a command should return.

	Uncategorized values (including nil) map to ExitTODO;
	callers should check for a nil error first.
*/
func ExitCodeForCategory(category interface{}) ExitCode {
	switch category {
	case ErrUsage:
		return ExitUsage
	case ErrStoreNotFound:
		return ExitStoreNotFound
	case ErrKeyNotFound:
		return ExitKeyNotFound
	case ErrLockTimeout:
		return ExitLockTimeout
	case ErrStoreFailure:
		return ExitStoreFailure
	default:
		return ExitTODO
	}
}
