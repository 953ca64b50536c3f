package walletauth

import "errors"

var (
	// ErrVerificationFailed wraps every rejected sign-in proof. The wrapped text
	// is the verifier's reason and is safe to show to the caller.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrRateLimited is returned when a client IP has too many failed sign-ins.
	ErrRateLimited = errors.New("too many failed sign-in attempts")
	// ErrUnavailable marks a backing store or collaborator outage. Fail closed.
	ErrUnavailable = errors.New("auth backend unavailable")
	// ErrInvalidConfig is returned by Config.Validate and Builder.Build.
	ErrInvalidConfig = errors.New("invalid walletauth configuration")
	// ErrInvalidRequest marks malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTokenInvalid is returned when a service token does not verify.
	ErrTokenInvalid = errors.New("invalid service token")
	// ErrBuilderUsed is returned by a second Build call.
	ErrBuilderUsed = errors.New("builder already used")
)
