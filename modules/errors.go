package modules

import "errors"

// Error kinds from spec §7. These are the stable identifiers a caller
// switches on; they are returned as-is or wrapped with fmt.Errorf's %w so
// that errors.Is still finds them, the same plain-errors.New convention the
// teacher uses for its own package-level sentinels (errNilCS,
// errAddressExhaustion, errKnownSeed).
var (
	// ErrMissingParameter means a required request parameter was absent.
	// Use NewMissingParameterError to attach the parameter name.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrInvalidParameter means a request parameter failed validation.
	// Use NewInvalidParameterError to attach the parameter name.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidBody means a request body could not be parsed at all.
	ErrInvalidBody = errors.New("invalid body")

	// ErrWalletNotFound means no wallet exists with the given id.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletNotReady means the wallet exists but materialization has not
	// completed (status is still "creating", or failed into "error").
	ErrWalletNotReady = errors.New("wallet not ready")

	// ErrWalletAlreadyCreated means a wallet for this xpubkey is already
	// creating or ready.
	ErrWalletAlreadyCreated = errors.New("wallet already created")

	// ErrInconsistentChain means a projected input referenced a UTXO that
	// does not exist, or a materialization consistency assertion failed.
	// The triggering event is aborted; operator intervention is required.
	ErrInconsistentChain = errors.New("inconsistent chain")

	// ErrStorageUnavailable means a transient storage error aborted the
	// current event; the caller/transport is expected to retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ParameterError wraps one of ErrMissingParameter/ErrInvalidParameter with
// the offending parameter's name, so the API layer can fill in the
// `parameter` field of spec §6's error envelope.
type ParameterError struct {
	Kind  error // ErrMissingParameter or ErrInvalidParameter
	Param string
}

func (e *ParameterError) Error() string {
	return e.Kind.Error() + ": " + e.Param
}

func (e *ParameterError) Unwrap() error {
	return e.Kind
}

// NewMissingParameterError reports that Param was required but absent.
func NewMissingParameterError(param string) error {
	return &ParameterError{Kind: ErrMissingParameter, Param: param}
}

// NewInvalidParameterError reports that Param was present but invalid.
func NewInvalidParameterError(param string) error {
	return &ParameterError{Kind: ErrInvalidParameter, Param: param}
}
