//go:build !cgo || nocgo

package espeakng

// Builds without cgo have no engine to talk to.
func defaultBackend() (Backend, error) {
	return nil, &Error{Kind: KindOtherNative, Op: "Initialise", Err: ErrNativeUnavailable}
}
