package ringsource

import "fmt"

// ConfigError reports invalid adapter configuration: NewAdapter returns it
// for a missing or duplicate source id, OpenFileTransport for a fixture
// that cannot be opened or decoded, and GetEvents for a physics event
// with no timestamp while ExpectBodyHeaders is set.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ringsource: config error: %s", e.Msg)
}

// UnauthorizedSource is returned (and counted in metrics) when a raw item
// arrives from a source id not present in the adapter's permitted list.
type UnauthorizedSource struct {
	SourceID uint32
}

func (e *UnauthorizedSource) Error() string {
	return fmt.Sprintf("ringsource: unauthorized source id %d", e.SourceID)
}

// TransportError wraps a failure from the underlying Transport.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ringsource: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
