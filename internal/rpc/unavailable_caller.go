package rpc

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNoBackend = errors.New("no rpc backend configured")

// UnavailableCaller rejects every call. Used when the service runs on the
// memory store with no hosted REST endpoint.
type UnavailableCaller struct{}

func (UnavailableCaller) Call(context.Context, Procedure, []Arg) (json.RawMessage, error) {
	return nil, ErrNoBackend
}
