package rpc

import (
	"errors"
	"strings"
)

var (
	ErrUnknownProcedure = errors.New("unknown procedure")
	ErrUpstream         = errors.New("rpc upstream failure")
	ErrUnexpectedShape  = errors.New("rpc result has unexpected shape")
	ErrNoCaller         = errors.New("procedure needs an identified caller")
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

type ValidationError struct {
	Procedure string
	Fields    []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid params for " + e.Procedure + ": " + strings.Join(parts, "; ")
}
