package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/geocoder89/visionhub/internal/actorctx"
	"github.com/go-playground/validator/v10"
)

const defaultCallTimeout = 5 * time.Second

// Arg is one bound parameter, in the order the procedure declares it.
type Arg struct {
	Name  string
	Kind  Kind
	Value any
}

// Caller executes an already validated procedure call against the backend.
type Caller interface {
	Call(ctx context.Context, proc Procedure, args []Arg) (json.RawMessage, error)
}

type Gateway struct {
	registry *Registry
	caller   Caller
	validate *validator.Validate
	log      *slog.Logger
	timeout  time.Duration
}

func NewGateway(registry *Registry, caller Caller, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		registry: registry,
		caller:   caller,
		validate: validator.New(),
		log:      log,
		timeout:  defaultCallTimeout,
	}
}

func (g *Gateway) Procedures() []Procedure {
	return g.registry.List()
}

// Call validates params against the named procedure, binds caller scoped
// params from the identity on ctx and runs the call once. Failures are not
// retried.
func (g *Gateway) Call(ctx context.Context, name string, params map[string]json.RawMessage) (json.RawMessage, error) {
	proc, ok := g.registry.Lookup(name)
	if !ok {
		return nil, ErrUnknownProcedure
	}

	args, err := g.bind(ctx, proc, params)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.caller.Call(callCtx, proc, args)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		g.log.ErrorContext(ctx, "rpc call failed", "procedure", name, "err", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, name, err)
	}

	out, err := checkShape(proc.Shape, raw)
	if err != nil {
		g.log.ErrorContext(ctx, "rpc result rejected", "procedure", name, "shape", proc.Shape, "err", err)
		return nil, err
	}

	return out, nil
}

func (g *Gateway) bind(ctx context.Context, proc Procedure, params map[string]json.RawMessage) ([]Arg, error) {
	var fields []FieldError

	unknown := make([]string, 0)
	for key := range params {
		if _, ok := proc.param(key); !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		fields = append(fields, FieldError{Field: key, Rule: "unknown", Message: "is not a parameter of " + proc.Name})
	}

	caller, hasCaller := actorctx.UserFrom(ctx)

	args := make([]Arg, 0, len(proc.Params))
	for _, prm := range proc.Params {
		if prm.CallerScoped {
			if !hasCaller {
				return nil, ErrNoCaller
			}
			// client supplied values never reach the backend
			args = append(args, Arg{Name: prm.Name, Kind: prm.Kind, Value: caller.ID})
			continue
		}

		raw, present := params[prm.Name]
		if present && isNull(raw) {
			present = false
		}
		if !present {
			if prm.Required {
				fields = append(fields, FieldError{Field: prm.Name, Rule: "required", Message: "is required"})
			}
			continue
		}

		v, err := decodeKind(prm.Kind, raw)
		if err != nil {
			fields = append(fields, FieldError{Field: prm.Name, Rule: string(prm.Kind), Message: "must be " + kindNoun(prm.Kind)})
			continue
		}

		if rule := ruleFor(prm); rule != "" {
			if err := g.validate.Var(v, rule); err != nil {
				fields = append(fields, toFieldError(prm.Name, err))
				continue
			}
		}

		args = append(args, Arg{Name: prm.Name, Kind: prm.Kind, Value: v})
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Procedure: proc.Name, Fields: fields}
	}

	return args, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func decodeKind(kind Kind, raw json.RawMessage) (any, error) {
	switch kind {
	case KindInt:
		var v int64
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindBool:
		var v bool
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	}
}

func ruleFor(p Param) string {
	base := ""
	switch p.Kind {
	case KindUUID:
		base = "uuid"
	case KindDate:
		base = "datetime=2006-01-02"
	}

	switch {
	case base == "":
		return p.Rule
	case p.Rule == "":
		return base
	default:
		return base + "," + p.Rule
	}
}

func kindNoun(k Kind) string {
	switch k {
	case KindInt:
		return "an integer"
	case KindBool:
		return "a boolean"
	case KindUUID:
		return "a uuid string"
	case KindDate:
		return "a date string (YYYY-MM-DD)"
	default:
		return "a string"
	}
}

func toFieldError(name string, err error) FieldError {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return FieldError{Field: name, Rule: fe.Tag(), Param: fe.Param(), Message: ruleMessage(fe.Tag(), fe.Param())}
	}
	return FieldError{Field: name, Rule: "invalid", Message: "is invalid"}
}

func ruleMessage(tag, param string) string {
	switch tag {
	case "uuid":
		return "must be a valid uuid"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of: " + param
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	default:
		return "is invalid"
	}
}

// checkShape verifies raw matches what the procedure promises. A document
// procedure that comes back as a set of zero or one rows is unwrapped.
func checkShape(shape Shape, raw json.RawMessage) (json.RawMessage, error) {
	t := bytes.TrimSpace(raw)
	if !json.Valid(t) && len(t) > 0 {
		return nil, fmt.Errorf("%w: not valid json", ErrUnexpectedShape)
	}

	switch shape {
	case ShapeRows:
		if len(t) > 0 && t[0] == '[' {
			return json.RawMessage(t), nil
		}
		return nil, fmt.Errorf("%w: expected an array", ErrUnexpectedShape)

	case ShapeDocument:
		if len(t) == 0 || bytes.Equal(t, []byte("null")) {
			return json.RawMessage("null"), nil
		}
		if t[0] == '{' {
			return json.RawMessage(t), nil
		}
		if t[0] == '[' {
			var set []json.RawMessage
			if err := json.Unmarshal(t, &set); err == nil && len(set) <= 1 {
				if len(set) == 0 {
					return json.RawMessage("null"), nil
				}
				return checkShape(ShapeDocument, set[0])
			}
		}
		return nil, fmt.Errorf("%w: expected an object or null", ErrUnexpectedShape)
	}

	return nil, fmt.Errorf("%w: unknown shape %q", ErrUnexpectedShape, shape)
}
