package rpc

import (
	"fmt"
	"regexp"
	"sort"
)

type Shape string

const (
	// ShapeRows procedures return a JSON array.
	ShapeRows Shape = "rows"
	// ShapeDocument procedures return a single JSON object or null.
	ShapeDocument Shape = "document"
)

type Kind string

const (
	KindUUID   Kind = "uuid"
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindBool   Kind = "bool"
	KindDate   Kind = "date"
)

type Param struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Rule     string `json:"rule,omitempty"`
	Required bool   `json:"required"`
	// CallerScoped params always receive the caller's profile id.
	CallerScoped bool `json:"callerScoped,omitempty"`
}

type Procedure struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Params      []Param `json:"params"`
	Shape       Shape   `json:"shape"`
}

func (p Procedure) param(name string) (Param, bool) {
	for _, prm := range p.Params {
		if prm.Name == name {
			return prm, true
		}
	}
	return Param{}, false
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

type Registry struct {
	byName map[string]Procedure
}

// NewRegistry validates every procedure up front. Names end up inside SQL,
// so only plain lowercase identifiers are accepted.
func NewRegistry(procs ...Procedure) (*Registry, error) {
	r := &Registry{byName: make(map[string]Procedure, len(procs))}

	for _, p := range procs {
		if !identRe.MatchString(p.Name) {
			return nil, fmt.Errorf("rpc: invalid procedure name %q", p.Name)
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, fmt.Errorf("rpc: duplicate procedure %q", p.Name)
		}
		if p.Shape != ShapeRows && p.Shape != ShapeDocument {
			return nil, fmt.Errorf("rpc: procedure %q has unknown shape %q", p.Name, p.Shape)
		}

		seen := make(map[string]bool, len(p.Params))
		for _, prm := range p.Params {
			if !identRe.MatchString(prm.Name) {
				return nil, fmt.Errorf("rpc: procedure %q has invalid param name %q", p.Name, prm.Name)
			}
			if seen[prm.Name] {
				return nil, fmt.Errorf("rpc: procedure %q repeats param %q", p.Name, prm.Name)
			}
			seen[prm.Name] = true

			switch prm.Kind {
			case KindUUID, KindString, KindInt, KindBool, KindDate:
			default:
				return nil, fmt.Errorf("rpc: param %s.%s has unknown kind %q", p.Name, prm.Name, prm.Kind)
			}
			if prm.CallerScoped && prm.Kind != KindUUID {
				return nil, fmt.Errorf("rpc: caller scoped param %s.%s must be a uuid", p.Name, prm.Name)
			}
		}

		r.byName[p.Name] = p
	}

	return r, nil
}

func MustRegistry(procs ...Procedure) *Registry {
	r, err := NewRegistry(procs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(name string) (Procedure, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// List returns the procedures sorted by name.
func (r *Registry) List() []Procedure {
	out := make([]Procedure, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func profileParam() Param {
	return Param{Name: "p_profile_id", Kind: KindUUID, Required: true, CallerScoped: true}
}

func workspaceParam() Param {
	return Param{Name: "p_workspace_id", Kind: KindUUID, Required: true}
}

// DefaultProcedures lists the read procedures the hub exposes.
func DefaultProcedures() []Procedure {
	return []Procedure{
		{
			Name:        "list_user_workspaces",
			Description: "Workspaces the caller belongs to.",
			Params:      []Param{profileParam()},
			Shape:       ShapeRows,
		},
		{
			Name:        "get_project",
			Description: "One workspace project with its members.",
			Params: []Param{
				profileParam(),
				{Name: "p_project_id", Kind: KindUUID, Required: true},
			},
			Shape: ShapeDocument,
		},
		{
			Name:        "list_competitions",
			Description: "Competitions visible in a workspace.",
			Params: []Param{
				profileParam(),
				workspaceParam(),
				{Name: "p_status", Kind: KindString, Rule: "oneof=open closed upcoming"},
			},
			Shape: ShapeRows,
		},
		{
			Name:        "list_jobs",
			Description: "Job postings in a workspace.",
			Params: []Param{
				profileParam(),
				workspaceParam(),
				{Name: "p_remote_only", Kind: KindBool},
			},
			Shape: ShapeRows,
		},
		{
			Name:        "list_calendar_items",
			Description: "Calendar items between two dates.",
			Params: []Param{
				profileParam(),
				workspaceParam(),
				{Name: "p_from", Kind: KindDate},
				{Name: "p_to", Kind: KindDate},
			},
			Shape: ShapeRows,
		},
		{
			Name:        "list_education_plans",
			Description: "Education plans of the caller.",
			Params:      []Param{profileParam()},
			Shape:       ShapeRows,
		},
		{
			Name:        "list_websites",
			Description: "Saved websites in a workspace.",
			Params: []Param{
				profileParam(),
				workspaceParam(),
			},
			Shape: ShapeRows,
		},
		{
			Name:        "list_meetings",
			Description: "Meetings in a workspace.",
			Params: []Param{
				profileParam(),
				workspaceParam(),
				{Name: "p_limit", Kind: KindInt, Rule: "min=1,max=200"},
			},
			Shape: ShapeRows,
		},
		{
			Name:        "list_tasks",
			Description: "Tasks in a workspace, optionally only open ones.",
			Params: []Param{
				profileParam(),
				workspaceParam(),
				{Name: "p_open_only", Kind: KindBool},
				{Name: "p_limit", Kind: KindInt, Rule: "min=1,max=500"},
			},
			Shape: ShapeRows,
		},
	}
}
