// Package goal encodes type-checking sites as canonical obligations.
//
// A CheckSite is written in the caller's inference space: caller inference
// variables appear as ir.TyInfer with the caller's indices, and a nil type
// marks a hole, a position the caller wants inferred without having a
// variable for it. Encode replaces both with solver placeholders numbered
// by first appearance and records what each placeholder stands for.
package goal

import (
	"fmt"

	"github.com/roach88/tsolve/internal/ir"
)

// SiteKind selects the obligation a site asks for.
type SiteKind int

const (
	// SiteTrait asks whether Self implements Trait<Args>.
	SiteTrait SiteKind = iota
	// SiteProjection asks whether <Self as Trait<Args>>::Assoc equals Expected.
	SiteProjection
	// SiteWellFormed asks whether Self is well formed.
	SiteWellFormed
)

func (k SiteKind) String() string {
	switch k {
	case SiteTrait:
		return "trait"
	case SiteProjection:
		return "projection"
	case SiteWellFormed:
		return "wf"
	default:
		return fmt.Sprintf("SiteKind(%d)", int(k))
	}
}

// CheckSite is one concrete type-checking need.
type CheckSite struct {
	Kind     SiteKind
	Self     ir.Ty
	Trait    string
	Args     []ir.Ty
	Assoc    string
	Expected ir.Ty
}

// VarOrigin says where a placeholder came from.
type VarOrigin int

const (
	// FromCaller placeholders stand for a caller inference variable.
	FromCaller VarOrigin = iota
	// FromHole placeholders stand for a hole in the site.
	FromHole
)

func (o VarOrigin) String() string {
	if o == FromHole {
		return "hole"
	}
	return "caller"
}

// VarInfo describes one placeholder.
type VarInfo struct {
	Origin VarOrigin

	// Caller is the caller variable, for FromCaller placeholders.
	Caller ir.TyInfer

	// Kind restricts the values the placeholder may take.
	Kind ir.VarKind

	// Path is the site position where the placeholder first appears,
	// e.g. "self", "args[1]" or "expected.args[0]".
	Path string
}

// SolutionVariables lists placeholders in index order. A substitution
// returned for the encoded goal has one value per entry.
type SolutionVariables struct {
	Vars []VarInfo
}

// Len returns the number of placeholders.
func (sv SolutionVariables) Len() int { return len(sv.Vars) }

// Placeholders returns the placeholder variables in index order.
func (sv SolutionVariables) Placeholders() []ir.TyInfer {
	out := make([]ir.TyInfer, len(sv.Vars))
	for i, v := range sv.Vars {
		out[i] = ir.TyInfer{Index: i, Kind: v.Kind}
	}
	return out
}

// SiteError reports a malformed site.
type SiteError struct {
	Site    SiteKind
	Message string
}

func (e *SiteError) Error() string {
	return fmt.Sprintf("encode %s site: %s", e.Site, e.Message)
}

type encoder struct {
	vars   []VarInfo
	caller map[int]int
}

// Encode translates site into a canonical obligation paired with env.
// Placeholders are allocated in order of first appearance: self, trait
// args, expected; pre-order within each type. Encoding the same site twice
// yields identical results.
func Encode(site CheckSite, env *ir.Environment) (ir.InEnvironment[ir.Goal], SolutionVariables, error) {
	enc := &encoder{caller: map[int]int{}}
	var g ir.Goal

	switch site.Kind {
	case SiteTrait:
		if site.Trait == "" {
			return ir.InEnvironment[ir.Goal]{}, SolutionVariables{}, &SiteError{Site: site.Kind, Message: "missing trait"}
		}
		g = ir.TraitGoal{Ref: enc.traitRef(site)}
	case SiteProjection:
		if site.Trait == "" || site.Assoc == "" {
			return ir.InEnvironment[ir.Goal]{}, SolutionVariables{}, &SiteError{Site: site.Kind, Message: "missing trait or associated type"}
		}
		ref := enc.traitRef(site)
		g = ir.ProjectionGoal{
			Projection: ref.Projection(site.Assoc),
			Expected:   enc.ty(site.Expected, "expected"),
		}
	case SiteWellFormed:
		g = ir.WellFormedGoal{Ty: enc.ty(site.Self, "self")}
	default:
		return ir.InEnvironment[ir.Goal]{}, SolutionVariables{}, &SiteError{Site: site.Kind, Message: "unknown site kind"}
	}

	return ir.NewInEnvironment(env, g), SolutionVariables{Vars: enc.vars}, nil
}

// MustEncode is like Encode but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEncode(site CheckSite, env *ir.Environment) (ir.InEnvironment[ir.Goal], SolutionVariables) {
	obl, vars, err := Encode(site, env)
	if err != nil {
		panic(err)
	}
	return obl, vars
}

func (e *encoder) traitRef(site CheckSite) ir.TraitRef {
	self := e.ty(site.Self, "self")
	var args []ir.Ty
	if site.Args != nil {
		args = make([]ir.Ty, len(site.Args))
		for i, a := range site.Args {
			args[i] = e.ty(a, fmt.Sprintf("args[%d]", i))
		}
	}
	return ir.TraitRef{Trait: site.Trait, Self: self, Args: args}
}

func (e *encoder) hole(path string) ir.Ty {
	e.vars = append(e.vars, VarInfo{Origin: FromHole, Path: path})
	return ir.TyInfer{Index: len(e.vars) - 1}
}

func (e *encoder) ty(t ir.Ty, path string) ir.Ty {
	if t == nil {
		return e.hole(path)
	}
	switch ty := t.(type) {
	case ir.TyInfer:
		if idx, ok := e.caller[ty.Index]; ok {
			return ir.TyInfer{Index: idx, Kind: e.vars[idx].Kind}
		}
		e.caller[ty.Index] = len(e.vars)
		e.vars = append(e.vars, VarInfo{Origin: FromCaller, Caller: ty, Kind: ty.Kind, Path: path})
		return ir.TyInfer{Index: len(e.vars) - 1, Kind: ty.Kind}
	case ir.TyApp:
		return ir.TyApp{Name: ty.Name, Args: e.tys(ty.Args, path+".args")}
	case ir.TyProjection:
		return ir.TyProjection{
			Trait: ty.Trait,
			Assoc: ty.Assoc,
			Self:  e.ty(ty.Self, path+".self"),
			Args:  e.tys(ty.Args, path+".args"),
		}
	case ir.TyFn:
		params := e.tys(ty.Params, path+".params")
		return ir.TyFn{Params: params, Ret: e.ty(ty.Ret, path+".ret")}
	default:
		return t
	}
}

func (e *encoder) tys(tys []ir.Ty, path string) []ir.Ty {
	if tys == nil {
		return nil
	}
	out := make([]ir.Ty, len(tys))
	for i, t := range tys {
		out[i] = e.ty(t, fmt.Sprintf("%s[%d]", path, i))
	}
	return out
}
