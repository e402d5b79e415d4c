package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/roach88/tsolve/internal/env"
	"github.com/roach88/tsolve/internal/goal"
	"github.com/roach88/tsolve/internal/ir"
)

// Type expression syntax, as written in program files:
//
//	Vec<T>                     nominal type, or a parameter in scope
//	()  (A,)  (A, B)           tuples
//	fn(A, B) -> R              fn pointer (no arrow: returns ())
//	closure#3                  closure literal type
//	<T as Iterator>::Item      projection
//	_                          hole (goals only)
//	?R                         caller inference variable (goals only)
//
// Bounds are written "T: Trait<Arg, Assoc = Ty> + Other". Goals are a
// bound with a single trait, "<T as Tr>::A == Ty", or "WF(Ty)".

// scope resolves names inside one declaration.
type scope struct {
	params map[string]ir.Ty

	// vars maps caller variable names to their index; nil forbids ?x.
	vars  map[string]ir.TyInfer
	holes bool
}

func paramScope(names []string, mk func(i int) ir.Ty) *scope {
	sc := &scope{params: make(map[string]ir.Ty, len(names))}
	for i, n := range names {
		sc.params[n] = mk(i)
	}
	return sc
}

// syntaxError is raised by the parser and recovered at the entry points.
type syntaxError struct {
	msg string
}

type token struct {
	tok  rune
	text string
	col  int
}

type parser struct {
	toks []token
	pos  int
	tok  rune
	text string
	sc   *scope
}

func newParser(src string, sc *scope) *parser {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts
	s.Error = func(s *scanner.Scanner, msg string) {
		panic(syntaxError{msg: fmt.Sprintf("column %d: %s", s.Position.Column, msg)})
	}
	p := &parser{sc: sc}
	for {
		r := s.Scan()
		p.toks = append(p.toks, token{tok: r, text: s.TokenText(), col: s.Position.Column})
		if r == scanner.EOF {
			break
		}
	}
	p.pos = -1
	p.next()
	return p
}

func (p *parser) next() {
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	p.tok = p.toks[p.pos].tok
	p.text = p.toks[p.pos].text
}

// peek returns the token after the current one.
func (p *parser) peek() rune {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1].tok
	}
	return scanner.EOF
}

func (p *parser) fail(format string, args ...any) {
	panic(syntaxError{msg: fmt.Sprintf("column %d: %s", p.toks[p.pos].col, fmt.Sprintf(format, args...))})
}

func (p *parser) describe() string {
	if p.tok == scanner.EOF {
		return "end of input"
	}
	return strconv.Quote(p.text)
}

func (p *parser) expect(r rune) {
	if p.tok != r {
		p.fail("expected %q, found %s", r, p.describe())
	}
	p.next()
}

func (p *parser) expectIdent() string {
	if p.tok != scanner.Ident {
		p.fail("expected name, found %s", p.describe())
	}
	name := p.text
	p.next()
	return name
}

func (p *parser) expectEOF() {
	if p.tok != scanner.EOF {
		p.fail("unexpected %s", p.describe())
	}
}

func (p *parser) ty() ir.Ty {
	switch p.tok {
	case '?':
		p.next()
		name := p.expectIdent()
		if p.sc.vars == nil {
			p.fail("inference variable ?%s is only allowed in goals", name)
		}
		v, ok := p.sc.vars[name]
		if !ok {
			// Undeclared variables are general and numbered after the
			// declared ones.
			v = ir.TyInfer{Index: len(p.sc.vars)}
			p.sc.vars[name] = v
		}
		return v
	case '(':
		p.next()
		var elems []ir.Ty
		trailing := false
		for p.tok != ')' {
			elems = append(elems, p.ty())
			trailing = false
			if p.tok != ',' {
				break
			}
			p.next()
			trailing = true
		}
		p.expect(')')
		if len(elems) == 1 && !trailing {
			return elems[0]
		}
		return ir.Tuple(elems...)
	case '<':
		p.next()
		self := p.ty()
		if p.expectIdent() != "as" {
			p.fail("expected \"as\" in projection")
		}
		ref, eqs := p.traitRef(self)
		if len(eqs) > 0 {
			p.fail("associated type equality inside a projection")
		}
		p.expect('>')
		p.expect(':')
		p.expect(':')
		return ref.Projection(p.expectIdent())
	case scanner.Ident:
		return p.named()
	default:
		p.fail("expected type, found %s", p.describe())
		return nil
	}
}

func (p *parser) hole() ir.Ty {
	if !p.sc.holes {
		p.fail("holes are only allowed in goals")
	}
	p.next()
	return nil
}

func (p *parser) named() ir.Ty {
	name := p.text
	switch {
	case name == "_":
		return p.hole()
	case name == "fn" && p.peek() == '(':
		p.next()
		p.expect('(')
		params := p.tyList(')')
		p.expect(')')
		var ret ir.Ty = ir.Tuple()
		if p.tok == '-' {
			p.next()
			p.expect('>')
			ret = p.ty()
		}
		return ir.Fn(params, ret)
	case name == "closure" && p.peek() == '#':
		p.next()
		p.expect('#')
		if p.tok != scanner.Int {
			p.fail("expected closure id, found %s", p.describe())
		}
		id, err := strconv.ParseUint(p.text, 10, 32)
		if err != nil {
			p.fail("closure id %s: %v", p.text, err)
		}
		p.next()
		return ir.TyClosure{ID: ir.ClosureID(id)}
	}
	p.next()

	if t, ok := p.sc.params[name]; ok {
		if p.tok == '<' {
			p.fail("parameter %s takes no arguments", name)
		}
		return t
	}
	var args []ir.Ty
	if p.tok == '<' {
		p.next()
		args = p.tyList('>')
		p.expect('>')
	}
	return ir.App(name, args...)
}

func (p *parser) tyList(close rune) []ir.Ty {
	var out []ir.Ty
	for p.tok != close {
		out = append(out, p.ty())
		if p.tok != ',' {
			break
		}
		p.next()
	}
	return out
}

// traitRef parses Trait<Args, Assoc = Ty> applied to self.
func (p *parser) traitRef(self ir.Ty) (ir.TraitRef, []env.AssocEq) {
	ref := ir.TraitRef{Trait: p.expectIdent(), Self: self}
	var eqs []env.AssocEq
	if p.tok != '<' {
		return ref, nil
	}
	p.next()
	for p.tok != '>' {
		if p.tok == scanner.Ident && p.peek() == '=' {
			name := p.expectIdent()
			p.expect('=')
			eqs = append(eqs, env.AssocEq{Name: name, Ty: p.ty()})
		} else {
			if len(eqs) > 0 {
				p.fail("trait arguments must precede associated type equalities")
			}
			ref.Args = append(ref.Args, p.ty())
		}
		if p.tok != ',' {
			break
		}
		p.next()
	}
	p.expect('>')
	return ref, eqs
}

// bounds parses "Self: A<..> + B<..>".
func (p *parser) bounds() []env.Bound {
	self := p.ty()
	p.expect(':')
	var out []env.Bound
	for {
		ref, eqs := p.traitRef(self)
		out = append(out, env.Bound{Self: ref.Self, Trait: ref.Trait, Args: ref.Args, AssocEqs: eqs})
		if p.tok != '+' {
			break
		}
		p.next()
	}
	return out
}

// site parses a goal.
func (p *parser) site() goal.CheckSite {
	if p.tok == scanner.Ident && p.text == "WF" && p.peek() == '(' {
		p.next()
		p.expect('(')
		t := p.ty()
		p.expect(')')
		return goal.CheckSite{Kind: goal.SiteWellFormed, Self: t}
	}

	self := p.ty()
	if proj, ok := self.(ir.TyProjection); ok && p.tok == '=' {
		p.next()
		p.expect('=')
		return goal.CheckSite{
			Kind:     goal.SiteProjection,
			Self:     proj.Self,
			Trait:    proj.Trait,
			Args:     proj.Args,
			Assoc:    proj.Assoc,
			Expected: p.ty(),
		}
	}
	p.expect(':')
	ref, eqs := p.traitRef(self)
	if len(eqs) > 0 {
		p.fail("write associated type goals as <T as Trait>::Assoc == Ty")
	}
	return goal.CheckSite{Kind: goal.SiteTrait, Self: ref.Self, Trait: ref.Trait, Args: ref.Args}
}

func parse[T any](src string, sc *scope, f func(*parser) T) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(syntaxError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%q: %s", src, se.msg)
		}
	}()
	p := newParser(src, sc)
	out = f(p)
	p.expectEOF()
	return out, nil
}

// ParseType parses a type expression with the given parameters in scope as
// rigid parameters.
func ParseType(src string, params ...string) (ir.Ty, error) {
	return parse(src, paramScope(params, func(i int) ir.Ty { return ir.Param(params[i]) }), (*parser).ty)
}

func parseBounds(src string, sc *scope) ([]env.Bound, error) {
	return parse(src, sc, (*parser).bounds)
}

func parseTraitRef(src string, self ir.Ty, sc *scope) (ir.TraitRef, error) {
	return parse(src, sc, func(p *parser) ir.TraitRef {
		ref, eqs := p.traitRef(self)
		if len(eqs) > 0 {
			p.fail("associated type equality not allowed here")
		}
		return ref
	})
}

func parseTy(src string, sc *scope) (ir.Ty, error) {
	return parse(src, sc, (*parser).ty)
}

func parseSite(src string, sc *scope) (goal.CheckSite, error) {
	return parse(src, sc, (*parser).site)
}
