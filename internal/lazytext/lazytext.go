// Package lazytext provides text values whose embedded references are
// stringified late, once the context needed to render them exists.
//
// A Text is an ordered sequence of elements. Each element is either a
// Literal span or an opaque Token. Literals are emitted verbatim by Resolve;
// tokens are handed to a Resolver, which decides how they read in the final
// output. The same Text can therefore render differently under different
// resolvers while never changing itself.
package lazytext

import (
	"fmt"
	"strconv"
	"strings"
)

// Token is an opaque element of a Text. Tokens are compared by identity, so
// implementations should be pointer types.
type Token interface {
	// TokenHref returns the fallback rendering of the token.
	TokenHref() string
}

// Literal is a span of literal text.
type Literal string

// Element is either a Literal or a Token.
type Element interface{}

// Resolver turns elements into their final string form.
type Resolver interface {
	Stringify(e Element) string
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(e Element) string

// Stringify implements Resolver.
func (f ResolverFunc) Stringify(e Element) string { return f(e) }

// Text is an immutable lazy string. The zero value is the empty text.
type Text struct {
	elems    []Element
	sizeHint int
}

// Of returns a Text consisting of a single literal span.
func Of(s string) Text {
	if s == "" {
		return Text{}
	}
	return Text{elems: []Element{Literal(s)}, sizeHint: len(s)}
}

// Len returns the number of elements (spans plus tokens).
func (t Text) Len() int { return len(t.elems) }

// IsEmpty reports whether the text has no elements.
func (t Text) IsEmpty() bool { return len(t.elems) == 0 }

// Elements returns a copy of the element list.
func (t Text) Elements() []Element {
	out := make([]Element, len(t.elems))
	copy(out, t.elems)
	return out
}

// Tokens returns the opaque tokens in order of appearance.
func (t Text) Tokens() []Token {
	var out []Token
	for _, e := range t.elems {
		if tok, ok := e.(Token); ok {
			out = append(out, tok)
		}
	}
	return out
}

// Resolve renders the text. Literal spans are copied unchanged; every other
// element goes through ctx.
func (t Text) Resolve(ctx Resolver) string {
	var sb strings.Builder
	sb.Grow(t.sizeHint)
	for _, e := range t.elems {
		if lit, ok := e.(Literal); ok {
			sb.WriteString(string(lit))
			continue
		}
		sb.WriteString(ctx.Stringify(e))
	}
	return sb.String()
}

// String renders tokens through their href fallback.
func (t Text) String() string {
	return t.Resolve(ResolverFunc(func(e Element) string {
		if tok, ok := e.(Token); ok {
			return tok.TokenHref()
		}
		return fmt.Sprint(e)
	}))
}

// Equal compares literal spans by value and tokens by identity. Two texts
// that would resolve identically are not necessarily equal.
func (t Text) Equal(other Text) bool {
	if len(t.elems) != len(other.elems) {
		return false
	}
	for i, e := range t.elems {
		o := other.elems[i]
		switch v := e.(type) {
		case Literal:
			ol, ok := o.(Literal)
			if !ok || ol != v {
				return false
			}
		default:
			if _, ok := o.(Literal); ok {
				return false
			}
			if e != o {
				return false
			}
		}
	}
	return true
}

// Builder accumulates elements for a Text. Consecutive literal appends are
// coalesced into a single span.
type Builder struct {
	pending strings.Builder
	elems   []Element
	hint    int
}

// NewBuilder returns a builder that expects roughly sizeHint bytes of output.
func NewBuilder(sizeHint int) *Builder {
	b := &Builder{hint: sizeHint}
	b.pending.Grow(sizeHint)
	return b
}

func (b *Builder) flush() {
	if b.pending.Len() > 0 {
		b.elems = append(b.elems, Literal(b.pending.String()))
		b.pending.Reset()
	}
}

// AppendString appends a literal span.
func (b *Builder) AppendString(s string) *Builder {
	b.pending.WriteString(s)
	return b
}

// AppendRune appends a single literal character.
func (b *Builder) AppendRune(r rune) *Builder {
	b.pending.WriteRune(r)
	return b
}

// AppendInt appends the decimal form of n as a literal.
func (b *Builder) AppendInt(n int) *Builder {
	b.pending.WriteString(strconv.Itoa(n))
	return b
}

// AppendToken appends an opaque token, closing the current literal span.
// A nil token is ignored.
func (b *Builder) AppendToken(tok Token) *Builder {
	if tok == nil {
		return b
	}
	b.flush()
	b.elems = append(b.elems, tok)
	return b
}

// Append dispatches on the dynamic type of v: strings, runes, ints and
// Literals are literal text, Tokens are opaque, anything else is formatted
// with fmt.Sprint and treated as literal text.
func (b *Builder) Append(v interface{}) *Builder {
	switch x := v.(type) {
	case nil:
		return b
	case string:
		return b.AppendString(x)
	case Literal:
		return b.AppendString(string(x))
	case rune:
		return b.AppendRune(x)
	case int:
		return b.AppendInt(x)
	case Token:
		return b.AppendToken(x)
	default:
		return b.AppendString(fmt.Sprint(x))
	}
}

// Build freezes the accumulated elements into a Text. The builder may keep
// being used afterwards; the returned Text does not observe later appends.
func (b *Builder) Build() Text {
	b.flush()
	elems := make([]Element, len(b.elems))
	copy(elems, b.elems)
	size := 0
	for _, e := range elems {
		if lit, ok := e.(Literal); ok {
			size += len(lit)
		}
	}
	return Text{elems: elems, sizeHint: max(size, b.hint)}
}
