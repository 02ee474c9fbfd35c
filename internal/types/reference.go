package types

import "github.com/steveyegge/trackport/internal/lazytext"

// RefKind is the entity kind a Reference points at.
type RefKind int

const (
	RefOther RefKind = iota
	RefTask
	RefUser
)

func (k RefKind) String() string {
	switch k {
	case RefTask:
		return "task"
	case RefUser:
		return "user"
	}
	return "other"
}

// Reference is the token the transducer emits for a typed link. It is
// compared by identity, so always handle it through a pointer.
type Reference struct {
	Kind RefKind
	Href string
	Type string // raw type marker from the source
	ID   string
}

var _ lazytext.Token = (*Reference)(nil)

// NewReference builds a reference from a link's attributes.
func NewReference(href, typ, id string) *Reference {
	kind := RefOther
	switch typ {
	case "task":
		kind = RefTask
	case "user":
		kind = RefUser
	}
	return &Reference{Kind: kind, Href: href, Type: typ, ID: id}
}

// TokenHref implements lazytext.Token.
func (r *Reference) TokenHref() string { return r.Href }
