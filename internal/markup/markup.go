// Package markup converts rich-text task bodies into markdown.
//
// Input is the hypertext the source tracker stores for notes and comments: a
// well-formed XML fragment, typically wrapped in <body>. Links that carry an
// entity-type marker are turned into reference tokens so they can be rendered
// once every task and user has a final identifier.
package markup

import (
	"encoding/xml"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/steveyegge/trackport/internal/lazytext"
)

// ParseErrorText is the body substituted for fragments that cannot be parsed.
const ParseErrorText = "[parsing error]"

// ReferenceFactory turns a typed hyperlink into an opaque token. href and id
// may be empty when the anchor lacks the corresponding attribute.
type ReferenceFactory func(href, typ, id string) lazytext.Token

// Marker names the anchor attributes identifying entity links.
type Marker struct {
	TypeAttr string
	IDAttr   string
}

// DefaultMarker matches the attributes the source tracker emits.
var DefaultMarker = Marker{TypeAttr: "data-asana-type", IDAttr: "data-asana-gid"}

// Transducer holds the configuration shared by every Transduce call.
type Transducer struct {
	Marker Marker
	Logger *slog.Logger
}

// Transduce converts fragment using DefaultMarker.
func Transduce(fragment string, factory ReferenceFactory, log *slog.Logger) lazytext.Text {
	return Transducer{Marker: DefaultMarker, Logger: log}.Transduce(fragment, factory)
}

// Transduce converts fragment into lazy markdown. A blank fragment yields the
// empty text. Malformed input is logged and replaced by ParseErrorText.
func (t Transducer) Transduce(fragment string, factory ReferenceFactory) lazytext.Text {
	if factory == nil {
		panic("markup: nil reference factory")
	}
	log := t.Logger
	if log == nil {
		log = slog.Default()
	}
	marker := t.Marker
	if marker.TypeAttr == "" {
		marker = DefaultMarker
	}

	if strings.TrimSpace(fragment) == "" {
		return lazytext.Text{}
	}
	doc, err := xmlquery.ParseWithOptions(strings.NewReader(fragment), parserOptions)
	if err != nil {
		log.Warn("could not parse rich text", "error", err)
		return lazytext.Of(ParseErrorText)
	}
	root := documentElement(doc)
	if root == nil {
		return lazytext.Text{}
	}

	w := &walker{
		out:     lazytext.NewBuilder(len(fragment)),
		factory: factory,
		marker:  marker,
	}
	w.walk(root)
	return w.out.Build()
}

// Named HTML entities such as &nbsp; are accepted; anything else must be
// well-formed XML.
var parserOptions = xmlquery.ParserOptions{
	Decoder: &xmlquery.DecoderOptions{
		Strict: true,
		Entity: xml.HTMLEntity,
	},
}

func documentElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

type listKind int

const (
	unordered listKind = iota
	ordered
)

type listContext struct {
	kind     listKind
	lastItem int
}

func (l *listContext) indent() string {
	if l.kind == ordered {
		return "   "
	}
	return "  "
}

// linkState tracks whether the current anchor can still collapse to a bare
// URL. The opening bracket is withheld until that is decided.
type linkState int

const (
	linkNone         linkState = iota // not inside an anchor with href
	linkAwaitingText                  // anchor entered, no content yet
	linkTrivial                       // buffered text equals href so far
	linkCommitted                     // "[" emitted, will close with "](href)"
)

type walker struct {
	out     *lazytext.Builder
	factory ReferenceFactory
	marker  Marker

	lists []*listContext

	link     linkState
	href     string
	buffered string
}

// walk visits the children of root in document order. Children of elements
// whose enter hook declines are not visited, and their exit hook is not run.
func (w *walker) walk(root *xmlquery.Node) {
	parent := root
	node := root.FirstChild
	for node != nil {
		switch node.Type {
		case xmlquery.ElementNode:
			if w.enter(node) {
				if node.FirstChild != nil {
					parent = node
					node = node.FirstChild
					continue
				}
				w.exit(node)
			}
		case xmlquery.TextNode, xmlquery.CharDataNode:
			w.text(node.Data)
		}

		node = node.NextSibling
		for node == nil && parent != root {
			w.exit(parent)
			node = parent.NextSibling
			parent = parent.Parent
		}
	}
}

func (w *walker) enter(n *xmlquery.Node) bool {
	if w.link == linkAwaitingText || w.link == linkTrivial {
		w.commitLink()
	}

	switch n.Data {
	case "ul":
		w.lists = append(w.lists, &listContext{kind: unordered})
	case "ol":
		w.lists = append(w.lists, &listContext{kind: ordered})
	case "li":
		w.listItem()
	case "a":
		href := n.SelectAttr("href")
		if typ := n.SelectAttr(w.marker.TypeAttr); typ != "" {
			w.out.AppendToken(w.factory(href, typ, n.SelectAttr(w.marker.IDAttr)))
			return false
		}
		if href != "" {
			w.href = href
			w.buffered = ""
			w.link = linkAwaitingText
		}
	default:
		w.style(n.Data)
	}
	return true
}

func (w *walker) exit(n *xmlquery.Node) {
	switch n.Data {
	case "ul", "ol":
		w.lists = w.lists[:len(w.lists)-1]
		if len(w.lists) == 0 {
			w.out.AppendString("\n\n")
		}
	case "a":
		switch w.link {
		case linkAwaitingText, linkTrivial:
			w.out.AppendString(w.href)
		case linkCommitted:
			w.out.AppendString("](").AppendString(w.href).AppendRune(')')
		}
		w.link = linkNone
		w.href = ""
		w.buffered = ""
	default:
		w.style(n.Data)
	}
}

func (w *walker) text(s string) {
	switch w.link {
	case linkAwaitingText:
		if s == w.href {
			w.buffered = s
			w.link = linkTrivial
			return
		}
		w.commitLink()
	case linkTrivial:
		w.commitLink()
	}
	w.out.AppendString(s)
}

// commitLink emits the withheld bracket along with any buffered text.
func (w *walker) commitLink() {
	w.out.AppendRune('[')
	if w.link == linkTrivial {
		w.out.AppendString(w.buffered).AppendRune(' ')
		w.buffered = ""
	}
	w.link = linkCommitted
}

func (w *walker) listItem() {
	if len(w.lists) == 0 {
		// Stray <li> outside a list.
		w.out.AppendString("\n- ")
		return
	}
	cur := w.lists[len(w.lists)-1]
	cur.lastItem++

	w.out.AppendRune('\n')
	for _, l := range w.lists[:len(w.lists)-1] {
		w.out.AppendString(l.indent())
	}
	if cur.kind == ordered {
		w.out.AppendInt(cur.lastItem).AppendString(". ")
		return
	}
	if len(w.lists)%2 == 0 {
		w.out.AppendString("* ")
	} else {
		w.out.AppendString("- ")
	}
}

func (w *walker) style(element string) {
	switch element {
	case "strong":
		w.out.AppendString("**")
	case "em":
		w.out.AppendRune('*')
	case "u":
		w.out.AppendRune('_')
	case "s":
		w.out.AppendString("~~")
	case "code":
		w.out.AppendRune('`')
	}
}
