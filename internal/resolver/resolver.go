// Package resolver renders lazy text against the frozen entity graph.
//
// Task references become issue keys ("WEB-12"), user references become
// "@login" mentions using an email-to-login mapping, and anything that
// cannot be resolved falls back to the link's original href.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/steveyegge/trackport/internal/export"
	"github.com/steveyegge/trackport/internal/lazytext"
	"github.com/steveyegge/trackport/internal/types"
)

// UnknownLogin is used for users whose email has no login mapping.
const UnknownLogin = "##unknown-login##"

// Context resolves tokens produced during an export. It only reads the
// graph, so one Context can be shared by concurrent Resolve calls.
type Context struct {
	prefix string
	tasks  map[string]*types.Task
	users  map[string]*types.User
	logins Mapping
}

var _ lazytext.Resolver = (*Context)(nil)

// NewContext returns a resolver for res. prefix is the target project's
// short name and logins maps lower-case emails to target logins.
func NewContext(res *export.Result, prefix string, logins Mapping) *Context {
	return &Context{
		prefix: prefix,
		tasks:  res.TaskByID,
		users:  res.UserByID,
		logins: logins,
	}
}

// Prefix returns the project prefix.
func (c *Context) Prefix() string { return c.prefix }

// Mapping returns the email-to-login mapping.
func (c *Context) Mapping() Mapping { return c.logins }

// TaskKey returns the issue key of t, e.g. "WEB-12".
func (c *Context) TaskKey(t *types.Task) string {
	return c.prefix + "-" + strconv.Itoa(t.NumberInProject)
}

// Login returns the login mapped to email, or UnknownLogin.
func (c *Context) Login(email string) string {
	if login, ok := c.logins[strings.ToLower(email)]; ok {
		return login
	}
	return UnknownLogin
}

// UserLogin returns the login of u, or UnknownLogin when u is nil.
func (c *Context) UserLogin(u *types.User) string {
	if u == nil {
		return UnknownLogin
	}
	return c.Login(u.Email)
}

// Stringify implements lazytext.Resolver.
func (c *Context) Stringify(e lazytext.Element) string {
	ref, ok := e.(*types.Reference)
	if !ok {
		if tok, ok := e.(lazytext.Token); ok {
			return tok.TokenHref()
		}
		return fmt.Sprint(e)
	}
	switch ref.Kind {
	case types.RefTask:
		if t, ok := c.tasks[ref.ID]; ok {
			return c.TaskKey(t)
		}
	case types.RefUser:
		if u, ok := c.users[ref.ID]; ok {
			return "@" + c.Login(u.Email)
		}
	}
	return ref.Href
}

// Resolve renders text.
func (c *Context) Resolve(text lazytext.Text) string {
	return text.Resolve(c)
}
