package resolver

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/trackport/internal/export"
	"github.com/steveyegge/trackport/internal/lazytext"
	"github.com/steveyegge/trackport/internal/types"
)

func fixture() *export.Result {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &types.Task{ID: "10", Name: "A", CreatedAt: t0, NumberInProject: 1}
	b := &types.Task{ID: "11", Name: "B", CreatedAt: t0.Add(time.Hour), NumberInProject: 2}
	emails := types.NewOccurrenceMap()
	emails.Add("Ann@Example.com", b)
	emails.Add("ann@example.com", a)
	emails.Add("bob@example.com", a)
	return &export.Result{
		Tasks:    []*types.Task{a, b},
		TaskByID: map[string]*types.Task{"10": a, "11": b},
		UserByID: map[string]*types.User{
			"u1": {ID: "u1", Email: "Ann@Example.com"},
			"u2": {ID: "u2", Email: "bob@example.com"},
		},
		EmailOccurrences: emails,
	}
}

type plainToken struct{ href string }

func (p *plainToken) TokenHref() string { return p.href }

func TestStringify(t *testing.T) {
	ctx := NewContext(fixture(), "WEB", Mapping{"ann@example.com": "ann"})

	tests := []struct {
		name string
		tok  lazytext.Token
		want string
	}{
		{"task", types.NewReference("https://app/0/0/11", "task", "11"), "WEB-2"},
		{"missing task", types.NewReference("https://app/0/0/99", "task", "99"), "https://app/0/0/99"},
		{"user", types.NewReference("https://app/0/u1", "user", "u1"), "@ann"},
		{"user without login", types.NewReference("https://app/0/u2", "user", "u2"), "@" + UnknownLogin},
		{"missing user", types.NewReference("https://app/0/u9", "user", "u9"), "https://app/0/u9"},
		{"other kind", types.NewReference("https://app/0/p", "project", "p"), "https://app/0/p"},
		{"foreign token", &plainToken{href: "x://y"}, "x://y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := lazytext.NewBuilder(0).AppendString("see ").AppendToken(tt.tok).Build()
			assert.Equal(t, "see "+tt.want, ctx.Resolve(text))
		})
	}
}

func TestResolveLiteralsUnchanged(t *testing.T) {
	ctx := NewContext(fixture(), "WEB", nil)
	assert.Equal(t, "**bold** [x](y)", ctx.Resolve(lazytext.Of("**bold** [x](y)")))
}

func TestLogin(t *testing.T) {
	ctx := NewContext(fixture(), "WEB", Mapping{"ann@example.com": "ann"})
	assert.Equal(t, "ann", ctx.Login("ANN@example.com"))
	assert.Equal(t, UnknownLogin, ctx.Login("who@example.com"))
	assert.Equal(t, UnknownLogin, ctx.UserLogin(nil))
	assert.Equal(t, "WEB-1", ctx.TaskKey(&types.Task{NumberInProject: 1}))
}

func TestLoadUserMapping(t *testing.T) {
	in := `
# team
Ann@Example.com = ann
bob@example.com=bob

ann@example.com=ann
`
	m, err := LoadUserMapping(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, Mapping{"ann@example.com": "ann", "bob@example.com": "bob"}, m)
}

func TestLoadUserMappingErrors(t *testing.T) {
	for _, in := range []string{
		"no separator",
		"=login",
		"a@example.com=",
		"a@example.com=x\nA@example.com=y",
	} {
		_, err := LoadUserMapping(strings.NewReader(in))
		assert.Error(t, err, in)
	}
}

func TestNewMapping(t *testing.T) {
	m, err := NewMapping(map[string]string{"a@example.com": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", m["a@example.com"])

	_, err = NewMapping(map[string]string{"A@example.com": "a"})
	assert.ErrorContains(t, err, "lower-case")
	_, err = NewMapping(map[string]string{"a@example.com": ""})
	assert.Error(t, err)
}

func TestMissingLogins(t *testing.T) {
	res := fixture()

	missing := MissingLogins(res, Mapping{"bob@example.com": "bob"})
	require.Len(t, missing, 1)
	assert.Equal(t, "ann@example.com", missing[0].ID)
	assert.Equal(t, []export.ReferencingTask{
		{Name: "A", SourceID: "10"},
		{Name: "B", SourceID: "11"},
	}, missing[0].ReferencingTasks)

	assert.Empty(t, MissingLogins(res, Mapping{"ann@example.com": "ann", "bob@example.com": "bob"}))
}
