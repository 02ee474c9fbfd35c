package convert

import (
	"github.com/steveyegge/trackport/internal/export"
	"github.com/steveyegge/trackport/internal/output"
)

// Field is one named issue field. Multi-valued fields (voters, watchers)
// carry several values.
type Field struct {
	Name   string   `json:"name" yaml:"name" toml:"name"`
	Values []string `json:"value" yaml:"value" toml:"value"`
}

// Comment is an issue comment in the target import format.
type Comment struct {
	Author   string `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
	Created  int64  `json:"created" yaml:"created" toml:"created"`
	Text     string `json:"text" yaml:"text" toml:"text"`
	Markdown bool   `json:"markdown" yaml:"markdown" toml:"markdown"`
}

// Issue is one converted task.
type Issue struct {
	Fields   []Field   `json:"field" yaml:"field" toml:"field"`
	Comments []Comment `json:"comment,omitempty" yaml:"comment,omitempty" toml:"comment,omitempty"`
}

// Field returns the values of the named field, or nil.
func (i *Issue) Field(name string) []string {
	for _, f := range i.Fields {
		if f.Name == name {
			return f.Values
		}
	}
	return nil
}

// Value returns the first value of the named field, or "".
func (i *Issue) Value(name string) string {
	if v := i.Field(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Link relates two issues by key.
type Link struct {
	Source   string `json:"source" yaml:"source" toml:"source"`
	Target   string `json:"target" yaml:"target" toml:"target"`
	TypeName string `json:"typeName" yaml:"typeName" toml:"typeName"`
}

// Attachment is a file or link attached to an issue. Exactly one of Path
// and Link is set, unless the attachment has neither a local copy nor a
// view URL.
type Attachment struct {
	TaskNumberInProject int    `json:"taskNumberInProject" yaml:"taskNumberInProject" toml:"taskNumberInProject"`
	AuthorLogin         string `json:"authorLogin" yaml:"authorLogin" toml:"authorLogin"`
	Created             int64  `json:"created" yaml:"created" toml:"created"`
	Name                string `json:"name" yaml:"name" toml:"name"`
	Path                string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Link                string `json:"link,omitempty" yaml:"link,omitempty" toml:"link,omitempty"`
}

// IssueTags lists the tags of one issue.
type IssueTags struct {
	ID   string   `json:"id" yaml:"id" toml:"id"`
	Tags []string `json:"tags" yaml:"tags" toml:"tags"`
}

// Issues is the root of the issues file.
type Issues struct {
	Issue []Issue `json:"issue" yaml:"issue" toml:"issue"`
}

// Links is the root of the links file.
type Links struct {
	Link []Link `json:"link" yaml:"link" toml:"link"`
}

// Attachments is the root of the attachments file.
type Attachments struct {
	Attachment []Attachment `json:"attachment" yaml:"attachment" toml:"attachment"`
}

// TagsForIssues is the root of the tags file.
type TagsForIssues struct {
	Issues []IssueTags `json:"issues" yaml:"issues" toml:"issues"`
}

// ConversionWarnings lists problems found while converting.
type ConversionWarnings struct {
	MissingLoginMapping []export.MissingID `json:"missing_login_mapping" yaml:"missing_login_mapping" toml:"missing_login_mapping"`
}

// Settings records what was exported and under which prefix.
type Settings struct {
	Workspace     string `json:"workspace,omitempty" yaml:"workspace,omitempty" toml:"workspace,omitempty"`
	Project       string `json:"project" yaml:"project" toml:"project"`
	ProjectPrefix string `json:"project_prefix" yaml:"project_prefix" toml:"project_prefix"`
}

// Payload is the complete conversion result.
type Payload struct {
	Issues             Issues
	Links              Links
	Attachments        Attachments
	Tags               TagsForIssues
	ExportWarnings     *export.Warnings
	ConversionWarnings ConversionWarnings
	Settings           Settings
}

// Files returns the payload as named output files.
func (p *Payload) Files() []output.File {
	return []output.File{
		{Name: "issues", Value: p.Issues},
		{Name: "links", Value: p.Links},
		{Name: "attachments", Value: p.Attachments},
		{Name: "tags", Value: p.Tags},
		{Name: "export-warnings", Value: p.ExportWarnings},
		{Name: "conversion-warnings", Value: p.ConversionWarnings},
		{Name: "settings", Value: p.Settings},
	}
}
