package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a snapshot has no record for the requested id.
var ErrNotFound = errors.New("not found")

// TaskNode is a task in a snapshot document together with the records that
// hang off it.
type TaskNode struct {
	TaskRecord  `yaml:",inline"`
	Subtasks    []TaskNode         `yaml:"subtasks,omitempty" json:"subtasks,omitempty"`
	Stories     []StoryRecord      `yaml:"stories,omitempty" json:"stories,omitempty"`
	Attachments []AttachmentRecord `yaml:"attachments,omitempty" json:"attachments,omitempty"`
}

func (n *TaskNode) hasChildren() bool {
	return len(n.Subtasks) > 0 || len(n.Stories) > 0 || len(n.Attachments) > 0
}

// Document is the on-disk layout of a snapshot.
type Document struct {
	Project ProjectRecord `yaml:"project" json:"project"`
	Users   []UserRecord  `yaml:"users" json:"users"`
	Tasks   []TaskNode    `yaml:"tasks" json:"tasks"`
}

// Snapshot is an in-memory Source backed by a Document.
//
// A task may be listed more than once, for example a subtask that also
// appears at the project's top level. Its stories, attachments and subtasks
// are taken from the first occurrence that has any.
type Snapshot struct {
	doc   *Document
	index map[string]*TaskNode
}

// NewSnapshot indexes doc.
func NewSnapshot(doc *Document) *Snapshot {
	s := &Snapshot{doc: doc, index: make(map[string]*TaskNode)}
	var visit func(nodes []TaskNode)
	visit = func(nodes []TaskNode) {
		for i := range nodes {
			n := &nodes[i]
			if prev, ok := s.index[n.ID]; !ok || (!prev.hasChildren() && n.hasChildren()) {
				s.index[n.ID] = n
			}
			visit(n.Subtasks)
		}
	}
	visit(doc.Tasks)
	return s
}

// LoadSnapshot reads a snapshot file. The decoder is chosen by extension:
// .json for JSON, .yaml or .yml for YAML.
func LoadSnapshot(path string) (*Snapshot, error) {
	// #nosec G304 - path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = "json"
	case ".yaml", ".yml":
		format = "yaml"
	default:
		return nil, fmt.Errorf("unsupported snapshot extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
	snap, err := ParseSnapshot(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// ParseSnapshot decodes a snapshot in the given format ("json" or "yaml").
func ParseSnapshot(r io.Reader, format string) (*Snapshot, error) {
	var doc Document
	switch format {
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot JSON: %w", err)
		}
	case "yaml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse snapshot YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	if err := validate(&doc); err != nil {
		return nil, err
	}
	return NewSnapshot(&doc), nil
}

func validate(doc *Document) error {
	for i, u := range doc.Users {
		if u.ID == "" {
			return fmt.Errorf("user %d has no gid", i)
		}
	}
	var check func(path string, nodes []TaskNode) error
	check = func(path string, nodes []TaskNode) error {
		for i, n := range nodes {
			if n.ID == "" {
				return fmt.Errorf("task %s[%d] has no gid", path, i)
			}
			if err := check(path+"/"+n.ID, n.Subtasks); err != nil {
				return err
			}
		}
		return nil
	}
	return check("", doc.Tasks)
}

// Document returns the underlying document.
func (s *Snapshot) Document() *Document { return s.doc }

func (s *Snapshot) Project(ctx context.Context, projectID string) (*ProjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if projectID != "" && projectID != s.doc.Project.ID {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	p := s.doc.Project
	return &p, nil
}

func (s *Snapshot) Users(ctx context.Context, workspaceID string) ([]UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if workspaceID != s.doc.Project.WorkspaceID {
		return nil, nil
	}
	return append([]UserRecord(nil), s.doc.Users...), nil
}

func (s *Snapshot) Tasks(ctx context.Context, projectID string) ([]TaskRecord, error) {
	if _, err := s.Project(ctx, projectID); err != nil {
		return nil, err
	}
	return records(s.doc.Tasks), nil
}

func (s *Snapshot) Subtasks(ctx context.Context, taskID string) ([]TaskRecord, error) {
	n, err := s.node(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return records(n.Subtasks), nil
}

func (s *Snapshot) Stories(ctx context.Context, taskID string) ([]StoryRecord, error) {
	n, err := s.node(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return append([]StoryRecord(nil), n.Stories...), nil
}

func (s *Snapshot) Attachments(ctx context.Context, taskID string) ([]AttachmentRecord, error) {
	n, err := s.node(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return append([]AttachmentRecord(nil), n.Attachments...), nil
}

func (s *Snapshot) node(ctx context.Context, taskID string) (*TaskNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, ok := s.index[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return n, nil
}

func records(nodes []TaskNode) []TaskRecord {
	out := make([]TaskRecord, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].TaskRecord
	}
	return out
}
