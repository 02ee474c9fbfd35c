package export

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/steveyegge/trackport/internal/attachments"
	"github.com/steveyegge/trackport/internal/lazytext"
	"github.com/steveyegge/trackport/internal/markup"
	"github.com/steveyegge/trackport/internal/source"
	"github.com/steveyegge/trackport/internal/types"
)

// assetIDPattern finds the attachment id in the text of an attachment-added
// story, which links to .../get_asset?asset_id=<id>.
var assetIDPattern = regexp.MustCompile(`asset_id=(\d+)`)

// builder is the mutable state of one export. It is threaded through the
// traversal and discarded by finish.
type builder struct {
	ex   *Exporter
	opts Options
	log  *slog.Logger
	base string

	transducer markup.Transducer

	tasks     map[string]*types.Task
	users     map[string]*types.User
	taskOcc   *types.OccurrenceMap
	userOcc   *types.OccurrenceMap
	downloads []*attachments.Future
}

func newBuilder(ex *Exporter, opts Options, log *slog.Logger, base string) *builder {
	return &builder{
		ex:         ex,
		opts:       opts,
		log:        log,
		base:       base,
		transducer: markup.Transducer{Marker: opts.Marker, Logger: log},
		tasks:      make(map[string]*types.Task),
		users:      make(map[string]*types.User),
		taskOcc:    types.NewOccurrenceMap(),
		userOcc:    types.NewOccurrenceMap(),
	}
}

// processTasks handles one level of the hierarchy. Each task is fully
// processed, including its attachments and stories, before recursing into
// its subtasks.
func (b *builder) processTasks(ctx context.Context, records []source.TaskRecord, level int) error {
	var section *types.Task
	for i := range records {
		rec := &records[i]
		if level == 0 && rec.Parent != nil && rec.Parent.ID != "" {
			// Subtasks may also be listed in the project; their canonical
			// location is under the parent.
			continue
		}
		if _, seen := b.tasks[rec.ID]; seen {
			b.log.Warn("task listed twice, keeping first occurrence", "task", rec.ID)
			continue
		}
		isSection := level == 0 && types.IsSectionTitle(rec.Name, b.opts.SectionSuffix)
		if since := b.opts.CreatedSince; since != nil && rec.CreatedAt.Before(*since) {
			b.log.Debug("skipping task created before cutoff", "task", rec.ID, "created_at", rec.CreatedAt)
			if isSection {
				section = nil
			}
			continue
		}

		var tb *types.TaskBuilder
		if isSection {
			tb = types.NewTaskBuilder(rec, nil)
			section = tb.Task()
		} else {
			tb = types.NewTaskBuilder(rec, section)
		}
		if err := b.processTask(ctx, tb); err != nil {
			return err
		}

		subtasks, err := b.ex.Source.Subtasks(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to load subtasks of %s: %w", rec.ID, err)
		}
		if err := b.processTasks(ctx, subtasks, level+1); err != nil {
			return err
		}
		b.log.Info("finished task", "name", rec.Name, "task", rec.ID)
	}
	return nil
}

func (b *builder) processTask(ctx context.Context, tb *types.TaskBuilder) error {
	t := tb.Task()
	rec := t.Record
	b.tasks[t.ID] = t

	if rec.Parent != nil {
		b.taskOcc.Add(rec.Parent.ID, t)
	}
	b.addUser(rec.CreatedBy, t)
	b.addUser(rec.Assignee, t)
	for i := range rec.Likes {
		b.addUser(&rec.Likes[i].User, t)
	}
	for i := range rec.Followers {
		b.addUser(&rec.Followers[i], t)
	}

	factory := b.referenceFactory(t)
	tb.SetDescription(b.transducer.Transduce(rec.HTMLNotes, factory))

	if err := b.processChildren(ctx, tb, factory); err != nil {
		return err
	}
	tb.Freeze()
	return nil
}

// referenceFactory returns the factory used for t's rich text. Every task
// and user reference it creates is recorded against t.
func (b *builder) referenceFactory(t *types.Task) markup.ReferenceFactory {
	return func(href, typ, id string) lazytext.Token {
		ref := types.NewReference(href, typ, id)
		switch ref.Kind {
		case types.RefTask:
			b.taskOcc.Add(id, t)
		case types.RefUser:
			b.userOcc.Add(id, t)
		}
		return ref
	}
}

// addUser records a relation reference. Users named by a relation carry
// their own details, so they are added to the user map when missing.
func (b *builder) addUser(ref *source.Ref, t *types.Task) {
	if ref == nil || ref.ID == "" {
		return
	}
	if _, ok := b.users[ref.ID]; !ok {
		b.users[ref.ID] = &types.User{ID: ref.ID, Name: ref.Name, Email: ref.Email}
	}
	b.userOcc.Add(ref.ID, t)
}

func (b *builder) processChildren(ctx context.Context, tb *types.TaskBuilder, factory markup.ReferenceFactory) error {
	t := tb.Task()
	pairs := newCreatorTable(t.ID, b.log)

	atts, err := b.ex.Source.Attachments(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load attachments of %s: %w", t.ID, err)
	}
	for i := range atts {
		a := b.newAttachment(ctx, t, &atts[i])
		tb.AddAttachment(a)
		pairs.addAttachment(a)
	}

	stories, err := b.ex.Source.Stories(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load stories of %s: %w", t.ID, err)
	}
	for i := range stories {
		c := b.newComment(t, &stories[i], factory, pairs)
		tb.AddComment(c)
	}

	for _, id := range pairs.unmatchedEvents() {
		b.log.Debug("attachment-added event names an unknown attachment", "task", t.ID, "asset_id", id)
	}
	return nil
}

func (b *builder) newAttachment(ctx context.Context, t *types.Task, rec *source.AttachmentRecord) *types.Attachment {
	a := &types.Attachment{
		ID:          rec.ID,
		CreatedAt:   rec.CreatedAt,
		Name:        rec.Name,
		Host:        rec.Host,
		ViewURL:     rec.ViewURL,
		DownloadURL: rec.DownloadURL,
	}
	// Externally hosted attachments have no download URL.
	if rec.DownloadURL != "" && b.ex.Downloader != nil {
		a.DownloadPath = attachments.Path(b.base, t.ID, rec.ID, rec.Name)
		a.Download = b.ex.Downloader.Download(ctx, b.base, t.ID, rec.ID, rec.Name, rec.DownloadURL)
		b.downloads = append(b.downloads, a.Download)
	}
	return a
}

func (b *builder) newComment(t *types.Task, story *source.StoryRecord, factory markup.ReferenceFactory, pairs *creatorTable) *types.Comment {
	c := &types.Comment{
		ID:        story.ID,
		CreatedAt: story.CreatedAt,
		Kind:      types.KindOf(story.Subtype),
		Subtype:   story.Subtype,
		Raw:       story.Text,
		Edited:    story.IsEdited,
		Record:    story,
	}
	if story.CreatedBy != nil {
		c.AuthorID = story.CreatedBy.ID
	}
	b.addUser(story.CreatedBy, t)
	for i := range story.Likes {
		b.addUser(&story.Likes[i].User, t)
	}

	switch c.Kind {
	case types.KindCommentAdded:
		c.Text = b.transducer.Transduce(story.HTMLText, factory)
	case types.KindAttachmentAdded:
		m := assetIDPattern.FindStringSubmatch(story.Text)
		if m == nil {
			b.log.Warn("could not extract attachment id from attachment-added story",
				"task", t.ID, "story", story.ID, "text", story.Text)
			break
		}
		creator := b.users[c.AuthorID]
		if creator == nil {
			b.log.Warn("attachment-added story has no author", "task", t.ID, "story", story.ID)
			break
		}
		pairs.addEvent(m[1], c, creator)
	}
	return c
}
