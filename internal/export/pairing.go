package export

import (
	"log/slog"
	"sort"

	"github.com/steveyegge/trackport/internal/types"
)

type creatorEvent struct {
	comment *types.Comment
	creator *types.User
}

// creatorTable pairs attachment-added events with attachments of one task.
// Either side may arrive first. When several events name the same
// attachment, the earliest one in (CreatedAt, ID) order wins regardless of
// arrival order.
type creatorTable struct {
	taskID      string
	log         *slog.Logger
	attachments map[string]*types.Attachment
	events      map[string]creatorEvent
}

func newCreatorTable(taskID string, log *slog.Logger) *creatorTable {
	return &creatorTable{
		taskID:      taskID,
		log:         log,
		attachments: make(map[string]*types.Attachment),
		events:      make(map[string]creatorEvent),
	}
}

func (p *creatorTable) addAttachment(a *types.Attachment) {
	p.attachments[a.ID] = a
	if ev, ok := p.events[a.ID]; ok {
		a.Creator = ev.creator
	}
}

func (p *creatorTable) addEvent(assetID string, c *types.Comment, creator *types.User) {
	if cur, ok := p.events[assetID]; ok {
		winner, loser := cur, creatorEvent{comment: c, creator: creator}
		if c.Compare(cur.comment) < 0 {
			winner, loser = loser, winner
		}
		p.log.Warn("duplicate attachment-added event, keeping the earliest",
			"task", p.taskID, "asset_id", assetID,
			"kept", winner.comment.ID, "ignored", loser.comment.ID)
		if winner == cur {
			return
		}
	}
	p.events[assetID] = creatorEvent{comment: c, creator: creator}
	if a, ok := p.attachments[assetID]; ok {
		a.Creator = creator
	}
}

// unmatchedEvents lists asset ids named by events for which no attachment
// exists, e.g. because the attachment was deleted later.
func (p *creatorTable) unmatchedEvents() []string {
	var ids []string
	for id := range p.events {
		if _, ok := p.attachments[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
