package board

import (
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/reconcile"
)

// ingest is the single entry point for realtime events. boardID is the board
// the subscription was opened for; events for any board other than the
// active one are dropped before they reach the store or the feed.
func (o *Orchestrator) ingest(boardID string, ev domain.Event) {
	fields := log.Fields{"board": boardID, "collection": ev.Collection, "kind": ev.Kind, "parent": ev.ParentID}
	if ev.ParentID != boardID || o.activeID() != boardID {
		o.logger.WithFields(fields).Debug("realtime event for inactive board dropped")
		return
	}

	o.mu.Lock()
	if o.loading == boardID {
		o.buffered = append(o.buffered, ev)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.dispatch(boardID, ev)
}

// dispatch routes one event of the active board to the store or the feed.
func (o *Orchestrator) dispatch(boardID string, ev domain.Event) {
	fields := log.Fields{"board": boardID, "collection": ev.Collection, "kind": ev.Kind, "parent": ev.ParentID}
	switch ev.Collection {
	case domain.CollectionTasks:
		change, err := ev.TaskChange()
		if err != nil {
			o.logger.WithFields(fields).WithError(err).Warn("malformed task event dropped")
			return
		}
		o.store.ApplyRemote(reconcile.RemoteEvent{Kind: ev.Kind, BoardID: boardID, Change: change})
	case domain.CollectionActivity:
		if ev.Kind != domain.EventInsert {
			return
		}
		entry, err := ev.Activity()
		if err != nil {
			o.logger.WithFields(fields).WithError(err).Warn("malformed activity event dropped")
			return
		}
		if entry.BoardID == "" {
			entry.BoardID = boardID
		}
		if o.feed.Prepend(entry) {
			o.obs.ActivityAdded(entry)
		}
	default:
		o.logger.WithFields(fields).Debug("realtime event for unwatched collection dropped")
	}
}
