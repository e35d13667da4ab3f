package board

import "github.com/kavia-common/collaborative-task-board-139157-139166/domain"

// Observer is the presentation side of the orchestrator. Calls are made
// without any orchestrator lock held, possibly from a realtime goroutine.
// Task changes are observed through the store's Watch channel instead.
type Observer interface {
	BoardsChanged(boards []domain.Board)
	BoardSelected(board domain.Board)
	ActivityAdded(entry domain.ActivityEntry)
	// Failed reports a gateway failure. op names the intent step.
	Failed(op string, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) BoardsChanged([]domain.Board) {}
func (NopObserver) BoardSelected(domain.Board) {}
func (NopObserver) ActivityAdded(domain.ActivityEntry) {}
func (NopObserver) Failed(string, error) {}
