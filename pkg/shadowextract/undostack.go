package shadowextract

import (
	"context"
)

// an acquired resource's release action. "reaches" is the state the lifecycle is in after
// a successful release.
type undoAction struct {
	reaches State
	fn      func(context.Context) error
}

// last acquired, first released. releases are pushed as each resource is acquired, and
// the same stack drives both the normal teardown and compensation after a failure, so
// there is exactly one release attempt per acquired resource.
type undoStack struct {
	actions []undoAction
}

func (u *undoStack) push(reaches State, fn func(context.Context) error) {
	u.actions = append(u.actions, undoAction{reaches, fn})
}

// runs every action, even if earlier ones fail. the stack is empty afterwards.
func (u *undoStack) unwind(ctx context.Context, report func(undoAction, error)) {
	for len(u.actions) > 0 {
		top := u.actions[len(u.actions)-1]
		u.actions = u.actions[:len(u.actions)-1]

		report(top, top.fn(ctx))
	}
}

func (u *undoStack) len() int {
	return len(u.actions)
}
