package dialogue

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownAction is returned by Registry.Run for unregistered names.
var ErrUnknownAction = errors.New("unknown action")

// Action is one named custom action.
type Action interface {
	Name() string
	Run(ctx context.Context, d *Dispatcher, t Tracker) ([]Event, error)
}

// Registry maps action names to actions. It is immutable after NewRegistry.
type Registry struct {
	actions map[string]Action
}

func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		name := a.Name()
		if _, dup := r.actions[name]; dup {
			return nil, fmt.Errorf("action %q registered twice", name)
		}
		r.actions[name] = a
	}
	return r, nil
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes the action named by req against the request's tracker.
func (r *Registry) Run(ctx context.Context, req ActionRequest) (*ActionResponse, error) {
	a, ok := r.actions[req.NextAction]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, req.NextAction)
	}
	t := req.Tracker
	if t.SenderID == "" {
		t.SenderID = req.SenderID
	}

	var d Dispatcher
	events, err := a.Run(ctx, &d, t)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", req.NextAction, err)
	}
	if events == nil {
		events = []Event{}
	}
	return &ActionResponse{Events: events, Responses: d.Messages()}, nil
}
