package history

import (
	"fmt"

	"github.com/dshills/modsettings/internal/settings"
)

// Action is a reversible edit.
type Action interface {
	// DoAction applies the edit. It is called once when the action is
	// executed and again on redo.
	DoAction() error

	// UndoAction reverts the edit.
	UndoAction() error

	// Description returns a human-readable description of the action.
	Description() string
}

// SetProperty assigns a value to one property of one instance.
type SetProperty struct {
	prop     *settings.Property
	original settings.Value
	value    settings.Value
}

// NewSetProperty creates an action that sets p to v. The value is checked
// against the property's kind and bounds now, and the current value is
// captured for undo.
func NewSetProperty(p *settings.Property, v settings.Value) (*SetProperty, error) {
	if p == nil {
		return nil, fmt.Errorf("set property: %w", settings.ErrUnknownProperty)
	}
	prepared, err := p.Definition().Prepare(v)
	if err != nil {
		return nil, err
	}
	return &SetProperty{
		prop:     p,
		original: p.Value(),
		value:    prepared,
	}, nil
}

// DoAction writes the new value.
func (a *SetProperty) DoAction() error {
	return a.prop.Apply(a.value)
}

// UndoAction restores the value captured at construction.
func (a *SetProperty) UndoAction() error {
	return a.prop.Apply(a.original)
}

// Property returns the target property.
func (a *SetProperty) Property() *settings.Property { return a.prop }

// Original returns the value captured at construction.
func (a *SetProperty) Original() settings.Value { return a.original }

// Value returns the value written by DoAction.
func (a *SetProperty) Value() settings.Value { return a.value }

// Description returns a human-readable description.
func (a *SetProperty) Description() string {
	return fmt.Sprintf("Set %s to %s", a.prop.Definition().Label(), a.value)
}

// Composite pairs a payload with do and undo closures.
type Composite[T any] struct {
	name    string
	payload T
	do      func(T) error
	undo    func(T) error
}

// NewComposite creates a composite action. A nil closure is a no-op.
func NewComposite[T any](name string, payload T, do, undo func(T) error) *Composite[T] {
	return &Composite[T]{
		name:    name,
		payload: payload,
		do:      do,
		undo:    undo,
	}
}

// Payload returns the value passed to the closures.
func (c *Composite[T]) Payload() T { return c.payload }

// DoAction invokes the do closure with the payload.
func (c *Composite[T]) DoAction() error {
	return c.invoke("do", c.do)
}

// UndoAction invokes the undo closure with the payload.
func (c *Composite[T]) UndoAction() error {
	return c.invoke("undo", c.undo)
}

func (c *Composite[T]) invoke(phase string, fn func(T) error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &ActionPanicError{Action: c.Description(), Phase: phase, Value: r}
		}
	}()
	return fn(c.payload)
}

// Description returns the composite's name.
func (c *Composite[T]) Description() string {
	if c.name != "" {
		return c.name
	}
	return "Composite action"
}

// Compound groups multiple actions as one undo unit.
type Compound struct {
	Name    string
	Actions []Action
}

// NewCompound creates a new compound action.
func NewCompound(name string, actions ...Action) *Compound {
	return &Compound{
		Name:    name,
		Actions: actions,
	}
}

// DoAction runs all actions in order. If one fails, the actions already
// run are undone.
func (c *Compound) DoAction() error {
	for i, a := range c.Actions {
		if err := a.DoAction(); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = c.Actions[j].UndoAction()
			}
			return fmt.Errorf("compound action '%s' step %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// UndoAction reverses all actions in reverse order.
func (c *Compound) UndoAction() error {
	for i := len(c.Actions) - 1; i >= 0; i-- {
		if err := c.Actions[i].UndoAction(); err != nil {
			return fmt.Errorf("undo compound action '%s' step %d: %w", c.Name, i, err)
		}
	}
	return nil
}

// Description returns the compound action's name.
func (c *Compound) Description() string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Actions) == 1 {
		return c.Actions[0].Description()
	}
	return fmt.Sprintf("%d actions", len(c.Actions))
}

// Add adds an action to the compound.
func (c *Compound) Add(a Action) {
	c.Actions = append(c.Actions, a)
}

// IsEmpty returns true if the compound has no actions.
func (c *Compound) IsEmpty() bool {
	return len(c.Actions) == 0
}
