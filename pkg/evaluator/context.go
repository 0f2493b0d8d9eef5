package evaluator

import "fmt"

// EvalContext is one frame of the evaluator's binding/data stack: the
// value currently in scope for `$`, the chain of enclosing frames for
// variable lookup, and a pointer back to the root frame for `$$`.
type EvalContext struct {
	data     interface{}
	parent   *EvalContext
	root     *EvalContext
	bindings map[string]interface{}
	depth    int

	// arrayItem is set on frames introduced by a path step's array
	// iteration; only such frames are valid `%` (parent) targets.
	arrayItem bool
}

// NewContext builds a root frame over data. `$$` resolves to this frame
// for the lifetime of every descendant created from it.
func NewContext(data interface{}) *EvalContext {
	root := &EvalContext{data: data}
	root.root = root
	return root
}

func (c *EvalContext) child(data interface{}, arrayItem bool) *EvalContext {
	return &EvalContext{
		data:      data,
		parent:    c,
		root:      c.root,
		depth:     c.depth + 1,
		arrayItem: arrayItem,
	}
}

// NewChildContext descends into data without marking the frame as an
// array-iteration step.
func (c *EvalContext) NewChildContext(data interface{}) *EvalContext {
	return c.child(data, false)
}

// NewArrayItemContext descends into data as a path step's array item,
// making the frame eligible as a `%` (parent) target.
func (c *EvalContext) NewArrayItemContext(data interface{}) *EvalContext {
	return c.child(data, true)
}

// IsArrayItem reports whether this frame was produced by array iteration.
func (c *EvalContext) IsArrayItem() bool { return c.arrayItem }

// Data returns the value bound to `$` in this frame.
func (c *EvalContext) Data() interface{} { return c.data }

// Parent returns the enclosing frame, or nil at the root.
func (c *EvalContext) Parent() *EvalContext { return c.parent }

// Root returns the frame `$$` resolves to.
func (c *EvalContext) Root() *EvalContext { return c.root }

// Depth returns the frame's distance from the root.
func (c *EvalContext) Depth() int { return c.depth }

// SetBinding binds name to value in this frame, shadowing any outer binding.
func (c *EvalContext) SetBinding(name string, value interface{}) {
	if c.bindings == nil {
		c.bindings = make(map[string]interface{})
	}
	c.bindings[name] = value
}

// SetBindings binds every entry of bindings in this frame.
func (c *EvalContext) SetBindings(bindings map[string]interface{}) {
	if len(bindings) == 0 {
		return
	}
	if c.bindings == nil {
		c.bindings = make(map[string]interface{}, len(bindings))
	}
	for name, value := range bindings {
		c.bindings[name] = value
	}
}

// GetBinding resolves name by walking outward from this frame to the root.
func (c *EvalContext) GetBinding(name string) (interface{}, bool) {
	for frame := c; frame != nil; frame = frame.parent {
		if v, ok := frame.bindings[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Clone returns a frame with the same data, parent, root and depth, and an
// independent copy of its bindings map.
func (c *EvalContext) Clone() *EvalContext {
	cloned := &EvalContext{
		data:   c.data,
		parent: c.parent,
		root:   c.root,
		depth:  c.depth,
	}
	if len(c.bindings) > 0 {
		cloned.bindings = make(map[string]interface{}, len(c.bindings))
		for k, v := range c.bindings {
			cloned.bindings[k] = v
		}
	}
	return cloned
}

// CloneDeeper clones the frame and increments its depth, for recursion
// bookkeeping across lambda calls.
func (c *EvalContext) CloneDeeper() *EvalContext {
	cloned := c.Clone()
	cloned.depth++
	return cloned
}

func (c *EvalContext) String() string {
	return fmt.Sprintf("Context{depth=%d, bindings=%d}", c.depth, len(c.bindings))
}
