package statemachine

import "fmt"

// Chain is a linear sequence of states. Choice states end a chain; their branches are
// built as separate chains passed to When and Otherwise.
type Chain struct {
	start Node
	tail  Node
	err   error
}

// Start begins a chain at n.
func Start(n Node) *Chain {
	if inner, ok := n.(*Chain); ok {
		return &Chain{start: inner.start, tail: inner.tail, err: inner.err}
	}
	return &Chain{start: n, tail: n}
}

// Next appends n to the chain. Appending a chain continues from its last state.
func (c *Chain) Next(n Node) *Chain {
	if c.err != nil {
		return c
	}
	if n == nil {
		c.err = fmt.Errorf("state %q cannot be followed by a nil state", nameOf(c.tail))
		return c
	}
	last := n
	if inner, ok := n.(*Chain); ok {
		if inner.err != nil {
			c.err = inner.err
			return c
		}
		n, last = inner.start, inner.tail
	}
	tail, ok := c.tail.(nexter)
	if !ok {
		c.err = fmt.Errorf("state %q cannot be followed by %q", nameOf(c.tail), nameOf(n))
		return c
	}
	if tail.nextNode() != nil {
		c.err = fmt.Errorf("state %q already transitions to %q", tail.StateName(), tail.nextNode().StateName())
		return c
	}
	tail.setNext(n)
	c.tail = last
	return c
}

// StateName is the name of the first state, so a chain can be used as a branch target.
func (c *Chain) StateName() string { return nameOf(c.start) }

func (c *Chain) render() (map[string]any, error) {
	return nil, fmt.Errorf("chain %q is not a state", c.StateName())
}

func (c *Chain) successors() []Node { return nil }

// Err returns the first wiring error.
func (c *Chain) Err() error { return c.err }

func nameOf(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.StateName()
}

// unwrap resolves a chain to its start node.
func unwrap(n Node) Node {
	for {
		c, ok := n.(*Chain)
		if !ok {
			return n
		}
		n = c.start
	}
}
