package ast

// WalkFunc is called for every node visited by Walk. Returning a non-nil
// error stops the traversal.
type WalkFunc func(id NodeID, n *Node) error

// Walk traverses the subtree rooted at id in depth-first pre-order, following
// children in enumeration order. Embedded templates of module nodes are
// walked after the module itself and before its children.
func Walk(t *Tree, id NodeID, fn WalkFunc) error {
	if !id.IsValid() {
		return nil
	}
	n := t.Node(id)
	if err := fn(id, n); err != nil {
		return err
	}

	if n.Type == TypeModule {
		for _, embedded := range t.EmbeddedTemplates(id) {
			if err := Walk(t, embedded, fn); err != nil {
				return err
			}
		}
	}

	for _, c := range n.Children {
		if err := Walk(t, c.ID, fn); err != nil {
			return err
		}
	}

	return nil
}
