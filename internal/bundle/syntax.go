package bundle

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// ParseJS parses content as JavaScript (script or ES module) and returns an
// error locating the first syntax error.
func ParseJS(ctx context.Context, content []byte) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fmt.Errorf("parse JavaScript: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	if n := firstError(root); n != nil {
		p := n.StartPoint()
		kind := "unexpected input"
		if n.IsMissing() {
			kind = fmt.Sprintf("missing %q", n.Type())
		}
		return fmt.Errorf("%s at line %d, column %d", kind, p.Row+1, p.Column+1)
	}
	return errors.New("syntax error")
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsMissing() || n.Type() == "ERROR" {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		if found := firstError(child); found != nil {
			return found
		}
	}
	return nil
}
