package catalog

import (
	"fmt"

	"github.com/CaliLuke/go-catalog/ast"
)

// PlanStep is one select of a fetch plan.
type PlanStep struct {
	// Entity is the type the rows materialize into.
	Entity *EntityInfo
	// Select is the statement before compilation.
	Select ast.SelectStatement
	// Command is Select compiled for the cataloger's dialect.
	Command ast.Command
	// Depth is the number of association hops from the root.
	Depth int
	// Parent is the index of the step this one was expanded from, or -1.
	Parent int
	// Association is the parent field this step feeds, nil for the root.
	Association *AssociationInfo
	// FullTable marks a whole-table load of a cached type. Its rows become
	// the type's snapshot.
	FullTable bool
	// Publish marks an unfiltered root select of a cached type that has no
	// snapshot yet. Its rows are returned and also become the snapshot.
	Publish bool
}

// Plan is the ordered list of selects for one fetch. Steps[0] is the root.
type Plan struct {
	Steps []PlanStep

	covered map[coverKey]int
}

type coverKey struct {
	step  int
	field int
}

// Statements returns the uncompiled selects in order.
func (p *Plan) Statements() []ast.QueryNode {
	nodes := make([]ast.QueryNode, len(p.Steps))
	for i, s := range p.Steps {
		nodes[i] = s.Select
	}
	return nodes
}

// covers reports whether step expanded the association at field index.
func (p *Plan) covers(step, field int) bool {
	_, ok := p.covered[coverKey{step, field}]
	return ok
}

// edge is an association with both key columns resolved.
type edge struct {
	assoc *AssociationInfo
	child *EntityInfo
	// parentKey is the column read on the parent side.
	parentKey *ColumnInfo
	// childKey is the column matched on the child side.
	childKey *ColumnInfo
}

// key is the foreign-key column name of the edge, on whichever table holds it.
func (e edge) key() string {
	if e.assoc.Collection {
		return e.childKey.Name
	}
	return e.parentKey.Name
}

// resolveEdge derives the key columns of an association. A collection
// implies a key on the child table pointing at the parent identity; a
// single association implies a key on the parent table pointing at the
// child identity. ok is false when either column is missing.
func (c *Cataloger) resolveEdge(parent *EntityInfo, a *AssociationInfo) (edge, bool, error) {
	child, err := c.registry.MetadataFor(a.Target)
	if err != nil {
		return edge{}, false, fmt.Errorf("association %s.%s: %w", parent.Name(), a.FieldName, err)
	}
	e := edge{assoc: a, child: child}

	if a.Collection {
		if parent.Identity == nil {
			return e, false, nil
		}
		name := a.ForeignKey
		if name == "" {
			name = parent.Reference
		}
		col, ok := child.Column(name)
		if !ok {
			return e, false, nil
		}
		e.parentKey, e.childKey = parent.Identity, col
		return e, true, nil
	}

	if child.Identity == nil {
		return e, false, nil
	}
	name := a.ForeignKey
	if name == "" {
		name = child.Reference
	}
	col, ok := parent.Column(name)
	if !ok {
		return e, false, nil
	}
	e.parentKey, e.childKey = col, child.Identity
	return e, true, nil
}

// rootSelect renders the root select with its equality filters.
func rootSelect(root *EntityInfo, filters []Filter) (ast.SelectStatement, error) {
	sel := ast.Select(root.Table, root.ColumnNames()...)
	for _, f := range filters {
		col, ok := root.Column(f.Column)
		if !ok {
			return sel, &UnknownParameterError{Table: root.Table, Column: f.Column}
		}
		sel = sel.Filter(ast.Eq(col.Name, bindValue(f.Value)))
	}
	return sel, nil
}

// PlanFetch builds the fetch plan for root. With opts.Expand false the plan
// is the single root select; otherwise associations are expanded
// recursively up to opts.MaxDepth hops.
func (c *Cataloger) PlanFetch(root *EntityInfo, filters []Filter, opts FetchOptions) (*Plan, error) {
	if root.Identity == nil {
		return nil, &MissingIdentityError{TypeName: root.Name(), Operation: "find"}
	}
	sel, err := rootSelect(root, filters)
	if err != nil {
		return nil, err
	}

	p := &planner{
		c:        c,
		plan:     &Plan{covered: make(map[coverKey]int)},
		maxDepth: opts.depth(),
		cached:   make(map[*EntityInfo]bool),
	}
	publish := root.Cached && len(filters) == 0 && root.snapshot.Load() == nil
	if err := p.add(PlanStep{Entity: root, Select: sel, Parent: -1, Publish: publish}); err != nil {
		return nil, err
	}
	if opts.Expand {
		if err := p.expand(0, sel, root, "", 1); err != nil {
			return nil, err
		}
	}
	return p.plan, nil
}

type planner struct {
	c        *Cataloger
	plan     *Plan
	maxDepth int
	cached   map[*EntityInfo]bool
}

func (p *planner) add(step PlanStep) error {
	cmd, err := p.c.compiler.Compile(step.Select)
	if err != nil {
		return fmt.Errorf("plan %s: %w", step.Entity.Name(), err)
	}
	step.Command = cmd
	p.plan.Steps = append(p.plan.Steps, step)
	idx := len(p.plan.Steps) - 1
	if step.Association != nil {
		p.plan.covered[coverKey{step.Parent, step.Association.FieldIndex}] = idx
	}
	return nil
}

// expand adds a select for every association of parent. parentSel carries
// the restriction that selected the parent rows. viaKey is the foreign key
// of the collection edge that reached parent; following the same key back
// is skipped.
func (p *planner) expand(parentIdx int, parentSel ast.SelectStatement, parent *EntityInfo, viaKey string, depth int) error {
	if depth > p.maxDepth {
		return nil
	}
	for i := range parent.Associations {
		a := &parent.Associations[i]
		e, ok, err := p.c.resolveEdge(parent, a)
		if err != nil {
			return err
		}
		if !ok {
			p.c.logger.Debug("association has no resolvable key", "entity", parent.Name(), "field", a.FieldName)
			continue
		}
		if viaKey != "" && e.key() == viaKey {
			continue
		}

		child := e.child
		if child.Cached {
			if child.snapshot.Load() != nil || p.cached[child] {
				continue
			}
			p.cached[child] = true
			err := p.add(PlanStep{
				Entity:      child,
				Select:      ast.Select(child.Table, child.ColumnNames()...),
				Depth:       depth,
				Parent:      parentIdx,
				Association: a,
				FullTable:   true,
			})
			if err != nil {
				return err
			}
			continue
		}

		sub := ast.Select(parent.Table, e.parentKey.Name)
		sub.Where = parentSel.Where
		sel := ast.Select(child.Table, child.ColumnNames()...).Filter(ast.In(e.childKey.Name, sub))
		if err := p.add(PlanStep{Entity: child, Select: sel, Depth: depth, Parent: parentIdx, Association: a}); err != nil {
			return err
		}

		next := ""
		if a.Collection {
			next = e.key()
		}
		if err := p.expand(len(p.plan.Steps)-1, sel, child, next, depth+1); err != nil {
			return err
		}
	}
	return nil
}
