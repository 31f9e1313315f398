package catalog

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"reflect"
)

func (c *Cataloger) execError(op, table, query string, err error) error {
	return &ExecutionError{
		Op:         op,
		Table:      table,
		SQL:        query,
		Constraint: c.dialect.IsConstraintViolation(err),
		Cause:      err,
	}
}

// rootError keeps hydration failures as they are and wraps everything
// else as an execution failure.
func (c *Cataloger) rootError(step PlanStep, err error) error {
	var he *HydrationError
	if errors.As(err, &he) {
		return err
	}
	return c.execError("find", step.Entity.Table, step.Command.SQL, err)
}

// execute runs every step of plan on one connection and loads the rows
// into b. The connection is released before returning, so wiring and any
// follow-up fetches never hold it. A failure of the root step is returned;
// failures of later steps are recorded in b and skipped.
func (c *Cataloger) execute(ctx context.Context, plan *Plan, b *batch, origin func(int) int) ([]reflect.Value, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, c.execError("find", plan.Steps[0].Entity.Table, "", err)
	}
	defer conn.Close()

	if c.dialect.MultiResultSets() && len(plan.Steps) > 1 {
		return c.executeBatch(ctx, conn, plan, b, origin)
	}

	var roots []reflect.Value
	for i, step := range plan.Steps {
		objs, err := c.runStep(ctx, conn, step, b, origin(i))
		if err != nil {
			if i == 0 {
				return nil, c.rootError(step, err)
			}
			b.fail(origin(i), step.Entity.Table, err)
			continue
		}
		if i == 0 {
			roots = objs
		}
	}
	return roots, nil
}

func (c *Cataloger) runStep(ctx context.Context, conn *sql.Conn, step PlanStep, b *batch, origin int) ([]reflect.Value, error) {
	rows, err := conn.QueryContext(ctx, step.Command.SQL, step.Command.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return c.consume(step, rows, b, origin)
}

// consume reads the current result set of rows for step.
func (c *Cataloger) consume(step PlanStep, rows *sql.Rows, b *batch, origin int) ([]reflect.Value, error) {
	if step.FullTable {
		objs, err := scanAll(step.Entity, rows)
		if err != nil {
			return nil, err
		}
		step.Entity.publish(newSnapshot(step.Entity, objs))
		return nil, nil
	}
	objs, err := b.load(step.Entity, rows, origin)
	if err != nil {
		return nil, err
	}
	if step.Publish {
		step.Entity.publish(newSnapshot(step.Entity, detached(objs)))
	}
	return objs, nil
}

// detached returns shallow copies of objs. Called before wiring, so the
// copies carry columns only and share nothing with the fetched graph.
func detached(objs []reflect.Value) []reflect.Value {
	out := make([]reflect.Value, len(objs))
	for i, obj := range objs {
		cp := reflect.New(obj.Elem().Type())
		cp.Elem().Set(obj.Elem())
		out[i] = cp
	}
	return out
}

// executeBatch sends the whole plan as one multi-statement command and
// walks its result sets in plan order.
func (c *Cataloger) executeBatch(ctx context.Context, conn *sql.Conn, plan *Plan, b *batch, origin func(int) int) ([]reflect.Value, error) {
	cmd, err := c.compiler.CompileBatch(plan.Statements())
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, cmd.SQL, cmd.Args...)
	if err != nil {
		return nil, c.execError("find", plan.Steps[0].Entity.Table, cmd.SQL, err)
	}
	defer rows.Close()

	var roots []reflect.Value
	for i, step := range plan.Steps {
		if i > 0 && !rows.NextResultSet() {
			cause := rows.Err()
			if cause == nil {
				cause = ErrBatchAborted
			}
			for j := i; j < len(plan.Steps); j++ {
				b.fail(origin(j), plan.Steps[j].Entity.Table, cause)
				cause = ErrBatchAborted
			}
			break
		}
		objs, err := c.consume(step, rows, b, origin(i))
		if err != nil {
			if i == 0 {
				return nil, c.rootError(step, err)
			}
			b.fail(origin(i), step.Entity.Table, err)
			continue
		}
		if i == 0 {
			roots = objs
		}
	}
	return roots, nil
}

func planOrigin(i int) int { return i }

func lazy(int) int { return lazyOrigin }

// fetch plans, executes and wires one fetch of info.
func (c *Cataloger) fetch(ctx context.Context, info *EntityInfo, filters []Filter, opts FetchOptions) ([]reflect.Value, error) {
	plan, err := c.PlanFetch(info, filters, opts)
	if err != nil {
		return nil, err
	}
	if c.logger.Enabled(ctx, slog.LevelDebug) {
		for i, s := range plan.Steps {
			c.logger.Debug("fetch step", "step", i, "entity", s.Entity.Name(), "depth", s.Depth, "sql", s.Command.SQL)
		}
	}

	b := newBatch(ctx, c, plan, opts)
	roots, err := c.execute(ctx, plan, b, planOrigin)
	if err != nil {
		return nil, err
	}
	b.wire()
	return roots, b.err()
}

// fetchInto runs an unexpanded fetch of info and adds its rows to an
// existing batch, queueing the new objects for wiring.
func (c *Cataloger) fetchInto(b *batch, info *EntityInfo, filters []Filter) ([]reflect.Value, error) {
	plan, err := c.PlanFetch(info, filters, FetchOptions{MaxDepth: b.opts.MaxDepth})
	if err != nil {
		return nil, err
	}
	return c.execute(b.ctx, plan, b, lazy)
}
