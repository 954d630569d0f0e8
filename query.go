package cqldriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/nativecql/cqldriver/frame"
	"github.com/nativecql/cqldriver/frame/request"
	"github.com/nativecql/cqldriver/frame/response"
	"github.com/nativecql/cqldriver/transport"
)

const defaultPageSize int32 = 5000

// Query is a fluent builder around one CQL statement, either a plain string
// or (after Session.Prepare) a cached prepared statement id (§3 Query, §4.4,
// §4.6).
type Query struct {
	session    *Session
	cql        string
	prepared   *PreparedQuery
	params     request.QueryParams
	idempotent bool
}

// Bind sets the statement's positional bind values.
func (q *Query) Bind(values ...frame.Value) *Query {
	q.params.Values = values
	q.params.Names = nil
	return q
}

// NamedBind sets the statement's bind values by marker name; names and
// values are parallel slices.
func (q *Query) NamedBind(names []string, values []frame.Value) *Query {
	q.params.Names = names
	q.params.Values = values
	return q
}

func (q *Query) Consistency(c frame.Consistency) *Query {
	q.params.Consistency = c
	return q
}

func (q *Query) SerialConsistency(c frame.Consistency) *Query {
	q.params.SerialConsistency = c
	q.params.HasSerialConsistency = true
	return q
}

func (q *Query) PageSize(n int32) *Query {
	q.params.PageSize = n
	return q
}

// Idempotent marks the statement as safe to re-run; it defaults to false. The
// flag is passed to the retry decider: DowngradingRetryPolicy retries a
// read/write timeout on the same node only for idempotent statements, while
// DefaultRetryPolicy does not consult it (§4.6 step 6).
func (q *Query) Idempotent(v bool) *Query {
	q.idempotent = v
	return q
}

// Exec runs the statement to completion and returns its RESULT, re-preparing
// once and transparently retrying per the session's RetryPolicy on failure
// (§4.6 steps 1-8).
func (q *Query) Exec(ctx context.Context) (*response.Result, error) {
	return q.execWithParams(ctx, q.params)
}

func (q *Query) execWithParams(ctx context.Context, params request.QueryParams) (*response.Result, error) {
	attempt := func(conn *transport.Conn) (*response.Result, error) {
		if q.prepared == nil {
			return conn.Query(ctx, q.cql, params)
		}

		res, err := conn.Execute(ctx, q.prepared.ID, params)
		if err == nil {
			return res, nil
		}

		var ce *response.Error
		if !q.session.cfg.AutoReprepare || !errors.As(err, &ce) || ce.Code() != frame.ErrUnprepared {
			return nil, err
		}

		prepared, perr := conn.Prepare(ctx, q.prepared.CQL)
		if perr != nil {
			return nil, fmt.Errorf("cqldriver: re-preparing %q after UNPREPARED: %w", q.prepared.CQL, perr)
		}
		q.prepared.ID = prepared.ID
		return conn.Execute(ctx, q.prepared.ID, params)
	}

	return q.session.do(ctx, q.idempotent, params.Consistency, attempt)
}

// Iter returns a Pager that fetches successive pages of this statement's
// results on demand (§3 Pager, §4.6).
func (q *Query) Iter() *Pager {
	pageSize := q.params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Pager{query: q, pageSize: pageSize}
}

// Pager walks a query's result pages one row at a time. It is not safe to
// share between goroutines and, once started, can only be restarted by
// building a fresh one from Query.Iter: the paging_state a page carries is
// only meaningful as a continuation of the exact statement that produced it.
type Pager struct {
	query    *Query
	pageSize int32

	page        *response.Rows
	idx         int
	pagingState []byte
	started     bool
	done        bool
	err         error
}

// Next advances to the next row, fetching a new page from the server when
// the current one is exhausted. It returns false when there are no more rows
// or a fetch failed; call Err to distinguish the two.
func (p *Pager) Next(ctx context.Context) bool {
	if p.err != nil {
		return false
	}
	for p.page == nil || p.idx >= len(p.page.Rows) {
		if p.started && p.done {
			return false
		}
		if err := p.fetch(ctx); err != nil {
			p.err = err
			return false
		}
	}
	p.idx++
	return true
}

// Row returns the row Next just advanced onto.
func (p *Pager) Row() response.Row {
	return p.page.Rows[p.idx-1]
}

// Metadata returns the column metadata of the current page.
func (p *Pager) Metadata() response.ResultMetadata {
	if p.page == nil {
		return response.ResultMetadata{}
	}
	return p.page.Metadata
}

func (p *Pager) Err() error { return p.err }

func (p *Pager) fetch(ctx context.Context) error {
	params := p.query.params
	params.PageSize = p.pageSize
	params.PagingState = p.pagingState

	res, err := p.query.execWithParams(ctx, params)
	if err != nil {
		return err
	}
	if res.Rows == nil {
		return ErrNoQueryResults
	}

	p.page = res.Rows
	p.idx = 0
	p.started = true
	p.done = !res.Rows.Metadata.HasMorePages
	p.pagingState = res.Rows.Metadata.PagingState
	return nil
}

// Batch is a fluent builder around BATCH: a sequence of statements (plain or
// prepared) executed together under one consistency level (§3 Batch, §4.4).
type Batch struct {
	session    *Session
	req        *request.Batch
	idempotent bool
}

// Add appends a plain-string statement to the batch.
func (b *Batch) Add(cql string, values ...frame.Value) *Batch {
	b.req.Statements = append(b.req.Statements, request.BatchStatement{QueryString: cql, Values: values})
	return b
}

// AddPrepared appends a prepared statement to the batch.
func (b *Batch) AddPrepared(pq *PreparedQuery, values ...frame.Value) *Batch {
	b.req.Statements = append(b.req.Statements, request.BatchStatement{ID: pq.ID, Values: values})
	return b
}

func (b *Batch) Consistency(c frame.Consistency) *Batch {
	b.req.Consistency = c
	return b
}

func (b *Batch) SerialConsistency(c frame.Consistency) *Batch {
	b.req.SerialConsistency = c
	b.req.HasSerialConsistency = true
	return b
}

func (b *Batch) Idempotent(v bool) *Batch {
	b.idempotent = v
	return b
}

// Exec sends the batch, retrying per the session's RetryPolicy on failure
// (§4.6 steps 1-8).
func (b *Batch) Exec(ctx context.Context) (*response.Result, error) {
	attempt := func(conn *transport.Conn) (*response.Result, error) {
		return conn.Batch(ctx, b.req)
	}
	return b.session.do(ctx, b.idempotent, b.req.Consistency, attempt)
}
