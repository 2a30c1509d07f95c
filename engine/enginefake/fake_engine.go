package enginefake

import (
	"context"
	"strings"
	"sync"

	"github.com/jrsteele09/dashboard-gateway/engine"
)

// Call records one Execute invocation.
type Call struct {
	SQL     string
	Options engine.QueryOptions
}

type response struct {
	match string
	rows  []engine.Row
	err   error
}

// FakeEngine answers Execute with canned rows chosen by the first registered
// fragment contained in the submitted SQL. Unmatched SQL yields no rows.
type FakeEngine struct {
	lock      sync.RWMutex
	responses []response
	calls     []Call
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

func (f *FakeEngine) On(sqlFragment string, rows ...engine.Row) *FakeEngine {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.responses = append(f.responses, response{match: sqlFragment, rows: rows})
	return f
}

func (f *FakeEngine) OnError(sqlFragment string, err error) *FakeEngine {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.responses = append(f.responses, response{match: sqlFragment, err: err})
	return f
}

func (f *FakeEngine) Execute(_ context.Context, sql string, opts engine.QueryOptions) (*engine.QueryResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, Call{SQL: sql, Options: opts})

	for _, r := range f.responses {
		if !strings.Contains(sql, r.match) {
			continue
		}
		if r.err != nil {
			return nil, r.err
		}
		return &engine.QueryResult{Status: "success", Data: append([]engine.Row(nil), r.rows...)}, nil
	}
	return &engine.QueryResult{Status: "success"}, nil
}

// Calls returns the Execute invocations seen so far.
func (f *FakeEngine) Calls() []Call {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]Call(nil), f.calls...)
}

// CallsMatching returns the invocations whose SQL contains sqlFragment.
func (f *FakeEngine) CallsMatching(sqlFragment string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if strings.Contains(c.SQL, sqlFragment) {
			out = append(out, c)
		}
	}
	return out
}
