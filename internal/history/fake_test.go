package history

import (
	"context"

	"github.com/seatown/sqlbatch/pkg/adapter"
)

// fakeAdapter fails batches listed in fail and accepts everything else.
type fakeAdapter struct {
	fail map[string]error
}

func (f *fakeAdapter) Connect(context.Context, adapter.Config) error { return nil }
func (f *fakeAdapter) Close() error                                  { return nil }
func (f *fakeAdapter) DialectName() string                           { return "fake" }

func (f *fakeAdapter) Exec(_ context.Context, sql string) error {
	return f.fail[sql]
}
