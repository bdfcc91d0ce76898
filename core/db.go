package core

import (
	"context"
	"time"
)

// Transactor runs fn inside a single storage transaction.
// fn must use the ctx it receives so that repository calls join the transaction.
// If fn returns an error (or panics) every write made through ctx is rolled back.
// Nested calls join the outer transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NowFunc returns the current UTC time. mockable
var NowFunc = func() time.Time { return time.Now().UTC() }
