package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx overrides the calls WithTx makes; anything else panics through the
// nil embedded interface.
type fakeTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	commitErrs []error
	txs        []*fakeTx
	beginErr   error
}

func (b *fakeBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	if opts.IsoLevel != pgx.RepeatableRead {
		return nil, errors.New("unexpected isolation level")
	}
	tx := &fakeTx{}
	if n := len(b.txs); n < len(b.commitErrs) {
		tx.commitErr = b.commitErrs[n]
	}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func TestWithTxCommits(t *testing.T) {
	b := &fakeBeginner{}
	calls := 0
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
	require.Len(t, b.txs, 1)
	assert.True(t, b.txs[0].committed)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.Len(t, b.txs, 1)
	assert.False(t, b.txs[0].committed)
	assert.True(t, b.txs[0].rolledBack)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	conflict := &pgconn.PgError{Code: serializationFailure}
	b := &fakeBeginner{commitErrs: []error{conflict, conflict}}
	calls := 0
	require.NoError(t, WithTx(context.Background(), b, func(pgx.Tx) error {
		calls++
		return nil
	}))
	assert.Equal(t, 3, calls)
	assert.True(t, b.txs[2].committed)

	b = &fakeBeginner{commitErrs: []error{conflict, conflict, conflict}}
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return nil })
	assert.True(t, IsSerializationFailure(err))
	assert.Len(t, b.txs, txAttempts)
}

func TestWithTxBeginFailure(t *testing.T) {
	err := WithTx(context.Background(), &fakeBeginner{beginErr: errors.New("no conn")}, func(pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorContains(t, err, "begin tx")
}

func TestIsSerializationFailure(t *testing.T) {
	assert.False(t, IsSerializationFailure(nil))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsSerializationFailure(errors.Join(errors.New("x"), &pgconn.PgError{Code: "40001"})))
}
