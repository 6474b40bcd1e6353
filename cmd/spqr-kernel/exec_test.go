package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/pg-sharding/spqrkernel/pkg/config"
	mock "github.com/pg-sharding/spqrkernel/router/mock/merge"
	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWriteRows(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)

	res := mock.NewMockQueryResult(ctrl)
	res.EXPECT().ColumnCount().Return(2)
	res.EXPECT().ColumnLabel(1).Return("user_id", nil)
	res.EXPECT().ColumnLabel(2).Return("note", nil)
	gomock.InOrder(
		res.EXPECT().Next().Return(true, nil),
		res.EXPECT().Next().Return(true, nil),
		res.EXPECT().Next().Return(false, nil),
	)
	gomock.InOrder(
		res.EXPECT().Value(1).Return(int64(1), nil),
		res.EXPECT().Value(1).Return(int64(2), nil),
	)
	gomock.InOrder(
		res.EXPECT().Value(2).Return([]byte("first"), nil),
		res.EXPECT().Value(2).Return(nil, nil),
	)

	var out bytes.Buffer
	n, err := writeRows(&out, res)
	require.NoError(t, err)
	assert.Equal(2, n)
	assert.Equal("user_id\tnote\n1\tfirst\n2\tNULL\n", out.String())
}

func TestWriteRowsError(t *testing.T) {
	ctrl := gomock.NewController(t)

	res := mock.NewMockQueryResult(ctrl)
	res.EXPECT().ColumnCount().Return(1)
	res.EXPECT().ColumnLabel(1).Return("v", nil)
	res.EXPECT().Next().Return(false, errors.New("shard went away"))

	var out bytes.Buffer
	n, err := writeRows(&out, res)
	assert.EqualError(t, err, "shard went away")
	assert.Equal(t, 0, n)
}

func TestConnectionStrings(t *testing.T) {
	cfg := &config.ShardingCfg{Connections: map[string]string{"ds0": "a", "ds1": "b"}}
	assert.Equal(t,
		map[string]string{"ds0": "a", "ds1": "c", "ds2": "d"},
		connectionStrings(cfg, map[string]string{"ds1": "c", "ds2": "d"}))
}

func TestConnectMissingDataSource(t *testing.T) {
	p := plan.NewScatterPlan(&stmtctx.Statement{SQL: "SELECT 1"}, nil)
	p.Add(&plan.ShardPlan{DataSource: "ds1", Query: "SELECT 1"})

	_, _, err := connect(context.Background(), map[string]string{"ds0": "postgres://localhost/ds0"}, p)
	assert.EqualError(t, err, "no connection string for datasource ds1")
}

func TestInitJaegerTracerDisabled(t *testing.T) {
	closer, err := initJaegerTracer("")
	assert.NoError(t, err)
	assert.Nil(t, closer)
}
