package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fundwatch/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_MissingFile(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "hold_funds.json"), logrus.New())
	_, err := sink.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileSink_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hold_funds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileSink(path, logrus.New()).Load(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFileSink_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "hold_funds.json")
	sink := NewFileSink(path, logrus.New())

	in := []models.Holding{
		{Code: "000311", Name: "景顺长城沪深300", Cost: decimal.RequireFromString("1.2345"), Share: decimal.RequireFromString("1000")},
		{Code: "110022", Name: "易方达消费行业", Cost: decimal.RequireFromString("3.5"), Share: decimal.RequireFromString("88.8")},
	}
	require.NoError(t, sink.Save(ctx, in))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := sink.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "000311", loaded[0].Code)
	assert.Equal(t, "110022", loaded[1].Code)

	require.NoError(t, sink.Save(ctx, loaded))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileSink_EmptyListIsArray(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hold_funds.json")
	sink := NewFileSink(path, logrus.New())

	require.NoError(t, sink.Save(ctx, nil))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	loaded, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}
