package db

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.EqualError(t, err, "open db: empty dsn")
}

func TestGormConfigTranslatesErrors(t *testing.T) {
	assert.True(t, GormConfig().TranslateError)
}

func TestPingAndClose(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), GormConfig())
	require.NoError(t, err)

	require.NoError(t, Ping(context.Background(), gdb))
	require.NoError(t, Close(gdb))
	assert.ErrorContains(t, Ping(context.Background(), gdb), "ping db")
}
