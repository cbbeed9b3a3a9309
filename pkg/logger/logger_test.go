package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerFallsBackToGlobal(t *testing.T) {
	entry := GetLogger(context.Background())
	require.NotNil(t, entry)
	assert.Equal(t, L.Logger, entry.Logger)
}

func TestWithLoggerRoundTrip(t *testing.T) {
	base := logrus.NewEntry(logrus.New()).WithField("session_id", "abc")
	ctx := WithLogger(context.Background(), base)

	entry := G(ctx)
	assert.Equal(t, "abc", entry.Data["session_id"])
}

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	assert.Error(t, SetLogLevel("not-a-level"))

	require.NoError(t, SetLogLevel("info"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogFormat("json")
	defer SetLogFormat("fmt")

	L.Info("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)
}
