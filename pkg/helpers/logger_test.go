package helpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, logrus.DebugLevel, newLogger(&buf, "app", "development", "").GetLevel())
	assert.Equal(t, logrus.InfoLevel, newLogger(&buf, "app", "production", "").GetLevel())
	assert.Equal(t, logrus.WarnLevel, newLogger(&buf, "app", "production", "warn").GetLevel())
	assert.Equal(t, logrus.InfoLevel, newLogger(&buf, "app", "production", "loud").GetLevel())
}

func TestNewLogger_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "app", "production", "")
	buf.Reset()

	logger.WithField("user_id", "u1").Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "u1", line["user_id"])
}

func TestLogError(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LogError(logger, "request failed", errors.New("boom"), logrus.Fields{"route": "/api/tasks"})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "boom", hook.LastEntry().Data[logrus.ErrorKey])
	assert.Equal(t, "/api/tasks", hook.LastEntry().Data["route"])

	assert.NotPanics(t, func() { LogError(nil, "x", nil, nil) })
}
