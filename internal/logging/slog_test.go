package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErr_Nil(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("test message", Err(nil))

	output := buf.String()
	assert.NotContains(t, output, KeyError, "nil error should not add an error attribute")
}

func TestErr_NonNil(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("test message", Err(assert.AnError))

	output := buf.String()
	assert.Contains(t, output, `"error"`)
	assert.Contains(t, output, assert.AnError.Error())
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithOperation(logger, "confirm").Info("handled")

	if !strings.Contains(buf.String(), `"operation":"confirm"`) {
		t.Errorf("expected operation attribute, got %s", buf.String())
	}
}

func TestAttributeHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("query handled",
		Intent("create"),
		ActionID("a1b2c3d4"),
		Status(StatusSuccess),
	)

	output := buf.String()
	assert.Contains(t, output, `"intent":"create"`)
	assert.Contains(t, output, `"action_id":"a1b2c3d4"`)
	assert.Contains(t, output, `"status":"success"`)
}
