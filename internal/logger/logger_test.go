package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		level logrus.Level
	}{
		{"default info", Options{}, logrus.InfoLevel},
		{"explicit warn", Options{Level: "warn"}, logrus.WarnLevel},
		{"invalid falls back", Options{Level: "loud"}, logrus.InfoLevel},
		{"verbose wins", Options{Level: "error", Verbose: true}, logrus.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, New(tt.opts).GetLevel())
		})
	}
}

func TestJSONFormatCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Output: &buf})

	l.WithFields(logrus.Fields{FieldDomain: "example.com", FieldCertID: "cert-123"}).Info("已部署")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "example.com", line[FieldDomain])
	assert.Equal(t, "cert-123", line[FieldCertID])
	assert.Equal(t, "已部署", line["msg"])
}

func TestDiscard(t *testing.T) {
	entry := Discard()
	entry.Info("nothing")
	assert.NotNil(t, entry.Logger)
}
