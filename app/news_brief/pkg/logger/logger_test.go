package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetFormatter(&CustomFormatter{})
	l.SetOutput(&buf)

	l.WithField("stage", "Fetching").WithField("run_id", "r1").Warn("搜索失败")

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "搜索失败 run_id=r1 stage=Fetching")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestCustomFormatterTruncatesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetFormatter(&CustomFormatter{})
	l.SetOutput(&buf)

	l.Error("boom")
	assert.Contains(t, buf.String(), "[ERRO]")
}

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "news_brief.log")
	orig := Log
	t.Cleanup(func() { Log = orig })

	require.NoError(t, InitLogger("debug", path))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	Log.Debug("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestInitLoggerBadLevelFallsBackToInfo(t *testing.T) {
	orig := Log
	t.Cleanup(func() { Log = orig })

	require.NoError(t, InitLogger("loud", ""))
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}
