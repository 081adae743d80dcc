package testlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docstream/docstream.go/pkg/logger"
)

func TestHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(NewHandler(&buf))

	log.Info("stream attached", "conn", "c1")
	log.Warn("patch rejected")

	want := "[0] INFO: stream attached conn=c1\n" +
		"[1] WARN: patch rejected\n"
	require.Equal(t, want, buf.String())
}

func TestHandlerSharedIndex(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf)
	base := logger.New(h)
	scoped := logger.New(h.WithGroup("conn").WithAttrs(nil))

	base.Info("one")
	scoped.Info("two")
	base.Info("three")

	want := "[0] INFO: one\n[1] INFO: two\n[2] INFO: three\n"
	require.Equal(t, want, buf.String())
}
