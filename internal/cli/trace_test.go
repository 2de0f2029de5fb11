package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/trace"
	"github.com/roach88/scopeprobe/probe"
)

func seedTraceDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	st, err := trace.Open(path)
	require.NoError(t, err)
	defer st.Close()

	obs := probe.TickObservation{
		Op:         probe.OpResolve,
		OpID:       "op-abc",
		ModelPath:  "user.email",
		Tick:       1,
		At:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Candidates: 1,
		Matched:    1,
		Outcome:    probe.TickMatched,
	}
	require.NoError(t, st.WriteObservation(context.Background(), "session-1", obs))
	return path
}

func TestTraceListsSessions(t *testing.T) {
	path := seedTraceDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "session-1")
}

func TestTraceDumpsSession(t *testing.T) {
	path := seedTraceDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", path, "--session", "session-1"})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "resolve")
	assert.Contains(t, out, "model=user.email")
	assert.Contains(t, out, "outcome=matched")
}

func TestTraceDumpsSessionJSON(t *testing.T) {
	path := seedTraceDB(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", path, "--session", "session-1"})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTraceUnknownSession(t *testing.T) {
	path := seedTraceDB(t)

	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", path, "--session", "nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
