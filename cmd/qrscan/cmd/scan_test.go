package cmd

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func TestScanCommand_Text(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteQRGIF(t, dir, "capture.gif", []string{"", "TICKET", "TICKET", "TICKET"}, 150*time.Millisecond)

	out, _, err := executeCommand(t, "scan", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1, out)
	assert.Contains(t, lines[0], "TICKET [qr_code,")
}

func TestScanCommand_JSON(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteQRGIF(t, dir, "capture.gif", []string{"FIRST", "FIRST", "", "", "", "", "", "", "", "", "", "", "SECOND", "SECOND"}, 150*time.Millisecond)

	out, _, err := executeCommand(t, "scan", path, "--format", "json")
	require.NoError(t, err)

	var summary struct {
		File    string `json:"file"`
		ScanID  string `json:"scan_id"`
		Frames  int    `json:"frames"`
		Results []struct {
			AtMs    int64          `json:"at_ms"`
			Mode    string         `json:"mode"`
			Outcome map[string]any `json:"outcome"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, path, summary.File)
	assert.NotEmpty(t, summary.ScanID)
	assert.Equal(t, 14, summary.Frames)

	var texts []string
	for _, r := range summary.Results {
		texts = append(texts, r.Outcome["text"].(string))
	}
	assert.Equal(t, []string{"FIRST", "SECOND"}, texts)
}

func TestScanCommand_MaxResults(t *testing.T) {
	dir := isolate(t)
	frames := make([]string, 40)
	for i := range frames {
		frames[i] = "LOOP"
	}
	path := testutil.WriteQRGIF(t, dir, "long.gif", frames, 100*time.Millisecond)

	start := time.Now()
	out, _, err := executeCommand(t, "scan", path, "--max-results", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "LOOP")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestScanCommand_NoCode(t *testing.T) {
	dir := isolate(t)
	path := testutil.WriteQRGIF(t, dir, "blank.gif", []string{"", ""}, 50*time.Millisecond)

	out, _, err := executeCommand(t, "scan", path)
	require.NoError(t, err)
	assert.Equal(t, "no code found\n", out)
}

func TestScanCommand_Errors(t *testing.T) {
	dir := isolate(t)

	_, _, err := executeCommand(t, "scan")
	require.Error(t, err)

	_, _, err = executeCommand(t, "scan", dir+"/missing.gif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open animation")
}
