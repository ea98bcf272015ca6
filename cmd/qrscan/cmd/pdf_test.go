package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

func TestPDFCommand_Errors(t *testing.T) {
	dir := isolate(t)
	fake := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(fake, []byte("not a pdf"), 0o600))

	_, _, err := executeCommand(t, "pdf")
	require.Error(t, err)

	_, _, err = executeCommand(t, "pdf", fake)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process")

	_, _, err = executeCommand(t, "pdf", filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
}

func TestPDFCommand_Flags(t *testing.T) {
	cmd := newPDFCommand(&app{})
	for _, name := range []string{"pages", "password", "owner-password", "workers", "min-image-edge", "try-harder", "detector"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "21", cmd.Flags().Lookup("min-image-edge").DefValue)
}

func TestWriteDocument(t *testing.T) {
	doc := &pdf.DocumentResult{
		Filename:   "invoice.pdf",
		TotalPages: 3,
		Pages: []pdf.PageResult{
			{PageNumber: 1, Images: []pdf.ImageResult{
				{ImageIndex: 0, Outcome: pipeline.Outcome{Err: barcode.NewDecodeError(barcode.ReasonNotFound, nil)}},
				{ImageIndex: 1, Outcome: pipeline.Outcome{Result: &pipeline.Result{Text: "PAY-42", Format: barcode.FormatQR, Stage: pipeline.StageFull}}},
			}},
		},
	}

	var buf bytes.Buffer
	writeDocument(&buf, doc)
	assert.Equal(t, "invoice.pdf (3 pages)\n  page 1 image 1: PAY-42 [qr_code, full]\n", buf.String())

	buf.Reset()
	writeDocument(&buf, &pdf.DocumentResult{Filename: "empty.pdf", TotalPages: 1})
	assert.Equal(t, "empty.pdf (1 pages)\n  no codes found\n", buf.String())
}
