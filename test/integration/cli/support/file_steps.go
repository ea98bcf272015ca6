package support

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// frameDelay is the display time of each generated animation frame.
const frameDelay = 150 * time.Millisecond

func (tc *TestContext) path(name string) string {
	return filepath.Join(tc.TempDir, name)
}

func (tc *TestContext) aQRCodeImageContaining(name, text string) error {
	img, err := testutil.GenerateQR(testutil.DefaultQRConfig(text))
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	return tc.savePNG(name, img)
}

func (tc *TestContext) aQRCodeInTheCornerOfImage(text, name string, width, height int) error {
	sym, err := testutil.GenerateQR(testutil.DefaultQRConfig(text))
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	b := sym.Bounds()
	return tc.savePNG(name, testutil.Embed(sym, width, height, width-b.Dx()-16, height-b.Dy()-16))
}

func (tc *TestContext) aBlankImage(name string) error {
	return tc.savePNG(name, testutil.Blank(300, 300, color.White))
}

func (tc *TestContext) savePNG(name string, img image.Image) (err error) {
	if err := testutil.EnsureDir(filepath.Dir(tc.path(name))); err != nil {
		return err
	}
	f, err := os.Create(tc.path(name))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}

func (tc *TestContext) aFileContaining(name, content string) error {
	return os.WriteFile(tc.path(name), []byte(content), 0o600)
}

// anAnimationWithFrames writes a GIF; frames are separated by "|" and an
// empty frame is blank.
func (tc *TestContext) anAnimationWithFrames(name, frames string) error {
	f, err := os.Create(tc.path(name))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return testutil.EncodeQRGIF(f, strings.Split(frames, "|"), frameDelay)
}

func (tc *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(tc.path(name)); err != nil {
		return fmt.Errorf("expected file %s to exist: %w", name, err)
	}
	return nil
}

func (tc *TestContext) theFileShouldContain(name, content string) error {
	data, err := os.ReadFile(tc.path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), content) {
		return fmt.Errorf("file %s does not contain %q:\n%s", name, content, data)
	}
	return nil
}

// RegisterFileSteps registers the steps that prepare input files.
func (tc *TestContext) RegisterFileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a QR code image "([^"]*)" containing "([^"]*)"$`, tc.aQRCodeImageContaining)
	sc.Step(`^a QR code "([^"]*)" in the corner of a (\d+)x(\d+) image "([^"]*)"$`,
		func(text string, w, h int, name string) error { return tc.aQRCodeInTheCornerOfImage(text, name, w, h) })
	sc.Step(`^a blank image "([^"]*)"$`, tc.aBlankImage)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, tc.aFileContaining)
	sc.Step(`^an animation "([^"]*)" with frames "([^"]*)"$`, tc.anAnimationWithFrames)
	sc.Step(`^the file "([^"]*)" should exist$`, tc.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, tc.theFileShouldContain)
}
