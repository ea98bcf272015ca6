package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/test/integration/cli/support"
)

// featuresDir is absolute because scenarios chdir into their temp dirs.
var featuresDir string

// initializeScenario runs once per scenario, so every scenario gets a fresh
// sandbox.
func initializeScenario(sc *godog.ScenarioContext) {
	tc, err := support.NewTestContext()
	if err != nil {
		panic(err)
	}

	tc.RegisterCommonSteps(sc)
	tc.RegisterFileSteps(sc)
	tc.RegisterServerSteps(sc)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		return ctx, tc.Cleanup()
	})
}

// TestFeatures runs every scenario under features/ in-process. GODOG_TAGS
// narrows the run, e.g. GODOG_TAGS=@server.
func TestFeatures(t *testing.T) {
	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}

	suite := godog.TestSuite{
		Name:                "qrscan",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   format,
			Tags:     os.Getenv("GODOG_TAGS"),
			Paths:    []string{featuresDir},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature suite failed")
	}
}

func TestMain(m *testing.M) {
	dir, err := filepath.Abs("features")
	if err != nil {
		panic(err)
	}
	featuresDir = dir
	os.Exit(m.Run())
}
