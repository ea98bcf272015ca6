package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// iRunCommand executes a command line.
func (tc *TestContext) iRunCommand(line string) error {
	tc.RunCommand(line)
	return nil
}

// theCommandShouldSucceed verifies the command returned no error.
func (tc *TestContext) theCommandShouldSucceed() error {
	if tc.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nOutput: %s\nStderr: %s",
			tc.LastCommand, tc.LastError, tc.LastOutput, tc.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command returned an error.
func (tc *TestContext) theCommandShouldFail() error {
	if tc.LastError == nil {
		return fmt.Errorf("command %q succeeded when it should have failed\nOutput: %s", tc.LastCommand, tc.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (tc *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.LastOutput, expected) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expected, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(tc.LastOutput, unexpected) {
		return fmt.Errorf("output contains '%s'\nActual output: %s", unexpected, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldContainTimes(expected string, n int) error {
	if got := strings.Count(tc.LastOutput, expected); got != n {
		return fmt.Errorf("output contains '%s' %d times, want %d\nActual output: %s", expected, got, n, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) parseJSON() (any, error) {
	var v any
	if err := json.Unmarshal([]byte(tc.LastOutput), &v); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, tc.LastOutput)
	}
	return v, nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (tc *TestContext) theOutputShouldBeValidJSON() error {
	_, err := tc.parseJSON()
	return err
}

// theJSONFieldShouldBe checks that some object in the document has field
// key with the given string value.
func (tc *TestContext) theJSONFieldShouldBe(key, value string) error {
	v, err := tc.parseJSON()
	if err != nil {
		return err
	}
	if !hasField(v, key, value) {
		return fmt.Errorf("no %q field with value %q in JSON output:\n%s", key, value, tc.LastOutput)
	}
	return nil
}

func hasField(v any, key, value string) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if k == key && fmt.Sprint(child) == value {
				return true
			}
			if hasField(child, key, value) {
				return true
			}
		}
	case []any:
		for _, child := range t {
			if hasField(child, key, value) {
				return true
			}
		}
	}
	return false
}

// theErrorShouldMention checks the returned error and stderr.
func (tc *TestContext) theErrorShouldMention(text string) error {
	if tc.LastError == nil {
		return errors.New("command did not fail")
	}
	if !strings.Contains(tc.LastError.Error(), text) && !strings.Contains(tc.LastStderr, text) {
		return fmt.Errorf("error does not mention '%s': %v", text, tc.LastError)
	}
	return nil
}

func (tc *TestContext) theEnvironmentVariableIsSetTo(key, value string) error {
	return tc.setEnv(key, value)
}

// RegisterCommonSteps registers command execution and output steps.
func (tc *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, tc.iRunCommand)
	sc.Step(`^the command should succeed$`, tc.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, tc.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^the output should contain "([^"]*)" exactly (\d+) times?$`, tc.theOutputShouldContainTimes)
	sc.Step(`^the output should be valid JSON$`, tc.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, tc.theJSONFieldShouldBe)

	sc.Step(`^the error should mention "([^"]*)"$`, tc.theErrorShouldMention)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, tc.theEnvironmentVariableIsSetTo)
}
