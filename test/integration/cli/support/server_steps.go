package support

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/internal/server"
)

func (tc *TestContext) theServerIsRunning() error {
	return tc.startServer(server.DefaultConfig())
}

func (tc *TestContext) theServerIsRunningWithCORSOrigin(origin string) error {
	cfg := server.DefaultConfig()
	cfg.CORSOrigin = origin
	return tc.startServer(cfg)
}

func (tc *TestContext) theServerIsRunningWithRequestLimit(perMinute int) error {
	cfg := server.DefaultConfig()
	cfg.RequestsPerMinute = perMinute
	return tc.startServer(cfg)
}

func (tc *TestContext) startServer(cfg server.Config) error {
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	tc.Server = srv
	tc.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPServer.Client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastHTTPStatusCode = resp.StatusCode
	tc.LastHTTPResponse = string(body)
	tc.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		tc.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (tc *TestContext) iGET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.HTTPServer.URL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) iMakeAnOPTIONSRequestTo(path string) error {
	req, err := http.NewRequest(http.MethodOptions, tc.HTTPServer.URL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

// iPOSTFileTo sends the file as the raw request body.
func (tc *TestContext) iPOSTFileTo(name, path string) error {
	data, err := os.ReadFile(tc.path(name))
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, tc.HTTPServer.URL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) theResponseStatusShouldBe(status int) error {
	if tc.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.LastHTTPStatusCode, tc.LastHTTPResponse)
	}
	return nil
}

func (tc *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(tc.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nActual response: %s", text, tc.LastHTTPResponse)
	}
	return nil
}

func (tc *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := tc.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

// RegisterServerSteps registers the HTTP API steps.
func (tc *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, tc.theServerIsRunning)
	sc.Step(`^the server is running with CORS origin "([^"]*)"$`, tc.theServerIsRunningWithCORSOrigin)
	sc.Step(`^the server is running with a limit of (\d+) requests? per minute$`, tc.theServerIsRunningWithRequestLimit)
	sc.Step(`^I GET "([^"]*)"$`, tc.iGET)
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, tc.iMakeAnOPTIONSRequestTo)
	sc.Step(`^I POST "([^"]*)" to "([^"]*)"$`, tc.iPOSTFileTo)
	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, tc.theResponseHeaderShouldBe)
}
