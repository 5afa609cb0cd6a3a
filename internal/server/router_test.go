package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterHandsRequestToStyleHandler(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://styles.local/theme.scss?file=theme.scss", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 204 status, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if app.recorder.calls != 1 {
		t.Fatalf("expected handler to be called once, got %d", app.recorder.calls)
	}
	if app.recorder.path != "/theme.scss" {
		t.Fatalf("unexpected path: %s", app.recorder.path)
	}

	reqID := resp.Header.Get("X-Request-ID")
	if reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if app.recorder.requestID != reqID {
		t.Fatalf("handler should see the same request id, got %q want %q", app.recorder.requestID, reqID)
	}
}

func TestRouterAcceptsHead(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("HEAD", "http://styles.local/?file=a.scss", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent || app.recorder.calls != 1 {
		t.Fatalf("HEAD should reach the handler, status=%d calls=%d", resp.StatusCode, app.recorder.calls)
	}
}

func TestRouterRejectsOtherMethods(t *testing.T) {
	app := newTestApp(t, 5000)

	resp, err := app.Test(httptest.NewRequest("POST", "http://styles.local/?file=a.scss", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusMethodNotAllowed {
		t.Fatalf("expected 405 status, got %d", resp.StatusCode)
	}
	if app.recorder.calls != 0 {
		t.Fatalf("handler must not be called for POST")
	}
}

func TestRouterDiagnosticsBypassHandler(t *testing.T) {
	app := newTestApp(t, 5000)
	app.Get("/-/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://styles.local/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !bytes.Equal(body, []byte("pong")) {
		t.Fatalf("diagnostics route not reached: %d %s", resp.StatusCode, string(body))
	}
	if app.recorder.calls != 0 {
		t.Fatalf("diagnostics path must bypass the style handler")
	}

	resp, err = app.Test(httptest.NewRequest("GET", "http://styles.local/-/unknown", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown diagnostics path, got %d", resp.StatusCode)
	}
}

func TestRouterRecoversFromPanic(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app, err := NewApp(AppOptions{
		Logger: logger,
		Handler: StyleHandlerFunc(func(fiber.Ctx) error {
			panic("boom")
		}),
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "http://styles.local/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	handler := StyleHandlerFunc(func(c fiber.Ctx) error { return nil })

	cases := []AppOptions{
		{Handler: handler, ListenPort: 5000},
		{Logger: logger, ListenPort: 5000},
		{Logger: logger, Handler: handler},
	}
	for i, opts := range cases {
		if _, err := NewApp(opts); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

type testApp struct {
	*fiber.App
	recorder *handlerRecorder
}

func newTestApp(t *testing.T, port int) *testApp {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := &handlerRecorder{}
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Handler:    recorder,
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	return &testApp{App: app, recorder: recorder}
}

type handlerRecorder struct {
	calls     int
	path      string
	requestID string
}

func (h *handlerRecorder) Handle(c fiber.Ctx) error {
	h.calls++
	h.path = string(c.Request().URI().Path())
	h.requestID = RequestID(c)
	return c.SendStatus(fiber.StatusNoContent)
}
