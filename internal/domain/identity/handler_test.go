package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func post(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

const registerBody = `{"username":"frontdesk","email":"desk@clinic.example","password":"correct-horse","password_confirm":"correct-horse"}`

func TestHandler_RegisterAndLogin(t *testing.T) {
	h, e := newTestHandler()

	c, rec := post(e, registerBody)
	if err := h.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must not be serialized")
	}

	c, rec = post(e, `{"username":"frontdesk","password":"correct-horse"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AccessToken == "" {
		t.Error("expected an access token")
	}
}

func TestHandler_Login_Unauthorized(t *testing.T) {
	h, e := newTestHandler()
	c, _ := post(e, `{"username":"ghost","password":"whatever-1"}`)
	err := h.Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_Register_Invalid(t *testing.T) {
	h, e := newTestHandler()
	c, _ := post(e, `{"username":"frontdesk","email":"desk@clinic.example","password":"123","password_confirm":"321"}`)
	err := h.Register(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e := newTestHandler()
	u, err := h.svc.Register(httptest.NewRequest(http.MethodGet, "/", nil).Context(), validRegister())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), u.ID.String(), u.Username, u.Roles))
	rec := httptest.NewRecorder()
	if err := h.Me(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"frontdesk"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	err = h.Me(e.NewContext(anon, httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for anonymous, got %v", err)
	}
}
