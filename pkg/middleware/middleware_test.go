package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Astemirdum/library-circulation/pkg/middleware"
)

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	tokens := map[string]string{"desk-1": "staff-1", "desk-2": "staff-2"}

	var tests = []struct {
		name         string
		header       string
		expectedCode int
		expectedBody string
	}{
		{name: "ok", header: "Bearer desk-2", expectedCode: http.StatusOK, expectedBody: "staff-2"},
		{name: "err. no header", expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"No Authorization Header"}`},
		{name: "err. basic auth", header: "Basic ZGVzay0x", expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"Invalid Authorization Header"}`},
		{name: "err. unknown token", header: "Bearer desk-3", expectedCode: http.StatusUnauthorized, expectedBody: `{"message":"invalid Token"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			e.GET("/whoami", func(c echo.Context) error {
				return c.String(http.StatusOK, middleware.StaffID(c))
			}, middleware.TokenAuth(tokens))

			r := httptest.NewRequest(http.MethodGet, "/whoami", http.NoBody)
			if tt.header != "" {
				r.Header.Set(middleware.AuthorizationHeader, tt.header)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestStaffID_Public(t *testing.T) {
	t.Parallel()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), httptest.NewRecorder())
	require.Empty(t, middleware.StaffID(c))
}
