package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"crashanalytix-console/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(parser *auth.Parser) *gin.Engine {
	r := gin.New()
	r.GET("/whoami", Auth(parser), func(c *gin.Context) {
		principal, ok := MustPrincipal(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"data": "anonymous"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": principal.UserID})
	})
	return r
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	r := newEngine(auth.NewParser(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); body != `{"data":"anonymous"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestAuthEnabled(t *testing.T) {
	const secret = "s3cret"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID: "operator-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
	}

	r := newEngine(auth.NewParser(secret))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusOK && w.Body.String() != `{"data":"operator-1"}` {
				t.Fatalf("body = %s", w.Body.String())
			}
		})
	}
}
