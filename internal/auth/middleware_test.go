package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func protectedRouter(t *testing.T, m *Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/view", RequireToken(m), RequireRole(RoleViewer), func(c *gin.Context) {
		op, err := Operator(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"operator": op})
	})
	r.POST("/admin", RequireToken(m), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireToken_MissingBearer(t *testing.T) {
	r := protectedRouter(t, testManager(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/view", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireToken_GarbageToken(t *testing.T) {
	r := protectedRouter(t, testManager(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/view", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireRole_ViewerDeniedAdminRoute(t *testing.T) {
	m := testManager(t)
	r := protectedRouter(t, m)

	tok, err := m.Issue(time.Now(), "bob", RoleViewer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireRole_AdminPassesEveryCheck(t *testing.T) {
	m := testManager(t)
	r := protectedRouter(t, m)

	tok, err := m.Issue(time.Now(), "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/view", http.StatusOK},
		{http.MethodPost, "/admin", http.StatusNoContent},
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, w.Code)
		}
	}
}

func TestRequireToken_InjectsOperator(t *testing.T) {
	m := testManager(t)
	r := protectedRouter(t, m)

	tok, err := m.Issue(time.Now(), "bob", RoleViewer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/view", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != `{"operator":"bob"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
