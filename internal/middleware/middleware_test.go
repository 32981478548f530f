package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tutorly/config"
	"tutorly/internal/auth"
	"tutorly/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() { gin.SetMode(gin.TestMode) }

func TestInMemoryRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := NewInMemoryRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "a"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	if ok, _ := l.Allow(ctx, "a"); ok {
		t.Fatal("third request allowed")
	}
	if ok, _ := l.Allow(ctx, "b"); !ok {
		t.Fatal("other key rejected")
	}
	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "a"); !ok {
		t.Fatal("window did not slide")
	}
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	l := NewRedisRateLimiter(client, 3, time.Hour)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if ok, err := l.Allow(ctx, "user:1"); err != nil || !ok {
			t.Fatalf("request %d: %v %v", i, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "user:1"); ok {
		t.Fatal("fourth request allowed")
	}
}

func TestAuthAndAdminMiddleware(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "k", AccessExpiry: time.Minute, Issuer: "tutorly"}
	r := gin.New()
	r.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetRole(c)})
	})
	r.GET("/admin", AuthRequired(cfg), AdminRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/tutor", AuthRequired(cfg), RequireRole(domain.RoleTutor), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	client, _ := auth.GenerateAccessToken(cfg, 7, domain.RoleClient)
	admin, _ := auth.GenerateAccessToken(cfg, 1, domain.RoleAdmin)

	cases := []struct {
		path, token string
		want        int
	}{
		{"/me", "", http.StatusUnauthorized},
		{"/me", "garbage", http.StatusUnauthorized},
		{"/me", client, http.StatusOK},
		{"/admin", client, http.StatusForbidden},
		{"/admin", admin, http.StatusNoContent},
		{"/tutor", client, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s with %q: got %d want %d", tc.path, tc.token, w.Code, tc.want)
		}
	}
}
