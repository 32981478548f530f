package auth

import (
	"testing"
	"time"

	"tutorly/config"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "s3cret", AccessExpiry: time.Minute, Issuer: "tutorly"}
	tok, err := GenerateAccessToken(cfg, 42, "TUTOR")
	if err != nil {
		t.Fatal(err)
	}
	c, err := ParseAccessToken(cfg, tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID != 42 || c.Role != "TUTOR" {
		t.Fatalf("claims %+v", c)
	}
}

func TestAccessTokenRejected(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "s3cret", AccessExpiry: time.Minute, Issuer: "tutorly"}
	tok, _ := GenerateAccessToken(cfg, 42, "TUTOR")

	other := *cfg
	other.AccessSecret = "different"
	if _, err := ParseAccessToken(&other, tok); err != ErrInvalidToken {
		t.Fatalf("wrong secret: %v", err)
	}
	foreign := *cfg
	foreign.Issuer = "someone-else"
	if _, err := ParseAccessToken(&foreign, tok); err != ErrInvalidToken {
		t.Fatalf("wrong issuer: %v", err)
	}
	expired := *cfg
	expired.AccessExpiry = -time.Minute
	old, _ := GenerateAccessToken(&expired, 42, "TUTOR")
	if _, err := ParseAccessToken(cfg, old); err != ErrInvalidToken {
		t.Fatalf("expired: %v", err)
	}
}
