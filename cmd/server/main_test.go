package main

import (
	"context"
	"testing"

	"tutorly/config"
	"tutorly/internal/domain"
)

func TestProductionRegistersNoStubs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Env = "production"
	cfg.LiberecMpesa.Email, cfg.LiberecMpesa.Password = "m@x.io", "pw"
	cfg.Payment.CallbackSecret = "cb"

	gateways, payouts := buildGateways(context.Background(), cfg)
	if _, ok := gateways["stub"]; ok {
		t.Fatal("stub payment gateway registered in production")
	}
	if _, ok := payouts[domain.PayoutMethodBank]; ok {
		t.Fatal("stub bank payouts registered in production")
	}
	if _, ok := payouts[domain.PayoutMethodMpesa]; !ok {
		t.Fatal("mpesa payouts missing")
	}
}

func TestDevelopmentRegistersStubs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Env = "development"

	gateways, payouts := buildGateways(context.Background(), cfg)
	if _, ok := gateways["stub"]; !ok {
		t.Fatal("stub payment gateway missing")
	}
	if _, ok := payouts[domain.PayoutMethodBank]; !ok {
		t.Fatal("stub bank payouts missing")
	}
	if len(payouts) != 1 {
		t.Fatalf("unconfigured gateways registered: %v", payouts)
	}
}
