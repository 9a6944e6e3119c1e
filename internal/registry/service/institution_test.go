package service_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/auth"
	"github.com/bhulekhchain/bridge/internal/registry/model"
	"github.com/bhulekhchain/bridge/internal/registry/repository"
	"github.com/bhulekhchain/bridge/internal/registry/service"
)

func newInstitutionService(t *testing.T) (*service.InstitutionService, *auth.TokenIssuer) {
	t.Helper()
	issuer := auth.NewTokenIssuer("test-signing-secret", "bhulekh-bridge", 0)
	svc := service.NewInstitutionService(repository.NewMemoryInstitutionRepository(), issuer, zap.NewNop())
	return svc, issuer
}

func TestInstitutionLogin(t *testing.T) {
	svc, issuer := newInstitutionService(t)

	created, err := svc.Create(ctx, model.CreateInstitutionRequest{
		Code:   "SBIN",
		Name:   "State Bank",
		Role:   model.RoleBank,
		Secret: "a-long-enough-secret",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.SecretHash == "a-long-enough-secret" {
		t.Fatal("secret stored in plaintext")
	}

	token, inst, err := svc.Login(ctx, model.LoginRequest{Code: "SBIN", Secret: "a-long-enough-secret"})
	if err != nil {
		t.Fatal(err)
	}
	if inst.Code != "SBIN" {
		t.Errorf("logged in as %s", inst.Code)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != model.RoleBank || claims.Code != "SBIN" {
		t.Errorf("claims: %+v", claims)
	}
}

func TestInstitutionLogin_badCredentials(t *testing.T) {
	svc, _ := newInstitutionService(t)

	if _, err := svc.Create(ctx, model.CreateInstitutionRequest{
		Code:   "SBIN",
		Name:   "State Bank",
		Role:   model.RoleBank,
		Secret: "a-long-enough-secret",
	}); err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Login(ctx, model.LoginRequest{Code: "SBIN", Secret: "wrong"}); !errors.Is(err, service.ErrBadCredentials) {
		t.Errorf("wrong secret: got %v", err)
	}
	if _, _, err := svc.Login(ctx, model.LoginRequest{Code: "HDFC", Secret: "a-long-enough-secret"}); !errors.Is(err, service.ErrBadCredentials) {
		t.Errorf("unknown code: got %v", err)
	}
}

func TestInstitutionCreate_unknownRole(t *testing.T) {
	svc, _ := newInstitutionService(t)

	_, err := svc.Create(ctx, model.CreateInstitutionRequest{
		Code:   "XXXX",
		Name:   "X",
		Role:   "citizen",
		Secret: "a-long-enough-secret",
	})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}
