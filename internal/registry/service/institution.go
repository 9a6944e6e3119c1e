package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bhulekhchain/bridge/internal/auth"
	"github.com/bhulekhchain/bridge/internal/registry/model"
)

// ErrBadCredentials is returned for login failures. The same error covers
// unknown codes and wrong secrets so callers cannot probe for valid codes.
var ErrBadCredentials = errors.New("invalid credentials")

// InstitutionRepo is the persistence surface for InstitutionService.
type InstitutionRepo interface {
	Create(ctx context.Context, inst *model.Institution) error
	GetByCode(ctx context.Context, code string) (*model.Institution, error)
	List(ctx context.Context) ([]*model.Institution, error)
}

// InstitutionService onboards API principals and authenticates them into
// role-scoped session tokens.
type InstitutionService struct {
	repo   InstitutionRepo
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewInstitutionService creates an InstitutionService.
func NewInstitutionService(repo InstitutionRepo, tokens *auth.TokenIssuer, logger *zap.Logger) *InstitutionService {
	return &InstitutionService{repo: repo, tokens: tokens, logger: logger}
}

// Create onboards a new institution. Admin-only at the handler layer.
func (s *InstitutionService) Create(ctx context.Context, req model.CreateInstitutionRequest) (*model.Institution, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	inst := &model.Institution{
		Code:       req.Code,
		Name:       req.Name,
		Role:       req.Role,
		MspID:      req.MspID,
		SecretHash: string(hash),
	}
	if err := s.repo.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("create institution: %w", err)
	}

	s.logger.Info("institution onboarded",
		zap.String("code", inst.Code),
		zap.String("role", string(inst.Role)),
	)
	return inst, nil
}

// Login verifies the code + secret and returns a signed session token.
func (s *InstitutionService) Login(ctx context.Context, req model.LoginRequest) (string, *model.Institution, error) {
	inst, err := s.repo.GetByCode(ctx, req.Code)
	if err != nil {
		return "", nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(inst.SecretHash), []byte(req.Secret)); err != nil {
		return "", nil, ErrBadCredentials
	}

	token, err := s.tokens.Issue(inst)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, inst, nil
}

// List returns all institutions.
func (s *InstitutionService) List(ctx context.Context) ([]*model.Institution, error) {
	return s.repo.List(ctx)
}
