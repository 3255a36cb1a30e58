package status

import (
	"context"
	"strings"
)

type Service interface {
	Create(ctx context.Context, name string, code int16) (*Status, error)
	GetByCode(ctx context.Context, code int16) (*Status, error)
	List(ctx context.Context) ([]*Status, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, name string, code int16) (*Status, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 20 {
		return nil, ErrInvalidStatusName
	}
	return s.repo.Create(ctx, name, code)
}

func (s *service) GetByCode(ctx context.Context, code int16) (*Status, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *service) List(ctx context.Context) ([]*Status, error) {
	return s.repo.List(ctx)
}
