package service

import (
	"context"

	"forum/internal/models"
	"forum/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUser returns the user with id projected for viewer.
func (s *UserService) GetUser(ctx context.Context, viewer Viewer, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ProjectUser(user, viewer.UserID), nil
}
