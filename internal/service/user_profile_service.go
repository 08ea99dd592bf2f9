package service

import (
	"context"
	"encoding/json"

	"ai-accelerator-be/internal/dto"
	"ai-accelerator-be/internal/model"
	"ai-accelerator-be/internal/repository/contract"

	"gorm.io/datatypes"
)

type IUserProfileService interface {
	Create(ctx context.Context, profile *dto.UserProfile) error
	Get(ctx context.Context, userID string) (*dto.UserProfile, error)
	GetAll(ctx context.Context) ([]*dto.UserProfile, error)
}

type userProfileService struct {
	repo contract.UserProfileRepository
}

func NewUserProfileService(repo contract.UserProfileRepository) IUserProfileService {
	return &userProfileService{repo: repo}
}

func (s *userProfileService) Create(ctx context.Context, profile *dto.UserProfile) error {
	queries, err := json.Marshal(profile.SampleQueries)
	if err != nil {
		return err
	}
	return s.repo.Create(ctx, &model.UserProfile{
		ID:            profile.ID,
		UserName:      profile.UserName,
		Description:   profile.Description,
		Gender:        string(profile.Gender),
		Role:          profile.Role,
		SampleQueries: datatypes.JSON(queries),
	})
}

// Get returns the stored profile, or the anonymous default when absent.
func (s *userProfileService) Get(ctx context.Context, userID string) (*dto.UserProfile, error) {
	row, err := s.repo.FindOne(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &dto.UserProfile{ID: userID, UserName: "Anonymous", Description: "Anonymous user"}, nil
	}
	return toProfileDTO(row)
}

func (s *userProfileService) GetAll(ctx context.Context) ([]*dto.UserProfile, error) {
	rows, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]*dto.UserProfile, 0, len(rows))
	for _, row := range rows {
		profile, err := toProfileDTO(row)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func toProfileDTO(row *model.UserProfile) (*dto.UserProfile, error) {
	var queries []string
	if len(row.SampleQueries) > 0 {
		if err := json.Unmarshal(row.SampleQueries, &queries); err != nil {
			return nil, err
		}
	}
	return &dto.UserProfile{
		ID:            row.ID,
		UserName:      row.UserName,
		Description:   row.Description,
		Gender:        dto.UserGender(row.Gender),
		SampleQueries: queries,
		Role:          row.Role,
	}, nil
}
