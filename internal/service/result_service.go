package service

import (
	"context"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"
)

// ResultService serves result reads gated by the hierarchy resolver.
type ResultService struct {
	Results   ResultStore
	Hierarchy *HierarchyService
}

func NewResultService(results ResultStore, hierarchy *HierarchyService) *ResultService {
	return &ResultService{Results: results, Hierarchy: hierarchy}
}

// ListResults returns every result the requester may see. surveyID 0 means all surveys.
func (s *ResultService) ListResults(ctx context.Context, requesterID, surveyID uint) ([]model.TestResult, error) {
	ids, err := s.Hierarchy.VisibleUserIDs(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.Results.ListForUsers(ctx, surveyID, ids)
}

func (s *ResultService) GetResult(ctx context.Context, requesterID uint, resultID string) (*model.TestResult, error) {
	result, err := s.Results.FindByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requesterID, result.UserID); err != nil {
		return nil, err
	}
	return result, nil
}

// AuthorizeOwner fails with ErrPermissionDenied unless requester may view ownerID's data.
func (s *ResultService) AuthorizeOwner(ctx context.Context, requesterID, ownerID uint) error {
	return s.authorize(ctx, requesterID, ownerID)
}

func (s *ResultService) authorize(ctx context.Context, requesterID, ownerID uint) error {
	ok, err := s.Hierarchy.CanView(ctx, requesterID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrPermissionDenied
	}
	return nil
}
