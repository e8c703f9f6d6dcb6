package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/provenant-id/provenant/internal/registry/model"
	"github.com/provenant-id/provenant/internal/registry/repository"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// AuthorityService manages the category → authority assignment table.
// Only the configured root identity may change assignments; reassignment
// never retroactively touches credentials issued under a previous authority.
type AuthorityService struct {
	store  repository.AuthorityStore
	root   ethid.Address
	logger *zap.Logger
}

// NewAuthorityService creates an AuthorityService with the given root identity.
func NewAuthorityService(store repository.AuthorityStore, root ethid.Address, logger *zap.Logger) *AuthorityService {
	return &AuthorityService{store: store, root: root, logger: logger}
}

// Root returns the configured root identity.
func (s *AuthorityService) Root() ethid.Address { return s.root }

// SetAuthority assigns (or reassigns) the single address authorised to issue
// credentials of category. Callable only by the root identity. Assigning the
// zero address clears the category.
func (s *AuthorityService) SetAuthority(ctx context.Context, caller ethid.Address, category ethid.Hash, authority ethid.Address) error {
	if caller != s.root {
		return model.ErrUnauthorized
	}
	if err := s.store.SetAuthority(ctx, category, authority); err != nil {
		return err
	}
	s.logger.Info("authority assigned",
		zap.String("category", category.String()),
		zap.String("authority", authority.String()),
	)
	return nil
}

// GetAuthority returns the current assignee for category, or the zero
// address when the category is unassigned.
func (s *AuthorityService) GetAuthority(ctx context.Context, category ethid.Hash) (ethid.Address, error) {
	return s.store.GetAuthority(ctx, category)
}
