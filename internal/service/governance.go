package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/treasury-governance/internal/domain"
	"github.com/ayo6706/treasury-governance/internal/financeref"
	"github.com/ayo6706/treasury-governance/internal/governance"
	"github.com/ayo6706/treasury-governance/internal/rbac"
	"go.uber.org/zap"
)

// LoadVersions restores every stored governance version, then publishes the sets
// from the policy file in order. The last policy set becomes current.
func (s *ProposalService) LoadVersions(ctx context.Context, sets []governance.ParameterSet, publishedBy string) error {
	stored, err := s.store.ListVersions(ctx)
	if err != nil {
		return fmt.Errorf("list governance versions: %w", err)
	}
	for _, set := range stored {
		if err := s.versions.Publish(set); err != nil {
			return fmt.Errorf("restore governance version %s: %w", set.Version, err)
		}
	}
	for _, set := range sets {
		if err := s.publish(ctx, set, publishedBy); err != nil {
			return err
		}
	}
	zap.L().Info("governance versions loaded",
		zap.Int("stored", len(stored)),
		zap.Int("policy", len(sets)),
		zap.Strings("versions", s.versions.Versions()),
	)
	return nil
}

// PublishVersion makes set the current governance version. Proposals already open
// stay on the version they were opened under.
func (s *ProposalService) PublishVersion(ctx context.Context, actor Actor, set governance.ParameterSet) (governance.ParameterSet, error) {
	if !s.registry.HasSystemCapability(actor.SystemRole, rbac.CanConfigureGovernance) {
		return governance.ParameterSet{}, fmt.Errorf("%s cannot configure governance: %w", actor.SystemRole, domain.ErrInsufficientPermission)
	}
	if err := s.publish(ctx, set, actor.ID); err != nil {
		logRejection("publish version", "", actor, err)
		return governance.ParameterSet{}, err
	}
	zap.L().Info("governance version published",
		zap.String("version", set.Version),
		zap.String("actor_id", actor.ID),
	)
	return set, nil
}

func (s *ProposalService) publish(ctx context.Context, set governance.ParameterSet, publishedBy string) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if existing, err := s.versions.Get(set.Version); err == nil && !existing.Equal(set) {
		return fmt.Errorf("version %s: %w", set.Version, domain.ErrVersionConflict)
	}
	if _, err := s.store.SaveVersion(ctx, set, publishedBy, s.now()); err != nil {
		return err
	}
	return s.versions.Publish(set)
}

// ListVersions returns the retained governance versions in publication order and the
// current one.
func (s *ProposalService) ListVersions() (versions []governance.ParameterSet, current string) {
	if cur, err := s.versions.Current(); err == nil {
		current = cur.Version
	}
	return s.versions.List(), current
}

// Version returns a single retained governance version.
func (s *ProposalService) Version(version string) (governance.ParameterSet, error) {
	return s.versions.Get(version)
}

// Permissions returns the capability profile of a finance role by name.
func (s *ProposalService) Permissions(name string) (rbac.Role, rbac.PermissionSet, error) {
	return s.registry.PermissionsForName(name)
}

// DescribeRef decodes a financial reference and reports its kind.
func (s *ProposalService) DescribeRef(ref string) (string, any, error) {
	return financeref.Describe(ref)
}
