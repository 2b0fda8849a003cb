package governance

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayo6706/treasury-governance/internal/domain"
)

// ElectorateSource resolves the eligible voters of a project and their weights.
// Proposals never carry a caller-chosen electorate; the weights always come from
// a source the operator controls.
type ElectorateSource interface {
	Electorate(ctx context.Context, projectID string) (map[string]int64, error)
}

// StaticElectorates is a fixed project -> actor -> weight table, loaded from the
// policy file.
type StaticElectorates map[string]map[string]int64

// Electorate returns a copy of the project's weights. An unknown project is an
// invalid proposal, not a missing resource.
func (s StaticElectorates) Electorate(_ context.Context, projectID string) (map[string]int64, error) {
	weights, ok := s[strings.TrimSpace(projectID)]
	if !ok || len(weights) == 0 {
		return nil, fmt.Errorf("%w: no electorate configured for project %q", domain.ErrInvalidProposal, projectID)
	}
	out := make(map[string]int64, len(weights))
	for actor, w := range weights {
		out[actor] = w
	}
	return out, nil
}

// Validate rejects empty projects, blank voter ids and non-positive weights.
func (s StaticElectorates) Validate() error {
	for project, weights := range s {
		if strings.TrimSpace(project) == "" {
			return fmt.Errorf("%w: blank project id in electorate table", domain.ErrInvalidParameters)
		}
		if len(weights) == 0 {
			return fmt.Errorf("%w: project %q has no voters", domain.ErrInvalidParameters, project)
		}
		for actor, w := range weights {
			if strings.TrimSpace(actor) == "" {
				return fmt.Errorf("%w: project %q has a blank voter id", domain.ErrInvalidParameters, project)
			}
			if w <= 0 {
				return fmt.Errorf("%w: project %q voter %q has weight %d", domain.ErrInvalidParameters, project, actor, w)
			}
		}
	}
	return nil
}
