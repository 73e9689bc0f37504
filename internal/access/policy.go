// Package access ranks subscription tiers and answers gating queries for
// posts and products alike.
package access

import "github.com/d60-Lab/sagesync/internal/model"

var ranks = map[model.Tier]int{
	model.TierFree:   0,
	model.TierSeeker: 1,
	model.TierMystic: 2,
	model.TierSage:   3,
	model.TierOracle: 4,
}

// Rank returns the position of tier in the total order. Unknown tiers rank as
// free so that malformed data never grants access.
func Rank(tier model.Tier) int {
	return ranks[tier]
}

// HasAccess reports whether a viewer holding viewerTier may see content that
// requires requiredTier.
func HasAccess(viewerTier, requiredTier model.Tier) bool {
	return Rank(viewerTier) >= Rank(requiredTier)
}

// Policy is the injectable form of the tier rules.
type Policy struct{}

func NewPolicy() Policy { return Policy{} }

func (Policy) Rank(tier model.Tier) int { return Rank(tier) }

func (Policy) HasAccess(viewerTier, requiredTier model.Tier) bool {
	return HasAccess(viewerTier, requiredTier)
}

// Allows gates an item for a possibly absent viewer. A nil viewer ranks as
// free and is therefore refused anything above free.
func (Policy) Allows(viewer *model.User, requiredTier model.Tier) bool {
	if viewer == nil {
		return HasAccess(model.TierFree, requiredTier)
	}
	return HasAccess(viewer.SubscriptionTier, requiredTier)
}
