package model

// Tier 订阅等级；排序规则见 internal/access
type Tier string

const (
	TierFree   Tier = "free"
	TierSeeker Tier = "seeker"
	TierMystic Tier = "mystic"
	TierSage   Tier = "sage"
	TierOracle Tier = "oracle"
)

// Tiers lists the known tiers from lowest to highest.
var Tiers = []Tier{TierFree, TierSeeker, TierMystic, TierSage, TierOracle}

func (t Tier) String() string { return string(t) }
