package topology

import "github.com/eleven-am/strata/internal/domain"

// DerivePlan returns the requested tiers in the fixed order public,
// private-app, private-data, isolated-data. All flags false yields an empty plan.
func DerivePlan(flags domain.SubnetFlags) domain.SubnetPlan {
	var plan domain.SubnetPlan
	if flags.Public {
		plan = append(plan, tierSpec(domain.TierPublic, nil))
	}
	if flags.PrivateApp {
		plan = append(plan, tierSpec(domain.TierPrivateApp, domain.Tags{domain.TagPrivateSubnetType: "App"}))
	}
	if flags.PrivateData {
		plan = append(plan, tierSpec(domain.TierPrivateData, domain.Tags{domain.TagPrivateSubnetType: "Data"}))
	}
	if flags.IsolatedData {
		plan = append(plan, tierSpec(domain.TierIsolated, nil))
	}
	return plan
}

func tierSpec(kind domain.TierKind, tags domain.Tags) domain.SubnetTierSpec {
	return domain.SubnetTierSpec{Kind: kind, Label: kind.String(), Tags: tags}
}

// SelectNATStrategy picks a shared NAT gateway only when a public tier exists
// to host it and a private tier needs it. Isolated tiers never route out.
func SelectNATStrategy(flags domain.SubnetFlags) domain.NATStrategy {
	if flags.Public && (flags.PrivateApp || flags.PrivateData) {
		return domain.NATShared
	}
	return domain.NATNone
}
