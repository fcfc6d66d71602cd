package topology

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"

	"github.com/eleven-am/strata/internal/domain"
)

// minSubnetBits is the smallest subnet EC2 accepts (/28).
const minSubnetBits = 28

// CarveSubnets splits block into count equal, contiguous IPv4 subnets using
// the smallest prefix extension that fits them. Block i is the i-th slot from
// the start of the range, so callers indexing tier-major, zone-minor get the
// same address for the same tier and zone on every run.
func CarveSubnets(block string, count int) ([]string, error) {
	prefix, err := netip.ParsePrefix(block)
	if err != nil {
		return nil, fmt.Errorf("parse address block %q: %w", block, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("address block %q is not IPv4", block)
	}
	if count <= 0 {
		return nil, nil
	}
	prefix = prefix.Masked()

	extra := bits.Len(uint(count - 1))
	newBits := prefix.Bits() + extra
	if newBits > minSubnetBits {
		return nil, fmt.Errorf("%w: %s cannot hold %d subnets of at least /%d", domain.ErrCIDRTooSmall, block, count, minSubnetBits)
	}

	base4 := prefix.Addr().As4()
	base := binary.BigEndian.Uint32(base4[:])
	size := uint32(1) << (32 - newBits)

	subnets := make([]string, count)
	for i := range subnets {
		var raw [4]byte
		binary.BigEndian.PutUint32(raw[:], base+uint32(i)*size)
		subnets[i] = netip.PrefixFrom(netip.AddrFrom4(raw), newBits).String()
	}
	return subnets, nil
}

// subnetIndex is the carving slot of a tier and zone.
func subnetIndex(tier, zone, zones int) int {
	return tier*zones + zone
}

// TierLayout is the address range of every subnet of one tier, zone-indexed.
type TierLayout struct {
	Tier  domain.SubnetTierSpec
	CIDRs []string
}

// Layout carves block for plan across zones without touching the provider.
// Allocate uses the same slots.
func Layout(block string, plan domain.SubnetPlan, zones int) ([]TierLayout, error) {
	blocks, err := CarveSubnets(block, len(plan)*zones)
	if err != nil {
		return nil, err
	}
	layout := make([]TierLayout, len(plan))
	for t, spec := range plan {
		cidrs := make([]string, zones)
		for z := range cidrs {
			cidrs[z] = blocks[subnetIndex(t, z, zones)]
		}
		layout[t] = TierLayout{Tier: spec, CIDRs: cidrs}
	}
	return layout, nil
}
