package topology

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/eleven-am/strata/internal/domain"
)

func TestCarveSubnets(t *testing.T) {
	tests := []struct {
		name  string
		block string
		count int
		want  []string
	}{
		{"single", "10.0.0.0/16", 1, []string{"10.0.0.0/16"}},
		{"three", "10.0.0.0/16", 3, []string{"10.0.0.0/18", "10.0.64.0/18", "10.0.128.0/18"}},
		{"four", "10.1.0.0/24", 4, []string{"10.1.0.0/26", "10.1.0.64/26", "10.1.0.128/26", "10.1.0.192/26"}},
		{"unmasked", "10.0.3.7/24", 2, []string{"10.0.3.0/25", "10.0.3.128/25"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CarveSubnets(tt.block, tt.count)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d subnets, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("subnet %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestCarveSubnets_NineTiersByZonesDoNotOverlap(t *testing.T) {
	got, err := CarveSubnets("10.129.0.0/16", 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != "10.129.0.0/20" || got[8] != "10.129.128.0/20" {
		t.Errorf("unexpected layout: first %s, last %s", got[0], got[8])
	}

	block := netip.MustParsePrefix("10.129.0.0/16")
	for i, a := range got {
		pa := netip.MustParsePrefix(a)
		if !block.Contains(pa.Addr()) {
			t.Errorf("%s outside %s", a, block)
		}
		for _, b := range got[i+1:] {
			if pa.Overlaps(netip.MustParsePrefix(b)) {
				t.Errorf("%s overlaps %s", a, b)
			}
		}
	}
}

func TestCarveSubnets_ZeroCount(t *testing.T) {
	got, err := CarveSubnets("10.0.0.0/16", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no subnets, got %v", got)
	}
}

func TestCarveSubnets_TooSmall(t *testing.T) {
	_, err := CarveSubnets("10.0.0.0/26", 9)
	if !errors.Is(err, domain.ErrCIDRTooSmall) {
		t.Errorf("expected ErrCIDRTooSmall, got %v", err)
	}
}

func TestCarveSubnets_InvalidBlock(t *testing.T) {
	if _, err := CarveSubnets("not-a-cidr", 3); err == nil {
		t.Error("expected parse error")
	}
	if _, err := CarveSubnets("2001:db8::/56", 3); err == nil {
		t.Error("expected IPv6 block to be rejected")
	}
}

func TestSubnetIndex_TierMajor(t *testing.T) {
	if got := subnetIndex(0, 2, 3); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := subnetIndex(2, 0, 3); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
}

func TestLayout(t *testing.T) {
	plan := DerivePlan(domain.SubnetFlags{Public: true, IsolatedData: true})
	layout, err := Layout("10.0.0.0/16", plan, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layout) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(layout))
	}

	want := [][]string{
		{"10.0.0.0/19", "10.0.32.0/19", "10.0.64.0/19"},
		{"10.0.96.0/19", "10.0.128.0/19", "10.0.160.0/19"},
	}
	for i, tier := range layout {
		for z, cidr := range tier.CIDRs {
			if cidr != want[i][z] {
				t.Errorf("tier %s zone %d: expected %s, got %s", tier.Tier.Label, z, want[i][z], cidr)
			}
		}
	}
	if layout[1].Tier.Kind != domain.TierIsolated {
		t.Errorf("expected isolated tier second, got %s", layout[1].Tier.Kind)
	}
}
