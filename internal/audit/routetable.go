package audit

import (
	"fmt"
	"net"

	"github.com/yl2chen/cidranger"

	"github.com/eleven-am/strata/internal/domain"
)

type routeEntry struct {
	network net.IPNet
	route   domain.Route
}

func (e routeEntry) Network() net.IPNet {
	return e.network
}

// RouteTable answers longest-prefix lookups over the IPv4 routes of a table.
type RouteTable struct {
	data   *domain.RouteTableData
	ranger cidranger.Ranger
}

func NewRouteTable(data *domain.RouteTableData) (*RouteTable, error) {
	ranger := cidranger.NewPCTrieRanger()
	for _, route := range data.Routes {
		if route.DestinationCIDR == "" {
			continue
		}
		_, network, err := net.ParseCIDR(route.DestinationCIDR)
		if err != nil {
			return nil, fmt.Errorf("route table %s: bad destination %q: %w", data.ID, route.DestinationCIDR, err)
		}
		if err := ranger.Insert(routeEntry{network: *network, route: route}); err != nil {
			return nil, fmt.Errorf("route table %s: %w", data.ID, err)
		}
	}
	return &RouteTable{data: data, ranger: ranger}, nil
}

// Lookup returns the most specific route covering all of dest, or nil when
// traffic to dest has no route.
func (rt *RouteTable) Lookup(dest string) (*domain.Route, error) {
	_, destNet, err := net.ParseCIDR(dest)
	if err != nil {
		return nil, fmt.Errorf("parse destination %q: %w", dest, err)
	}
	destBits, _ := destNet.Mask.Size()

	entries, err := rt.ranger.ContainingNetworks(destNet.IP)
	if err != nil {
		return nil, err
	}

	var best *domain.Route
	longest := -1
	for _, e := range entries {
		entry, ok := e.(routeEntry)
		if !ok {
			continue
		}
		bits, _ := entry.network.Mask.Size()
		if bits <= destBits && bits > longest {
			r := entry.route
			best = &r
			longest = bits
		}
	}
	return best, nil
}

// OnlyLocal reports whether the table routes nothing beyond the VPC itself.
func (rt *RouteTable) OnlyLocal() bool {
	for _, r := range rt.data.Routes {
		if r.TargetType != domain.RouteTargetLocal {
			return false
		}
	}
	return true
}
