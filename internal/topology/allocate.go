package topology

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/strata/internal/domain"
)

const defaultRouteCIDR = "0.0.0.0/0"

// AllocateInput is everything the allocator needs to realize a network.
type AllocateInput struct {
	CIDR string
	Plan domain.SubnetPlan
	NAT  domain.NATStrategy
}

// Allocator creates the VPC, its subnets and their route tables.
type Allocator struct {
	client      domain.NetworkClient
	naming      domain.Naming
	concurrency int
	log         *logrus.Entry
}

func NewAllocator(client domain.NetworkClient, naming domain.Naming, concurrency int, log *logrus.Entry) *Allocator {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Allocator{
		client:      client,
		naming:      naming,
		concurrency: concurrency,
		log:         log.WithField("component", "allocate"),
	}
}

// Allocate ensures the network described by in. Subnets are laid out
// tier-major, zone-minor: Tiers[t].Subnets[z] holds the z-th zone of the
// t-th planned tier, and RouteTables follows the same order.
func (a *Allocator) Allocate(ctx context.Context, in AllocateInput) (*domain.Network, error) {
	zones, err := a.client.AvailabilityZones(ctx, domain.ZoneCount)
	if err != nil {
		return nil, err
	}

	blocks, err := CarveSubnets(in.CIDR, len(in.Plan)*len(zones))
	if err != nil {
		return nil, err
	}

	vpc, err := a.client.EnsureVPC(ctx, domain.VPCRequest{
		LogicalID: a.naming.Resource("vpc"),
		CIDR:      in.CIDR,
		Tags:      a.naming.BaseTags(),
	})
	if err != nil {
		return nil, err
	}
	a.log.WithField("vpc", vpc.ID).Info("vpc ready")

	network := &domain.Network{
		ID:                     vpc.ID,
		CIDR:                   vpc.CIDRBlock,
		Zones:                  zones,
		MainRouteTableID:       vpc.MainRouteTableID,
		DefaultSecurityGroupID: vpc.DefaultSecurityGroupID,
		NATStrategy:            in.NAT,
		Tiers:                  make([]domain.TierAllocation, len(in.Plan)),
		RouteTables:            make([]domain.RouteTable, len(in.Plan)*len(zones)),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	if in.Plan.Has(domain.TierPublic) {
		g.Go(func() error {
			igwID, err := a.client.EnsureInternetGateway(gCtx, domain.InternetGatewayRequest{
				LogicalID: a.naming.Resource("igw"),
				VPCID:     vpc.ID,
				Tags:      a.naming.Tagged("igw"),
			})
			if err != nil {
				return err
			}
			network.InternetGatewayID = igwID
			return nil
		})
	}

	for t, spec := range in.Plan {
		network.Tiers[t] = domain.TierAllocation{Spec: spec, Subnets: make([]domain.Subnet, len(zones))}
		for z, zone := range zones {
			idx := subnetIndex(t, z, len(zones))
			g.Go(func() error {
				subnet, table, err := a.allocateSubnet(gCtx, vpc.ID, spec, zone, z, blocks[idx])
				if err != nil {
					return err
				}
				network.Tiers[t].Subnets[z] = subnet
				network.RouteTables[idx] = table
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if in.NAT == domain.NATShared {
		public, ok := network.Tier(domain.TierPublic)
		if !ok || len(public.Subnets) == 0 {
			return nil, fmt.Errorf("shared nat gateway requires a public subnet")
		}
		natID, err := a.client.EnsureNATGateway(ctx, domain.NATGatewayRequest{
			LogicalID: a.naming.Resource("nat"),
			SubnetID:  public.Subnets[0].ID,
			Tags:      a.naming.Tagged("nat"),
		})
		if err != nil {
			return nil, err
		}
		network.NATGatewayID = natID
		a.log.WithField("nat", natID).Info("shared nat gateway ready")
	}

	if err := a.ensureDefaultRoutes(ctx, network); err != nil {
		return nil, err
	}
	return network, nil
}

func (a *Allocator) allocateSubnet(ctx context.Context, vpcID string, spec domain.SubnetTierSpec, zone string, zoneIdx int, cidr string) (domain.Subnet, domain.RouteTable, error) {
	ordinal := strconv.Itoa(zoneIdx + 1)
	class := spec.Kind.Class()
	tags := a.naming.BaseTags().With(spec.Tags).With(domain.Tags{domain.TagSubnetType: class.TagValue()})

	subnetName := a.naming.Resource(spec.Label, ordinal)
	data, err := a.client.EnsureSubnet(ctx, domain.SubnetRequest{
		LogicalID:   subnetName,
		VPCID:       vpcID,
		CIDR:        cidr,
		Zone:        zone,
		MapPublicIP: spec.Kind == domain.TierPublic,
		Tags:        tags.With(domain.Tags{domain.TagName: subnetName}),
	})
	if err != nil {
		return domain.Subnet{}, domain.RouteTable{}, err
	}

	tableName := a.naming.Resource(spec.Label, ordinal, "rt")
	rtID, err := a.client.EnsureRouteTable(ctx, domain.RouteTableRequest{
		LogicalID: tableName,
		VPCID:     vpcID,
		SubnetID:  data.ID,
		Tags:      tags.With(domain.Tags{domain.TagName: tableName}),
	})
	if err != nil {
		return domain.Subnet{}, domain.RouteTable{}, err
	}

	a.log.WithFields(logrus.Fields{
		"tier":   spec.Label,
		"zone":   zone,
		"subnet": data.ID,
		"table":  rtID,
	}).Debug("subnet ready")

	subnet := domain.Subnet{ID: data.ID, CIDR: cidr, Zone: zone, Tier: spec.Kind}
	table := domain.RouteTable{ID: rtID, Class: class, Tier: spec.Kind, Zone: zone, SubnetID: data.ID}
	return subnet, table, nil
}

// ensureDefaultRoutes points public tables at the internet gateway and
// private tables at the shared NAT gateway. Isolated tables get nothing.
func (a *Allocator) ensureDefaultRoutes(ctx context.Context, network *domain.Network) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, rt := range network.RouteTables {
		var target domain.RouteTarget
		switch {
		case rt.Class == domain.RouteTableClassPublic && network.InternetGatewayID != "":
			target = domain.RouteTarget{Type: domain.RouteTargetInternetGateway, ID: network.InternetGatewayID}
		case rt.Class == domain.RouteTableClassPrivate && network.NATGatewayID != "":
			target = domain.RouteTarget{Type: domain.RouteTargetNATGateway, ID: network.NATGatewayID}
		default:
			continue
		}
		g.Go(func() error {
			return a.client.EnsureRoute(gCtx, domain.RouteRequest{
				RouteTableID:    rt.ID,
				DestinationCIDR: defaultRouteCIDR,
				Target:          target,
			})
		})
	}
	return g.Wait()
}
