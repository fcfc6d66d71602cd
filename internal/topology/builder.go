package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/domain"
	"github.com/eleven-am/strata/internal/future"
)

// Request is one provisioning run.
type Request struct {
	CIDR               string
	Flags              domain.SubnetFlags
	InterfaceEndpoints []string
	Peer               *domain.PeerNetwork
}

// Builder provisions a tiered network, its endpoints and its peering as a
// graph of futures. Independent steps run concurrently; a step waits only on
// the values it consumes.
type Builder struct {
	accounts    domain.AccountContext
	naming      domain.Naming
	region      string
	concurrency int
	peeringOpts []PeeringOption
	log         *logrus.Entry
}

type BuilderOption func(*Builder)

func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) { b.concurrency = n }
}

func WithPeeringOptions(opts ...PeeringOption) BuilderOption {
	return func(b *Builder) { b.peeringOpts = append(b.peeringOpts, opts...) }
}

func NewBuilder(accounts domain.AccountContext, naming domain.Naming, region string, log *logrus.Entry, opts ...BuilderOption) *Builder {
	b := &Builder{
		accounts:    accounts,
		naming:      naming,
		region:      region,
		concurrency: 10,
		log:         log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the whole graph. Fatal errors carry the stage that failed and
// reject every step that depends on it; endpoint failures are joined to the
// result after everything else settled. Nothing is rolled back: the returned
// Topology holds whatever was built, and a re-run converges.
func (b *Builder) Build(ctx context.Context, req Request) (*Topology, error) {
	client := b.accounts.Local()
	plan := DerivePlan(req.Flags)
	nat := SelectNATStrategy(req.Flags)

	b.log.WithFields(logrus.Fields{
		"prefix": b.naming.Prefix(),
		"cidr":   req.CIDR,
		"tiers":  len(plan),
		"nat":    nat.String(),
		"peer":   req.Peer != nil,
	}).Info("building network topology")

	allocator := NewAllocator(client, b.naming, b.concurrency, b.log)
	classifier := NewClassifier(client, b.log)
	attacher := NewEndpointAttacher(client, b.naming, b.region, b.concurrency, b.log)
	hardener := NewHardener(client, b.naming, b.log)
	peering := NewPeeringEstablisher(b.accounts, b.naming, b.concurrency, b.log, b.peeringOpts...)

	network := future.Go(ctx, func(ctx context.Context) (*domain.Network, error) {
		n, err := allocator.Allocate(ctx, AllocateInput{CIDR: req.CIDR, Plan: plan, NAT: nat})
		return n, domain.AtStage(domain.StageAllocate, err)
	})

	tables := future.Then(ctx, network, func(_ context.Context, n *domain.Network) ([]domain.RouteTable, error) {
		return n.RouteTables, nil
	})
	private := stage(ctx, domain.StageClassify, classifier.Classify(ctx, tables))

	endpoints := future.Then(ctx, network, func(ctx context.Context, n *domain.Network) (domain.EndpointReport, error) {
		return attacher.Attach(ctx, n, req.InterfaceEndpoints), nil
	})

	hardened := future.Then(ctx, network, func(ctx context.Context, n *domain.Network) (struct{}, error) {
		return struct{}{}, domain.AtStage(domain.StageHarden, hardener.Harden(ctx, n))
	})

	// A rejected future drops its value; the outcome of a failed peering still
	// names the link it created, so it is kept outside the future.
	var outcome PeeringOutcome
	peered := future.Go(ctx, func(ctx context.Context) (struct{}, error) {
		var err error
		outcome, err = peering.Establish(ctx, PeeringInput{
			Network:       network,
			PrivateTables: private,
			Endpoints:     endpoints,
			Peer:          req.Peer,
		})
		return struct{}{}, err
	})

	topo := &Topology{Plan: plan, NATStrategy: nat, Region: b.region}
	var errs []error
	record := func(err error) {
		if err == nil {
			return
		}
		for _, seen := range errs {
			if seen == err {
				return
			}
		}
		errs = append(errs, err)
	}

	var err error
	topo.Network, err = network.Await(ctx)
	record(err)
	topo.PrivateRouteTables, err = private.Await(ctx)
	record(err)
	topo.Endpoints, err = endpoints.Await(ctx)
	record(err)
	_, err = hardened.Await(ctx)
	record(err)
	_, err = peered.Await(ctx)
	record(err)
	if peered.Settled() {
		topo.Peering = outcome
	}
	record(topo.Endpoints.Err())

	if len(errs) > 0 {
		return topo, errors.Join(errs...)
	}
	b.log.WithField("vpc", topo.Network.ID).Info("network topology ready")
	return topo, nil
}

func stage[T any](ctx context.Context, s domain.Stage, f *future.Future[T]) *future.Future[T] {
	return future.Go(ctx, func(ctx context.Context) (T, error) {
		v, err := f.Await(ctx)
		return v, domain.AtStage(s, err)
	})
}

// Topology is the result of a run and the surface collaborators consume.
type Topology struct {
	Region             string
	Plan               domain.SubnetPlan
	NATStrategy        domain.NATStrategy
	Network            *domain.Network
	PrivateRouteTables []domain.RouteTable
	Endpoints          domain.EndpointReport
	Peering            PeeringOutcome
}

// ProbeTarget is what a compute probe needs: the network and one subnet.
type ProbeTarget struct {
	NetworkID string
	SubnetID  string
}

// DatabaseTarget is what a database cluster needs to live in the isolated tier.
type DatabaseTarget struct {
	NetworkID string
	CIDR      string
	SubnetIDs []string
}

// ProbeTarget returns the subnet of tier in the zone with the given index.
func (t *Topology) ProbeTarget(tier domain.TierKind, zone int) (ProbeTarget, error) {
	if t.Network == nil {
		return ProbeTarget{}, fmt.Errorf("network not allocated")
	}
	alloc, ok := t.Network.Tier(tier)
	if !ok {
		return ProbeTarget{}, fmt.Errorf("tier %s not planned", tier)
	}
	if zone < 0 || zone >= len(alloc.Subnets) {
		return ProbeTarget{}, fmt.Errorf("zone index %d out of range for tier %s", zone, tier)
	}
	return ProbeTarget{NetworkID: t.Network.ID, SubnetID: alloc.Subnets[zone].ID}, nil
}

func (t *Topology) DatabaseTarget() (DatabaseTarget, error) {
	if t.Network == nil {
		return DatabaseTarget{}, fmt.Errorf("network not allocated")
	}
	alloc, ok := t.Network.Tier(domain.TierIsolated)
	if !ok {
		return DatabaseTarget{}, domain.ErrNoIsolatedTier
	}
	return DatabaseTarget{NetworkID: t.Network.ID, CIDR: t.Network.CIDR, SubnetIDs: alloc.SubnetIDs()}, nil
}

// GatewayEndpointID returns the gateway endpoint for service, e.g. to restrict
// a bucket policy to traffic through it.
func (t *Topology) GatewayEndpointID(service string) (string, bool) {
	return t.Endpoints.ID(domain.EndpointGateway, service)
}

// Outputs is the document published for other stacks.
func (t *Topology) Outputs() domain.Outputs {
	out := domain.Outputs{
		Region:             t.Region,
		PrivateRouteTables: routeTableIDs(t.PrivateRouteTables),
	}
	if n := t.Network; n != nil {
		out.VPCID = n.ID
		out.VPCCIDR = n.CIDR
		out.MainRouteTableID = n.MainRouteTableID
		out.DefaultSecurityGroupID = n.DefaultSecurityGroupID
		out.NATGatewayID = n.NATGatewayID
		out.PublicSubnetIDs = nonNil(n.SubnetIDs(domain.RouteTableClassPublic))
		out.PrivateSubnetIDs = nonNil(n.SubnetIDs(domain.RouteTableClassPrivate))
		out.IsolatedSubnetIDs = nonNil(n.SubnetIDs(domain.RouteTableClassIsolated))
		out.RouteTables = nonNil(n.RouteTableIDs())
	}
	if link := t.Peering.Link; link != nil {
		out.PeeringConnectionID = link.ID
		out.PeerCIDR = t.Peering.PeerCIDR
		out.PeerRouteTables = routeIDs(t.Peering.RemoteRoutes)
	}
	for _, svc := range GatewayServices {
		if id, ok := t.GatewayEndpointID(svc); ok {
			if out.GatewayEndpoints == nil {
				out.GatewayEndpoints = map[string]string{}
			}
			out.GatewayEndpoints[svc] = id
		}
	}
	return out
}

func routeTableIDs(tables []domain.RouteTable) []string {
	ids := make([]string, len(tables))
	for i, rt := range tables {
		ids[i] = rt.ID
	}
	return ids
}

func routeIDs(routes []domain.PeeringRoute) []string {
	var ids []string
	for _, r := range routes {
		ids = append(ids, r.RouteTableID)
	}
	return ids
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
