package topology

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/strata/internal/domain"
)

// GatewayServices are attached to every subnet route table of the network.
var GatewayServices = []string{"s3", "dynamodb"}

func serviceName(region, service string) string {
	return fmt.Sprintf("com.amazonaws.%s.%s", region, service)
}

// EndpointAttacher creates the managed service endpoints of a network. Every
// endpoint is attempted; failures are reported, never short-circuited.
type EndpointAttacher struct {
	client      domain.NetworkClient
	naming      domain.Naming
	region      string
	concurrency int
	log         *logrus.Entry
}

func NewEndpointAttacher(client domain.NetworkClient, naming domain.Naming, region string, concurrency int, log *logrus.Entry) *EndpointAttacher {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &EndpointAttacher{
		client:      client,
		naming:      naming,
		region:      region,
		concurrency: concurrency,
		log:         log.WithField("component", "endpoints"),
	}
}

// Attach returns one result per endpoint: the gateway endpoints first, then
// the interface endpoints in the order given.
func (e *EndpointAttacher) Attach(ctx context.Context, network *domain.Network, interfaceServices []string) domain.EndpointReport {
	results := make([]domain.EndpointResult, 0, len(GatewayServices)+len(interfaceServices))
	for _, svc := range GatewayServices {
		results = append(results, domain.EndpointResult{Service: svc, Kind: domain.EndpointGateway})
	}
	for _, svc := range interfaceServices {
		results = append(results, domain.EndpointResult{Service: svc, Kind: domain.EndpointInterface})
	}

	var report domain.EndpointReport
	isolated, hasIsolated := network.Tier(domain.TierIsolated)

	var sgErr error
	if len(interfaceServices) > 0 && hasIsolated {
		report.SecurityGroupID, sgErr = e.ensureSecurityGroup(ctx, network.ID)
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range results {
		res := &results[i]
		g.Go(func() error {
			switch {
			case res.Kind == domain.EndpointGateway:
				res.ID, res.Err = e.ensureGateway(ctx, network, res.Service)
			case !hasIsolated:
				res.Err = domain.ErrNoIsolatedTier
			case sgErr != nil:
				res.Err = sgErr
			default:
				res.ID, res.Err = e.ensureInterface(ctx, network.ID, isolated.SubnetIDs(), report.SecurityGroupID, res.Service)
			}
			if res.Err != nil {
				e.log.WithError(res.Err).WithField("service", res.Service).Warn("endpoint failed")
			}
			return nil
		})
	}
	// Failures live in results; every worker returns nil.
	g.Wait()

	report.Results = results
	return report
}

func (e *EndpointAttacher) ensureGateway(ctx context.Context, network *domain.Network, service string) (string, error) {
	return e.client.EnsureVPCEndpoint(ctx, domain.EndpointRequest{
		LogicalID:     e.naming.Resource(service),
		VPCID:         network.ID,
		ServiceName:   serviceName(e.region, service),
		Kind:          domain.EndpointGateway,
		RouteTableIDs: network.RouteTableIDs(),
		Tags:          e.naming.Tagged(service),
	})
}

func (e *EndpointAttacher) ensureInterface(ctx context.Context, vpcID string, subnetIDs []string, sgID, service string) (string, error) {
	return e.client.EnsureVPCEndpoint(ctx, domain.EndpointRequest{
		LogicalID:        e.naming.Resource(service),
		VPCID:            vpcID,
		ServiceName:      serviceName(e.region, service),
		Kind:             domain.EndpointInterface,
		SubnetIDs:        subnetIDs,
		SecurityGroupIDs: []string{sgID},
		PrivateDNS:       true,
		Tags:             e.naming.Tagged(service),
	})
}

// ensureSecurityGroup creates the group shared by all interface endpoints. It
// allows all traffic in both directions and is not a perimeter: the isolated
// tier having no internet route is what contains it.
func (e *EndpointAttacher) ensureSecurityGroup(ctx context.Context, vpcID string) (string, error) {
	name := e.naming.Resource("vpce", "sg")
	sgID, err := e.client.EnsureSecurityGroup(ctx, domain.SecurityGroupRequest{
		LogicalID:   name,
		Name:        name,
		Description: "Allow local traffic",
		VPCID:       vpcID,
		Ingress:     []domain.SecurityGroupRule{domain.AllowAll()},
		Egress:      []domain.SecurityGroupRule{domain.AllowAll()},
		Tags:        e.naming.Tagged("vpce", "sg"),
	})
	if err != nil {
		return "", fmt.Errorf("ensure endpoint security group: %w", err)
	}
	return sgID, nil
}
