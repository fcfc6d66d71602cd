package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/strata/internal/domain"
	"github.com/eleven-am/strata/internal/future"
)

const (
	defaultActivationTimeout = 5 * time.Minute
	defaultPollInterval      = 2 * time.Second
)

// PeeringOutcome is where the peering state machine stopped and what it built.
type PeeringOutcome struct {
	State        domain.PeeringState
	Link         *domain.PeeringLink
	PeerCIDR     string
	LocalRoutes  []domain.PeeringRoute
	RemoteRoutes []domain.PeeringRoute
}

// PeeringInput wires the peering to its upstream values. Routes are injected
// only after Endpoints resolves.
type PeeringInput struct {
	Network       *future.Future[*domain.Network]
	PrivateTables *future.Future[[]domain.RouteTable]
	Endpoints     *future.Future[domain.EndpointReport]
	Peer          *domain.PeerNetwork
}

// PeeringEstablisher links the local network to the peer network and routes
// each side's address block over the link.
type PeeringEstablisher struct {
	accounts          domain.AccountContext
	naming            domain.Naming
	concurrency       int
	activationTimeout time.Duration
	pollInterval      time.Duration
	log               *logrus.Entry
}

type PeeringOption func(*PeeringEstablisher)

// WithActivationPolling sets how long and how often the link status is polled.
func WithActivationPolling(timeout, interval time.Duration) PeeringOption {
	return func(p *PeeringEstablisher) {
		p.activationTimeout = timeout
		p.pollInterval = interval
	}
}

func NewPeeringEstablisher(accounts domain.AccountContext, naming domain.Naming, concurrency int, log *logrus.Entry, opts ...PeeringOption) *PeeringEstablisher {
	if concurrency <= 0 {
		concurrency = 10
	}
	p := &PeeringEstablisher{
		accounts:          accounts,
		naming:            naming,
		concurrency:       concurrency,
		activationTimeout: defaultActivationTimeout,
		pollInterval:      defaultPollInterval,
		log:               log.WithField("component", "peering"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Establish runs NoPeer -> LinkRequested -> LinkActive -> local and remote
// route injection -> Done. Without a peer it stops at NoPeer and touches
// nothing. On error the outcome is Failed and keeps what was built so far.
func (p *PeeringEstablisher) Establish(ctx context.Context, in PeeringInput) (PeeringOutcome, error) {
	if in.Peer == nil {
		p.log.Debug("no peer network configured")
		return PeeringOutcome{State: domain.PeeringNoPeer}, nil
	}

	outcome := PeeringOutcome{State: domain.PeeringNoPeer}
	fail := func(stage domain.Stage, err error) (PeeringOutcome, error) {
		outcome.State = domain.PeeringFailed
		return outcome, domain.AtStage(stage, err)
	}

	network, err := in.Network.Await(ctx)
	if err != nil {
		return fail(domain.StagePeering, err)
	}

	link, err := p.requestLink(ctx, network, in.Peer)
	if err != nil {
		return fail(domain.StagePeering, err)
	}
	outcome.Link = link
	outcome.State = domain.PeeringLinkRequested

	if err := p.activate(ctx, link.ID); err != nil {
		return fail(domain.StagePeering, err)
	}
	outcome.State = domain.PeeringLinkActive
	p.log.WithField("peering", link.ID).Info("peering link active")

	if _, err := in.Endpoints.Await(ctx); err != nil {
		return fail(domain.StageRoutes, err)
	}
	peerCIDR, err := in.Peer.CIDR.Await(ctx)
	if err != nil {
		return fail(domain.StageRoutes, fmt.Errorf("resolve peer cidr: %w", err))
	}
	outcome.PeerCIDR = peerCIDR

	// The first side to finish records its state; Done needs both.
	var mu sync.Mutex
	advance := func(state domain.PeeringState) {
		mu.Lock()
		if outcome.State == domain.PeeringLinkActive {
			outcome.State = state
		}
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		routes, err := p.injectLocal(gCtx, link, peerCIDR, in.PrivateTables)
		outcome.LocalRoutes = routes
		if err == nil {
			advance(domain.PeeringLocalRoutesInjected)
		}
		return err
	})
	g.Go(func() error {
		routes, err := p.injectRemote(gCtx, link, network.CIDR, in.Peer)
		outcome.RemoteRoutes = routes
		if err == nil {
			advance(domain.PeeringRemoteRoutesInjected)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(domain.StageRoutes, err)
	}

	outcome.State = domain.PeeringDone
	p.log.WithFields(logrus.Fields{
		"peering": link.ID,
		"local":   len(outcome.LocalRoutes),
		"remote":  len(outcome.RemoteRoutes),
	}).Info("peering routes injected")
	return outcome, nil
}

func (p *PeeringEstablisher) requestLink(ctx context.Context, network *domain.Network, peer *domain.PeerNetwork) (*domain.PeeringLink, error) {
	peerVPCID, err := peer.VPCID.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve peer vpc id: %w", err)
	}
	ownerID, err := p.accounts.PeerAccountID(ctx)
	if err != nil {
		return nil, err
	}

	id, err := p.accounts.Local().EnsurePeeringConnection(ctx, domain.PeeringRequest{
		LogicalID:   p.naming.Resource("peering"),
		VPCID:       network.ID,
		PeerVPCID:   peerVPCID,
		PeerOwnerID: ownerID,
		Tags:        p.naming.Tagged("peering"),
	})
	if err != nil {
		return nil, err
	}
	return &domain.PeeringLink{ID: id, LocalVPCID: network.ID, RemoteVPCID: peerVPCID}, nil
}

// activate accepts the request from the peer side and polls until the link
// is active. A terminal status or running out of time is ErrPeeringNotActive.
func (p *PeeringEstablisher) activate(ctx context.Context, linkID string) error {
	remote, err := p.accounts.Remote(ctx)
	if err != nil {
		return err
	}
	if err := remote.AcceptPeeringConnection(ctx, linkID); err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.pollInterval
	b.MaxInterval = 10 * p.pollInterval

	_, err = backoff.Retry(ctx, func() (string, error) {
		pcx, err := remote.GetVPCPeering(ctx, linkID)
		if err != nil {
			return "", err
		}
		switch pcx.Status {
		case domain.PeeringStatusActive:
			return pcx.Status, nil
		case domain.PeeringStatusRejected, domain.PeeringStatusFailed, domain.PeeringStatusExpired, domain.PeeringStatusDeleted:
			return "", backoff.Permanent(fmt.Errorf("%w: %s is %s", domain.ErrPeeringNotActive, linkID, pcx.Status))
		default:
			return "", fmt.Errorf("%w: %s is %s", domain.ErrPeeringNotActive, linkID, pcx.Status)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(p.activationTimeout))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !errors.Is(err, domain.ErrPeeringNotActive) {
		return fmt.Errorf("%w: %s: %w", domain.ErrPeeringNotActive, linkID, err)
	}
	return err
}

func (p *PeeringEstablisher) injectLocal(ctx context.Context, link *domain.PeeringLink, peerCIDR string, tables *future.Future[[]domain.RouteTable]) ([]domain.PeeringRoute, error) {
	private, err := tables.Await(ctx)
	if err != nil {
		return nil, err
	}

	routes := make([]domain.PeeringRoute, len(private))
	for i, rt := range private {
		routes[i] = domain.PeeringRoute{
			LogicalID:       LocalRouteID(p.naming.Prefix(), rt.ID),
			RouteTableID:    rt.ID,
			DestinationCIDR: peerCIDR,
			PeeringLinkID:   link.ID,
		}
	}
	return routes, p.ensureRoutes(ctx, p.accounts.Local(), routes)
}

func (p *PeeringEstablisher) injectRemote(ctx context.Context, link *domain.PeeringLink, localCIDR string, peer *domain.PeerNetwork) ([]domain.PeeringRoute, error) {
	tableIDs, err := peer.RouteTableIDs.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve peer route tables: %w", err)
	}
	if len(tableIDs) == 0 {
		p.log.Warn("peer supplied no route tables; it will not route back")
		return nil, nil
	}
	remote, err := p.accounts.Remote(ctx)
	if err != nil {
		return nil, err
	}

	routes := make([]domain.PeeringRoute, len(tableIDs))
	for i, rtID := range tableIDs {
		routes[i] = domain.PeeringRoute{
			LogicalID:       RemoteRouteID(p.naming.Prefix(), rtID),
			RouteTableID:    rtID,
			DestinationCIDR: localCIDR,
			PeeringLinkID:   link.ID,
			Remote:          true,
		}
	}
	return routes, p.ensureRoutes(ctx, remote, routes)
}

func (p *PeeringEstablisher) ensureRoutes(ctx context.Context, client domain.NetworkClient, routes []domain.PeeringRoute) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, r := range routes {
		g.Go(func() error {
			err := client.EnsureRoute(gCtx, domain.RouteRequest{
				RouteTableID:    r.RouteTableID,
				DestinationCIDR: r.DestinationCIDR,
				Target:          domain.RouteTarget{Type: domain.RouteTargetVPCPeering, ID: r.PeeringLinkID},
			})
			if err != nil {
				return fmt.Errorf("route %s: %w", r.LogicalID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// LocalRouteID names the route to the peer in a local table. It depends on
// the table id only so membership changes never rename a route.
func LocalRouteID(name, rtID string) string {
	return fmt.Sprintf("%s-%s-main", name, rtID)
}

// RemoteRouteID names the route back to this network in a peer table.
func RemoteRouteID(name, rtID string) string {
	return fmt.Sprintf("main-%s-%s", rtID, name)
}
