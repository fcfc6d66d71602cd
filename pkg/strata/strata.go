package strata

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/audit"
	internalaws "github.com/eleven-am/strata/internal/aws"
	"github.com/eleven-am/strata/internal/config"
	"github.com/eleven-am/strata/internal/domain"
	"github.com/eleven-am/strata/internal/stackref"
	"github.com/eleven-am/strata/internal/topology"
)

const peeringPollInterval = 2 * time.Second

// ErrNoOutputsLocation is returned when a command needs the published
// outputs but the config names no location for them.
var ErrNoOutputsLocation = errors.New("no outputs location configured")

// Plan is the offline view of what Up would build.
type Plan struct {
	CIDR        string
	NATStrategy domain.NATStrategy
	Tiers       []topology.TierLayout
}

// Preview derives the subnet plan, NAT strategy and subnet ranges of cfg
// without calling AWS.
func Preview(cfg config.Config) (Plan, error) {
	plan := topology.DerivePlan(cfg.Flags())
	layout, err := topology.Layout(cfg.CIDR, plan, domain.ZoneCount)
	if err != nil {
		return Plan{}, err
	}
	return Plan{CIDR: cfg.CIDR, NATStrategy: topology.SelectNATStrategy(cfg.Flags()), Tiers: layout}, nil
}

// Stack is one configured network: it provisions it, publishes its outputs
// for peers and audits it afterwards.
type Stack struct {
	cfg      config.Config
	accounts domain.AccountContext
	store    *stackref.Store
	log      *logrus.Entry
}

func NewStack(cfg config.Config, accounts domain.AccountContext, objects stackref.ObjectService, log *logrus.Entry) *Stack {
	return &Stack{
		cfg:      cfg,
		accounts: accounts,
		store:    stackref.NewStore(objects, log),
		log:      log,
	}
}

// Connect builds a Stack on the default AWS credential chain for cfg.Region.
// When cfg names a peer role, the peer side is reached by assuming it.
func Connect(ctx context.Context, cfg config.Config, log *logrus.Entry) (*Stack, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	accounts := internalaws.NewAccountContext(awsCfg, cfg.RemoteRoleARN(), log)
	return NewStack(cfg, accounts, s3.NewFromConfig(awsCfg), log), nil
}

// Up provisions the network and publishes its outputs. Outputs are published
// whenever the network exists and only endpoints failed, so peers can still
// consume it.
func (s *Stack) Up(ctx context.Context) (*topology.Topology, error) {
	req := topology.Request{
		CIDR:               s.cfg.CIDR,
		Flags:              s.cfg.Flags(),
		InterfaceEndpoints: s.cfg.InterfaceEndpoints,
	}
	if s.cfg.Peer != nil {
		req.Peer = s.store.Reference(s.cfg.Peer.Stack).Load(ctx)
	}

	builder := topology.NewBuilder(s.accounts, s.cfg.Naming(), s.cfg.Region, s.log,
		topology.WithConcurrency(s.cfg.Concurrency),
		topology.WithPeeringOptions(topology.WithActivationPolling(s.cfg.PeeringTimeout, peeringPollInterval)),
	)
	topo, err := builder.Build(ctx, req)
	if !publishable(topo, err) || s.cfg.Outputs == "" {
		return topo, err
	}
	if perr := s.store.Publish(ctx, s.cfg.Outputs, topo.Outputs()); perr != nil {
		return topo, errors.Join(err, fmt.Errorf("publish outputs: %w", perr))
	}
	return topo, err
}

func publishable(topo *topology.Topology, err error) bool {
	if topo == nil || topo.Network == nil {
		return false
	}
	var se *domain.StageError
	return !errors.As(err, &se)
}

// Outputs reads the document published by the last Up.
func (s *Stack) Outputs(ctx context.Context) (domain.Outputs, error) {
	if s.cfg.Outputs == "" {
		return domain.Outputs{}, ErrNoOutputsLocation
	}
	return s.store.Read(ctx, s.cfg.Outputs)
}

// Verify audits the published network and returns what is out of place.
func (s *Stack) Verify(ctx context.Context) ([]audit.Finding, error) {
	out, err := s.Outputs(ctx)
	if err != nil {
		return nil, err
	}
	return audit.NewAuditor(s.accounts, s.cfg.Concurrency, s.log).Audit(ctx, out)
}
