package strata

import (
	"github.com/eleven-am/strata/internal/audit"
	internalaws "github.com/eleven-am/strata/internal/aws"
	"github.com/eleven-am/strata/internal/config"
	"github.com/eleven-am/strata/internal/domain"
	"github.com/eleven-am/strata/internal/topology"
)

type AccountContext = internalaws.AccountContext

type Config = config.Config

type Naming = domain.Naming

type SubnetFlags = domain.SubnetFlags

type TierKind = domain.TierKind

const (
	TierPublic      = domain.TierPublic
	TierPrivateApp  = domain.TierPrivateApp
	TierPrivateData = domain.TierPrivateData
	TierIsolated    = domain.TierIsolated
)

type NATStrategy = domain.NATStrategy

type PeeringState = domain.PeeringState

const (
	PeeringNoPeer        = domain.PeeringNoPeer
	PeeringLinkRequested = domain.PeeringLinkRequested
	PeeringLinkActive    = domain.PeeringLinkActive
	PeeringDone          = domain.PeeringDone
	PeeringFailed        = domain.PeeringFailed

	PeeringLocalRoutesInjected  = domain.PeeringLocalRoutesInjected
	PeeringRemoteRoutesInjected = domain.PeeringRemoteRoutesInjected
)

// Topology is what a provisioning run built. Collaborators take their
// placement from ProbeTarget, DatabaseTarget and GatewayEndpointID.
type Topology = topology.Topology

type ProbeTarget = topology.ProbeTarget

type DatabaseTarget = topology.DatabaseTarget

type EndpointReport = domain.EndpointReport

// Outputs is the document published for, and read from, other stacks.
type Outputs = domain.Outputs

type Finding = audit.Finding

type StageError = domain.StageError

type EndpointError = domain.EndpointError

var (
	ErrTagsNotPropagated = domain.ErrTagsNotPropagated
	ErrNoIsolatedTier    = domain.ErrNoIsolatedTier
	ErrPeeringNotActive  = domain.ErrPeeringNotActive
	ErrCIDRTooSmall      = domain.ErrCIDRTooSmall
)

// LoadConfig reads and validates a network config file.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}
