package domain

import (
	"maps"
)

const (
	TagName        = "Name"
	TagNamespace   = "Namespace"
	TagEnvironment = "Environment"
	TagSubnetType  = "SubnetType"
	TagLogicalID   = "strata:logical-id"

	TagPrivateSubnetType = "PrivateSubnetType"
)

// ZoneCount is the number of availability zones every network spans.
const ZoneCount = 3

type Tags map[string]string

// With returns a copy of t overlaid with extra.
func (t Tags) With(extra Tags) Tags {
	out := make(Tags, len(t)+len(extra))
	maps.Copy(out, t)
	maps.Copy(out, extra)
	return out
}

type TierKind int

const (
	TierPublic TierKind = iota
	TierPrivateApp
	TierPrivateData
	TierIsolated
)

func (k TierKind) String() string {
	switch k {
	case TierPublic:
		return "public"
	case TierPrivateApp:
		return "private-app"
	case TierPrivateData:
		return "private-data"
	case TierIsolated:
		return "isolated-data"
	default:
		return "unknown"
	}
}

// Class is the route table class every table of this tier is created with.
func (k TierKind) Class() RouteTableClass {
	switch k {
	case TierPublic:
		return RouteTableClassPublic
	case TierPrivateApp, TierPrivateData:
		return RouteTableClassPrivate
	case TierIsolated:
		return RouteTableClassIsolated
	default:
		return RouteTableClassUnclassified
	}
}

type SubnetFlags struct {
	Public       bool
	PrivateApp   bool
	PrivateData  bool
	IsolatedData bool
}

// SubnetTierSpec is immutable once planned. Its position in a SubnetPlan
// decides allocation order only.
type SubnetTierSpec struct {
	Kind  TierKind
	Label string
	Tags  Tags
}

type SubnetPlan []SubnetTierSpec

func (p SubnetPlan) Has(kind TierKind) bool {
	for _, spec := range p {
		if spec.Kind == kind {
			return true
		}
	}
	return false
}

type NATStrategy int

const (
	NATNone NATStrategy = iota
	NATShared
)

func (s NATStrategy) String() string {
	if s == NATShared {
		return "shared"
	}
	return "none"
}

// RouteTableClass is the structured form of the SubnetType tag.
type RouteTableClass int

const (
	RouteTableClassUnclassified RouteTableClass = iota
	RouteTableClassPublic
	RouteTableClassPrivate
	RouteTableClassIsolated
)

// TagValue is the SubnetType tag written for the class. Unclassified tables
// carry no tag.
func (c RouteTableClass) TagValue() string {
	switch c {
	case RouteTableClassPublic:
		return "Public"
	case RouteTableClassPrivate:
		return "Private"
	case RouteTableClassIsolated:
		return "Isolated"
	default:
		return ""
	}
}

func (c RouteTableClass) String() string {
	if v := c.TagValue(); v != "" {
		return v
	}
	return "Unclassified"
}

func ParseRouteTableClass(tag string) RouteTableClass {
	switch tag {
	case "Public":
		return RouteTableClassPublic
	case "Private":
		return RouteTableClassPrivate
	case "Isolated":
		return RouteTableClassIsolated
	default:
		return RouteTableClassUnclassified
	}
}

type Subnet struct {
	ID   string
	CIDR string
	Zone string
	Tier TierKind
}

// TierAllocation holds the subnets of one tier. Subnets are indexed by zone:
// Subnets[i] lives in the i-th zone of Network.Zones.
type TierAllocation struct {
	Spec    SubnetTierSpec
	Subnets []Subnet
}

func (a TierAllocation) SubnetIDs() []string {
	ids := make([]string, len(a.Subnets))
	for i, s := range a.Subnets {
		ids[i] = s.ID
	}
	return ids
}

type RouteTable struct {
	ID       string
	Class    RouteTableClass
	Tier     TierKind
	Zone     string
	SubnetID string
}

// Network is the realized allocation. RouteTables lists the per-tier, per-zone
// tables in allocation order; the main table is referenced separately.
type Network struct {
	ID                     string
	CIDR                   string
	Zones                  []string
	MainRouteTableID       string
	DefaultSecurityGroupID string
	InternetGatewayID      string
	NATGatewayID           string
	NATStrategy            NATStrategy
	Tiers                  []TierAllocation
	RouteTables            []RouteTable
}

func (n *Network) Tier(kind TierKind) (TierAllocation, bool) {
	for _, t := range n.Tiers {
		if t.Spec.Kind == kind {
			return t, true
		}
	}
	return TierAllocation{}, false
}

// SubnetIDs returns the subnet ids of every tier in the given class, in tier
// then zone order.
func (n *Network) SubnetIDs(class RouteTableClass) []string {
	var ids []string
	for _, t := range n.Tiers {
		if t.Spec.Kind.Class() == class {
			ids = append(ids, t.SubnetIDs()...)
		}
	}
	return ids
}

func (n *Network) RouteTableIDs() []string {
	ids := make([]string, len(n.RouteTables))
	for i, rt := range n.RouteTables {
		ids[i] = rt.ID
	}
	return ids
}

type EndpointKind int

const (
	EndpointGateway EndpointKind = iota
	EndpointInterface
)

func (k EndpointKind) String() string {
	if k == EndpointInterface {
		return "Interface"
	}
	return "Gateway"
}

type EndpointResult struct {
	Service string
	Kind    EndpointKind
	ID      string
	Err     error
}

type EndpointReport struct {
	SecurityGroupID string
	Results         []EndpointResult
}

func (r EndpointReport) Failed() []EndpointResult {
	var failed []EndpointResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err aggregates every failed endpoint, or returns nil when all succeeded.
func (r EndpointReport) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &EndpointError{Failures: failed}
}

// ID returns the endpoint id created for service with the given kind, if any.
func (r EndpointReport) ID(kind EndpointKind, service string) (string, bool) {
	for _, res := range r.Results {
		if res.Kind == kind && res.Service == service && res.Err == nil {
			return res.ID, true
		}
	}
	return "", false
}

type PeeringState int

const (
	PeeringNoPeer PeeringState = iota
	PeeringLinkRequested
	PeeringLinkActive
	PeeringLocalRoutesInjected
	PeeringRemoteRoutesInjected
	PeeringDone
	PeeringFailed
)

func (s PeeringState) String() string {
	switch s {
	case PeeringNoPeer:
		return "NoPeer"
	case PeeringLinkRequested:
		return "LinkRequested"
	case PeeringLinkActive:
		return "LinkActive"
	case PeeringLocalRoutesInjected:
		return "LocalRoutesInjected"
	case PeeringRemoteRoutesInjected:
		return "RemoteRoutesInjected"
	case PeeringDone:
		return "Done"
	case PeeringFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

type PeeringLink struct {
	ID          string
	LocalVPCID  string
	RemoteVPCID string
}

// PeeringRoute is owned by the peering link it targets. LogicalID is derived
// from the route table id only.
type PeeringRoute struct {
	LogicalID       string
	RouteTableID    string
	DestinationCIDR string
	PeeringLinkID   string
	Remote          bool
}
