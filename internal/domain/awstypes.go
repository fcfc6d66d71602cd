package domain

type SecurityGroupData struct {
	ID            string
	VPCID         string
	Name          string
	InboundRules  []SecurityGroupRule
	OutboundRules []SecurityGroupRule
}

type SecurityGroupRule struct {
	Protocol                 string
	FromPort                 int
	ToPort                   int
	CIDRBlocks               []string
	IPv6CIDRBlocks           []string
	ReferencedSecurityGroups []string
	PrefixListIDs            []string
}

// AllowAll is the single rule used by the shared interface endpoint security
// group in both directions.
func AllowAll() SecurityGroupRule {
	return SecurityGroupRule{Protocol: "-1", CIDRBlocks: []string{"0.0.0.0/0"}}
}

type SubnetData struct {
	ID        string
	VPCID     string
	CIDRBlock string
	Zone      string
}

type RouteTableData struct {
	ID     string
	VPCID  string
	Main   bool
	Tags   Tags
	Routes []Route
}

type Route struct {
	DestinationCIDR         string
	DestinationIPv6CIDR     string
	DestinationPrefixListID string
	PrefixLength            int
	TargetType              string
	TargetID                string
}

const (
	RouteTargetLocal           = "local"
	RouteTargetInternetGateway = "internet-gateway"
	RouteTargetNATGateway      = "nat-gateway"
	RouteTargetVPCPeering      = "vpc-peering"
	RouteTargetVPCEndpoint     = "vpc-endpoint"
)

type VPCData struct {
	ID                     string
	CIDRBlock              string
	MainRouteTableID       string
	DefaultSecurityGroupID string
}

type VPCEndpointData struct {
	ID             string
	VPCID          string
	ServiceName    string
	Type           string
	State          string
	RouteTableIDs  []string
	SubnetIDs      []string
	SecurityGroups []string
}

type VPCPeeringData struct {
	ID             string
	RequesterVPC   string
	RequesterOwner string
	AccepterVPC    string
	AccepterOwner  string
	Status         string
}

const (
	PeeringStatusActive            = "active"
	PeeringStatusPendingAcceptance = "pending-acceptance"
	PeeringStatusProvisioning      = "provisioning"
	PeeringStatusInitiating        = "initiating-request"
	PeeringStatusRejected          = "rejected"
	PeeringStatusFailed            = "failed"
	PeeringStatusExpired           = "expired"
	PeeringStatusDeleted           = "deleted"
)
