package domain

import "github.com/eleven-am/strata/internal/future"

// Outputs is the document a provisioned network publishes for other stacks.
type Outputs struct {
	VPCID                  string            `yaml:"vpcId" json:"vpcId"`
	VPCCIDR                string            `yaml:"vpcCidr" json:"vpcCidr"`
	Region                 string            `yaml:"region,omitempty" json:"region,omitempty"`
	MainRouteTableID       string            `yaml:"mainRouteTableId,omitempty" json:"mainRouteTableId,omitempty"`
	DefaultSecurityGroupID string            `yaml:"defaultSecurityGroupId,omitempty" json:"defaultSecurityGroupId,omitempty"`
	PublicSubnetIDs        []string          `yaml:"publicSubnetIds" json:"publicSubnetIds"`
	PrivateSubnetIDs       []string          `yaml:"privateSubnetIds" json:"privateSubnetIds"`
	IsolatedSubnetIDs      []string          `yaml:"isolatedSubnetIds" json:"isolatedSubnetIds"`
	RouteTables            []string          `yaml:"routeTables" json:"routeTables"`
	PrivateRouteTables     []string          `yaml:"privateRouteTables" json:"privateRouteTables"`
	NATGatewayID           string            `yaml:"natGatewayId,omitempty" json:"natGatewayId,omitempty"`
	PeeringConnectionID    string            `yaml:"peeringConnectionId,omitempty" json:"peeringConnectionId,omitempty"`
	PeerCIDR               string            `yaml:"peerCidr,omitempty" json:"peerCidr,omitempty"`
	PeerRouteTables        []string          `yaml:"peerRouteTables,omitempty" json:"peerRouteTables,omitempty"`
	GatewayEndpoints       map[string]string `yaml:"gatewayEndpoints,omitempty" json:"gatewayEndpoints,omitempty"`
}

// PeerNetwork describes the bootstrap network published by another stack.
// Each value resolves independently and may arrive long after local state.
type PeerNetwork struct {
	VPCID         *future.Future[string]
	CIDR          *future.Future[string]
	RouteTableIDs *future.Future[[]string]
}
