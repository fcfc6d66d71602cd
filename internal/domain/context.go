package domain

import (
	"context"
	"time"
)

type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// AccountContext hands out clients for the local account and for the side of
// a peering that is reached through an assumed role.
type AccountContext interface {
	AccountID(ctx context.Context) (string, error)
	PeerAccountID(ctx context.Context) (string, error)
	Local() NetworkClient
	Remote(ctx context.Context) (NetworkClient, error)
}

type VPCRequest struct {
	LogicalID string
	CIDR      string
	Tags      Tags
}

type InternetGatewayRequest struct {
	LogicalID string
	VPCID     string
	Tags      Tags
}

type SubnetRequest struct {
	LogicalID   string
	VPCID       string
	CIDR        string
	Zone        string
	MapPublicIP bool
	Tags        Tags
}

type RouteTableRequest struct {
	LogicalID string
	VPCID     string
	SubnetID  string
	Tags      Tags
}

type NATGatewayRequest struct {
	LogicalID string
	SubnetID  string
	Tags      Tags
}

type RouteTarget struct {
	Type string
	ID   string
}

type RouteRequest struct {
	RouteTableID    string
	DestinationCIDR string
	Target          RouteTarget
}

type SecurityGroupRequest struct {
	LogicalID   string
	Name        string
	Description string
	VPCID       string
	Ingress     []SecurityGroupRule
	Egress      []SecurityGroupRule
	Tags        Tags
}

type EndpointRequest struct {
	LogicalID        string
	VPCID            string
	ServiceName      string
	Kind             EndpointKind
	RouteTableIDs    []string
	SubnetIDs        []string
	SecurityGroupIDs []string
	PrivateDNS       bool
	Tags             Tags
}

type PeeringRequest struct {
	LogicalID   string
	VPCID       string
	PeerVPCID   string
	PeerOwnerID string
	Tags        Tags
}

// NetworkClient is the provider surface the topology builder drives. Every
// Ensure call is idempotent: it returns the existing resource carrying the
// request's logical id, or creates it.
type NetworkClient interface {
	AvailabilityZones(ctx context.Context, count int) ([]string, error)

	EnsureVPC(ctx context.Context, req VPCRequest) (*VPCData, error)
	EnsureInternetGateway(ctx context.Context, req InternetGatewayRequest) (string, error)
	EnsureSubnet(ctx context.Context, req SubnetRequest) (*SubnetData, error)
	EnsureRouteTable(ctx context.Context, req RouteTableRequest) (string, error)
	EnsureNATGateway(ctx context.Context, req NATGatewayRequest) (string, error)
	EnsureRoute(ctx context.Context, req RouteRequest) error

	GetRouteTable(ctx context.Context, rtID string) (*RouteTableData, error)
	GetRouteTableTags(ctx context.Context, rtID string) (Tags, error)
	GetSecurityGroup(ctx context.Context, sgID string) (*SecurityGroupData, error)

	EnsureSecurityGroup(ctx context.Context, req SecurityGroupRequest) (string, error)
	EnsureVPCEndpoint(ctx context.Context, req EndpointRequest) (string, error)

	EnsurePeeringConnection(ctx context.Context, req PeeringRequest) (string, error)
	AcceptPeeringConnection(ctx context.Context, peeringID string) error
	GetVPCPeering(ctx context.Context, peeringID string) (*VPCPeeringData, error)

	ClearRouteTable(ctx context.Context, rtID string, tags Tags) error
	LockSecurityGroup(ctx context.Context, sgID string, tags Tags) error
}
