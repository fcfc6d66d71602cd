package audit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/domain"
)

var errNotImplemented = errors.New("not implemented")

type mockNetworkClient struct {
	routeTables    map[string]*domain.RouteTableData
	securityGroups map[string]*domain.SecurityGroupData
	peerings       map[string]*domain.VPCPeeringData
}

func newMockNetworkClient() *mockNetworkClient {
	return &mockNetworkClient{
		routeTables:    make(map[string]*domain.RouteTableData),
		securityGroups: make(map[string]*domain.SecurityGroupData),
		peerings:       make(map[string]*domain.VPCPeeringData),
	}
}

func (m *mockNetworkClient) GetRouteTable(ctx context.Context, rtID string) (*domain.RouteTableData, error) {
	if rt, ok := m.routeTables[rtID]; ok {
		return rt, nil
	}
	return nil, fmt.Errorf("route table %s not found", rtID)
}

func (m *mockNetworkClient) GetSecurityGroup(ctx context.Context, sgID string) (*domain.SecurityGroupData, error) {
	if sg, ok := m.securityGroups[sgID]; ok {
		return sg, nil
	}
	return nil, fmt.Errorf("security group %s not found", sgID)
}

func (m *mockNetworkClient) GetVPCPeering(ctx context.Context, peeringID string) (*domain.VPCPeeringData, error) {
	if pcx, ok := m.peerings[peeringID]; ok {
		return pcx, nil
	}
	return nil, fmt.Errorf("vpc peering %s not found", peeringID)
}

func (m *mockNetworkClient) AvailabilityZones(ctx context.Context, count int) ([]string, error) {
	return nil, errNotImplemented
}

func (m *mockNetworkClient) EnsureVPC(ctx context.Context, req domain.VPCRequest) (*domain.VPCData, error) {
	return nil, errNotImplemented
}

func (m *mockNetworkClient) EnsureInternetGateway(ctx context.Context, req domain.InternetGatewayRequest) (string, error) {
	return "", errNotImplemented
}

func (m *mockNetworkClient) EnsureSubnet(ctx context.Context, req domain.SubnetRequest) (*domain.SubnetData, error) {
	return nil, errNotImplemented
}

func (m *mockNetworkClient) EnsureRouteTable(ctx context.Context, req domain.RouteTableRequest) (string, error) {
	return "", errNotImplemented
}

func (m *mockNetworkClient) EnsureNATGateway(ctx context.Context, req domain.NATGatewayRequest) (string, error) {
	return "", errNotImplemented
}

func (m *mockNetworkClient) EnsureRoute(ctx context.Context, req domain.RouteRequest) error {
	return errNotImplemented
}

func (m *mockNetworkClient) GetRouteTableTags(ctx context.Context, rtID string) (domain.Tags, error) {
	return nil, errNotImplemented
}

func (m *mockNetworkClient) EnsureSecurityGroup(ctx context.Context, req domain.SecurityGroupRequest) (string, error) {
	return "", errNotImplemented
}

func (m *mockNetworkClient) EnsureVPCEndpoint(ctx context.Context, req domain.EndpointRequest) (string, error) {
	return "", errNotImplemented
}

func (m *mockNetworkClient) EnsurePeeringConnection(ctx context.Context, req domain.PeeringRequest) (string, error) {
	return "", errNotImplemented
}

func (m *mockNetworkClient) AcceptPeeringConnection(ctx context.Context, peeringID string) error {
	return errNotImplemented
}

func (m *mockNetworkClient) ClearRouteTable(ctx context.Context, rtID string, tags domain.Tags) error {
	return errNotImplemented
}

func (m *mockNetworkClient) LockSecurityGroup(ctx context.Context, sgID string, tags domain.Tags) error {
	return errNotImplemented
}

type mockAccountContext struct {
	local  *mockNetworkClient
	remote *mockNetworkClient
}

func (a *mockAccountContext) AccountID(ctx context.Context) (string, error) {
	return "111111111111", nil
}

func (a *mockAccountContext) PeerAccountID(ctx context.Context) (string, error) {
	return "222222222222", nil
}

func (a *mockAccountContext) Local() domain.NetworkClient {
	return a.local
}

func (a *mockAccountContext) Remote(ctx context.Context) (domain.NetworkClient, error) {
	return a.remote, nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
