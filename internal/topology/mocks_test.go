package topology

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/domain"
)

type mockNetworkClient struct {
	mu sync.Mutex
	id int

	zones       []string
	vpcs        map[string]*domain.VPCData
	subnets     map[string]*domain.SubnetData
	routeTables map[string]*domain.RouteTableData
	rtByLogical map[string]string
	igws        map[string]string
	nats        map[string]string
	natSubnet   string
	sgs         map[string]*domain.SecurityGroupData
	sgByName    map[string]string
	endpoints   map[string]*domain.VPCEndpointData
	peerings    map[string]*domain.VPCPeeringData
	pcxByLogic  map[string]string
	routeCalls  []domain.RouteRequest

	// peeringStatus is the status a peering reports once accepted.
	peeringStatus string
	// tagOverrides replaces the tags GetRouteTableTags reports for a table.
	tagOverrides map[string]domain.Tags
	tagErr       map[string]error
	// dropTags makes every table report no tags, as before propagation.
	dropTags    bool
	endpointErr map[string]error
	vpcErr      error
	clearErr    error
}

func newMockNetworkClient() *mockNetworkClient {
	return &mockNetworkClient{
		zones:         []string{"us-east-1a", "us-east-1b", "us-east-1c"},
		vpcs:          make(map[string]*domain.VPCData),
		subnets:       make(map[string]*domain.SubnetData),
		routeTables:   make(map[string]*domain.RouteTableData),
		rtByLogical:   make(map[string]string),
		igws:          make(map[string]string),
		nats:          make(map[string]string),
		sgs:           make(map[string]*domain.SecurityGroupData),
		sgByName:      make(map[string]string),
		endpoints:     make(map[string]*domain.VPCEndpointData),
		peerings:      make(map[string]*domain.VPCPeeringData),
		pcxByLogic:    make(map[string]string),
		peeringStatus: domain.PeeringStatusActive,
		tagOverrides:  make(map[string]domain.Tags),
		tagErr:        make(map[string]error),
		endpointErr:   make(map[string]error),
	}
}

func (m *mockNetworkClient) nextID(prefix string) string {
	m.id++
	return fmt.Sprintf("%s-%03d", prefix, m.id)
}

func (m *mockNetworkClient) AvailabilityZones(ctx context.Context, count int) ([]string, error) {
	if len(m.zones) < count {
		return nil, fmt.Errorf("%w: need %d, region has %d", domain.ErrNotEnoughZones, count, len(m.zones))
	}
	return append([]string(nil), m.zones[:count]...), nil
}

func (m *mockNetworkClient) EnsureVPC(ctx context.Context, req domain.VPCRequest) (*domain.VPCData, error) {
	if m.vpcErr != nil {
		return nil, m.vpcErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if vpc, ok := m.vpcs[req.LogicalID]; ok {
		return vpc, nil
	}

	vpc := &domain.VPCData{ID: m.nextID("vpc"), CIDRBlock: req.CIDR}
	main := &domain.RouteTableData{
		ID:    m.nextID("rtb-main"),
		VPCID: vpc.ID,
		Main:  true,
		Tags:  domain.Tags{},
		Routes: []domain.Route{
			{DestinationCIDR: req.CIDR, TargetType: domain.RouteTargetLocal, TargetID: "local"},
			{DestinationCIDR: "0.0.0.0/0", TargetType: domain.RouteTargetInternetGateway, TargetID: "igw-stray"},
		},
	}
	sg := &domain.SecurityGroupData{
		ID:            m.nextID("sg-default"),
		VPCID:         vpc.ID,
		Name:          "default",
		InboundRules:  []domain.SecurityGroupRule{{Protocol: "-1", ReferencedSecurityGroups: []string{"self"}}},
		OutboundRules: []domain.SecurityGroupRule{domain.AllowAll()},
	}
	vpc.MainRouteTableID = main.ID
	vpc.DefaultSecurityGroupID = sg.ID
	m.routeTables[main.ID] = main
	m.sgs[sg.ID] = sg
	m.vpcs[req.LogicalID] = vpc
	return vpc, nil
}

func (m *mockNetworkClient) EnsureInternetGateway(ctx context.Context, req domain.InternetGatewayRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.igws[req.LogicalID]; ok {
		return id, nil
	}
	id := m.nextID("igw")
	m.igws[req.LogicalID] = id
	return id, nil
}

func (m *mockNetworkClient) EnsureSubnet(ctx context.Context, req domain.SubnetRequest) (*domain.SubnetData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subnets[req.LogicalID]; ok {
		return s, nil
	}
	s := &domain.SubnetData{ID: m.nextID("subnet"), VPCID: req.VPCID, CIDRBlock: req.CIDR, Zone: req.Zone}
	m.subnets[req.LogicalID] = s
	return s, nil
}

func (m *mockNetworkClient) EnsureRouteTable(ctx context.Context, req domain.RouteTableRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.rtByLogical[req.LogicalID]; ok {
		return id, nil
	}
	id := m.nextID("rtb")
	m.routeTables[id] = &domain.RouteTableData{ID: id, VPCID: req.VPCID, Tags: req.Tags.With(nil)}
	m.rtByLogical[req.LogicalID] = id
	return id, nil
}

func (m *mockNetworkClient) EnsureNATGateway(ctx context.Context, req domain.NATGatewayRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.nats[req.LogicalID]; ok {
		return id, nil
	}
	id := m.nextID("nat")
	m.nats[req.LogicalID] = id
	m.natSubnet = req.SubnetID
	return id, nil
}

func (m *mockNetworkClient) EnsureRoute(ctx context.Context, req domain.RouteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeCalls = append(m.routeCalls, req)

	rt, ok := m.routeTables[req.RouteTableID]
	if !ok {
		rt = &domain.RouteTableData{ID: req.RouteTableID, Tags: domain.Tags{}}
		m.routeTables[req.RouteTableID] = rt
	}
	route := domain.Route{DestinationCIDR: req.DestinationCIDR, TargetType: req.Target.Type, TargetID: req.Target.ID}
	for i, r := range rt.Routes {
		if r.DestinationCIDR == req.DestinationCIDR {
			rt.Routes[i] = route
			return nil
		}
	}
	rt.Routes = append(rt.Routes, route)
	return nil
}

func (m *mockNetworkClient) GetRouteTable(ctx context.Context, rtID string) (*domain.RouteTableData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.routeTables[rtID]
	if !ok {
		return nil, fmt.Errorf("route table %s not found", rtID)
	}
	cp := *rt
	cp.Routes = append([]domain.Route(nil), rt.Routes...)
	return &cp, nil
}

func (m *mockNetworkClient) GetRouteTableTags(ctx context.Context, rtID string) (domain.Tags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.tagErr[rtID]; ok {
		return nil, err
	}
	if m.dropTags {
		return domain.Tags{}, nil
	}
	if tags, ok := m.tagOverrides[rtID]; ok {
		return tags, nil
	}
	rt, ok := m.routeTables[rtID]
	if !ok {
		return nil, fmt.Errorf("route table %s not found", rtID)
	}
	return rt.Tags.With(nil), nil
}

func (m *mockNetworkClient) GetSecurityGroup(ctx context.Context, sgID string) (*domain.SecurityGroupData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sg, ok := m.sgs[sgID]
	if !ok {
		return nil, fmt.Errorf("security group %s not found", sgID)
	}
	cp := *sg
	return &cp, nil
}

func (m *mockNetworkClient) EnsureSecurityGroup(ctx context.Context, req domain.SecurityGroupRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.sgByName[req.Name]; ok {
		return id, nil
	}
	id := m.nextID("sg")
	m.sgs[id] = &domain.SecurityGroupData{
		ID:            id,
		VPCID:         req.VPCID,
		Name:          req.Name,
		InboundRules:  req.Ingress,
		OutboundRules: req.Egress,
	}
	m.sgByName[req.Name] = id
	return id, nil
}

func (m *mockNetworkClient) EnsureVPCEndpoint(ctx context.Context, req domain.EndpointRequest) (string, error) {
	if err, ok := m.endpointErr[req.ServiceName]; ok {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ep, ok := m.endpoints[req.ServiceName]; ok {
		for _, id := range req.RouteTableIDs {
			if !contains(ep.RouteTableIDs, id) {
				ep.RouteTableIDs = append(ep.RouteTableIDs, id)
			}
		}
		return ep.ID, nil
	}
	ep := &domain.VPCEndpointData{
		ID:            m.nextID("vpce"),
		VPCID:         req.VPCID,
		ServiceName:   req.ServiceName,
		Type:          req.Kind.String(),
		RouteTableIDs: append([]string(nil), req.RouteTableIDs...),
		SubnetIDs:     append([]string(nil), req.SubnetIDs...),
	}
	ep.SecurityGroups = append(ep.SecurityGroups, req.SecurityGroupIDs...)
	m.endpoints[req.ServiceName] = ep
	return ep.ID, nil
}

func (m *mockNetworkClient) EnsurePeeringConnection(ctx context.Context, req domain.PeeringRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.pcxByLogic[req.LogicalID]; ok {
		return id, nil
	}
	id := m.nextID("pcx")
	m.peerings[id] = &domain.VPCPeeringData{
		ID:            id,
		RequesterVPC:  req.VPCID,
		AccepterVPC:   req.PeerVPCID,
		AccepterOwner: req.PeerOwnerID,
		Status:        domain.PeeringStatusPendingAcceptance,
	}
	m.pcxByLogic[req.LogicalID] = id
	return id, nil
}

func (m *mockNetworkClient) AcceptPeeringConnection(ctx context.Context, peeringID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pcx, ok := m.peerings[peeringID]
	if !ok {
		return fmt.Errorf("vpc peering %s not found", peeringID)
	}
	if pcx.Status == domain.PeeringStatusPendingAcceptance {
		pcx.Status = m.peeringStatus
	}
	return nil
}

func (m *mockNetworkClient) GetVPCPeering(ctx context.Context, peeringID string) (*domain.VPCPeeringData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pcx, ok := m.peerings[peeringID]
	if !ok {
		return nil, fmt.Errorf("vpc peering %s not found", peeringID)
	}
	cp := *pcx
	return &cp, nil
}

func (m *mockNetworkClient) ClearRouteTable(ctx context.Context, rtID string, tags domain.Tags) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.routeTables[rtID]
	if !ok {
		return fmt.Errorf("route table %s not found", rtID)
	}
	var kept []domain.Route
	for _, r := range rt.Routes {
		if r.TargetType == domain.RouteTargetLocal {
			kept = append(kept, r)
		}
	}
	rt.Routes = kept
	rt.Tags = rt.Tags.With(tags)
	return nil
}

func (m *mockNetworkClient) LockSecurityGroup(ctx context.Context, sgID string, tags domain.Tags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sg, ok := m.sgs[sgID]
	if !ok {
		return fmt.Errorf("security group %s not found", sgID)
	}
	sg.InboundRules = nil
	sg.OutboundRules = nil
	return nil
}

// peeringRoutes returns the route calls that target a peering connection.
func (m *mockNetworkClient) peeringRoutes() []domain.RouteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RouteRequest
	for _, r := range m.routeCalls {
		if r.Target.Type == domain.RouteTargetVPCPeering {
			out = append(out, r)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}

type mockAccountContext struct {
	local *mockNetworkClient
}

func newMockAccountContext(local *mockNetworkClient) *mockAccountContext {
	return &mockAccountContext{local: local}
}

func (a *mockAccountContext) AccountID(ctx context.Context) (string, error) {
	return "111111111111", nil
}

func (a *mockAccountContext) PeerAccountID(ctx context.Context) (string, error) {
	return "111111111111", nil
}

func (a *mockAccountContext) Local() domain.NetworkClient {
	return a.local
}

func (a *mockAccountContext) Remote(ctx context.Context) (domain.NetworkClient, error) {
	return a.local, nil
}

func testNaming() domain.Naming {
	return domain.Naming{Namespace: "acme", Environment: "dev", Name: "core"}
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
