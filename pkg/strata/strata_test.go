package strata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/strata/internal/audit"
	"github.com/eleven-am/strata/internal/config"
	"github.com/eleven-am/strata/internal/domain"
	"github.com/eleven-am/strata/internal/stackref"
	"github.com/eleven-am/strata/internal/topology"
)

// stubClient serves the few reads the tests need; anything else panics on
// the nil embedded interface.
type stubClient struct {
	domain.NetworkClient
	routeTables map[string]*domain.RouteTableData
	groups      map[string]*domain.SecurityGroupData
}

func (s *stubClient) AvailabilityZones(ctx context.Context, count int) ([]string, error) {
	return nil, errors.New("unauthorized")
}

func (s *stubClient) GetRouteTable(ctx context.Context, rtID string) (*domain.RouteTableData, error) {
	rt, ok := s.routeTables[rtID]
	if !ok {
		return nil, errors.New("route table not found")
	}
	return rt, nil
}

func (s *stubClient) GetSecurityGroup(ctx context.Context, sgID string) (*domain.SecurityGroupData, error) {
	sg, ok := s.groups[sgID]
	if !ok {
		return nil, errors.New("security group not found")
	}
	return sg, nil
}

type stubAccounts struct {
	client *stubClient
}

func (a stubAccounts) AccountID(ctx context.Context) (string, error)     { return "123456789012", nil }
func (a stubAccounts) PeerAccountID(ctx context.Context) (string, error) { return "123456789012", nil }
func (a stubAccounts) Local() domain.NetworkClient                       { return a.client }
func (a stubAccounts) Remote(ctx context.Context) (domain.NetworkClient, error) {
	return a.client, nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Namespace:      "acme",
		Environment:    "dev",
		Name:           "core",
		Region:         "us-east-1",
		CIDR:           "10.0.0.0/16",
		Subnets:        config.Subnets{Public: true, PrivateApp: true, IsolatedData: true},
		Outputs:        filepath.Join(t.TempDir(), "outputs.yaml"),
		Concurrency:    4,
		PeeringTimeout: 0,
		Log:            config.Log{Level: "info", Format: "text"},
	}
}

func TestPreview(t *testing.T) {
	plan, err := Preview(testConfig(t))
	require.NoError(t, err)

	assert.Equal(t, domain.NATShared, plan.NATStrategy)
	require.Len(t, plan.Tiers, 3)
	assert.Equal(t, domain.TierPublic, plan.Tiers[0].Tier.Kind)
	assert.Equal(t, domain.TierIsolated, plan.Tiers[2].Tier.Kind)
	for _, tier := range plan.Tiers {
		assert.Len(t, tier.CIDRs, domain.ZoneCount)
	}
	assert.Equal(t, "10.0.0.0/20", plan.Tiers[0].CIDRs[0])
}

func TestPreview_BlockTooSmall(t *testing.T) {
	cfg := testConfig(t)
	cfg.CIDR = "10.0.0.0/26"

	_, err := Preview(cfg)
	require.ErrorIs(t, err, domain.ErrCIDRTooSmall)
}

func TestUp_AllocationFailureSkipsPublish(t *testing.T) {
	cfg := testConfig(t)
	stack := NewStack(cfg, stubAccounts{client: &stubClient{}}, nil, testLogger())

	topo, err := stack.Up(context.Background())
	require.Error(t, err)

	var se *domain.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.StageAllocate, se.Stage)
	require.NotNil(t, topo)
	assert.Nil(t, topo.Network)

	_, statErr := os.Stat(cfg.Outputs)
	assert.True(t, os.IsNotExist(statErr), "outputs must not be published")
}

func TestPublishable(t *testing.T) {
	built := &topology.Topology{Network: &domain.Network{ID: "vpc-1"}}

	assert.True(t, publishable(built, nil))
	assert.True(t, publishable(built, &domain.EndpointError{}))
	assert.False(t, publishable(built, errors.Join(&domain.EndpointError{}, domain.AtStage(domain.StagePeering, errors.New("boom")))))
	assert.False(t, publishable(&topology.Topology{}, nil))
	assert.False(t, publishable(nil, nil))
}

func TestOutputs_NoLocation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Outputs = ""
	stack := NewStack(cfg, stubAccounts{client: &stubClient{}}, nil, testLogger())

	_, err := stack.Outputs(context.Background())
	require.ErrorIs(t, err, ErrNoOutputsLocation)

	_, err = stack.Verify(context.Background())
	require.ErrorIs(t, err, ErrNoOutputsLocation)
}

func TestVerify_ReportsUnhardenedDefaults(t *testing.T) {
	cfg := testConfig(t)
	client := &stubClient{
		routeTables: map[string]*domain.RouteTableData{
			"rtb-main": {ID: "rtb-main", Main: true, Routes: []domain.Route{
				{DestinationCIDR: "10.0.0.0/16", PrefixLength: 16, TargetType: domain.RouteTargetLocal, TargetID: "local"},
				{DestinationCIDR: "0.0.0.0/0", PrefixLength: 0, TargetType: domain.RouteTargetInternetGateway, TargetID: "igw-1"},
			}},
		},
		groups: map[string]*domain.SecurityGroupData{
			"sg-default": {ID: "sg-default"},
		},
	}

	store := stackref.NewStore(nil, testLogger())
	require.NoError(t, store.Publish(context.Background(), cfg.Outputs, domain.Outputs{
		VPCID:                  "vpc-1",
		VPCCIDR:                "10.0.0.0/16",
		Region:                 "us-east-1",
		MainRouteTableID:       "rtb-main",
		DefaultSecurityGroupID: "sg-default",
	}))

	stack := NewStack(cfg, stubAccounts{client: client}, nil, testLogger())
	findings, err := stack.Verify(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, audit.CheckDefaultRouteTable, findings[0].Check)
	assert.Equal(t, "rtb-main", findings[0].Resource)
}
