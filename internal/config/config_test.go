package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
namespace: acme
environment: dev
name: core
region: us-east-1
cidr: 10.20.0.0/16
subnets:
  public: true
  privateApp: true
  isolatedData: true
interfaceEndpoints:
  - ssm
  - ec2messages
peer:
  stack: s3://acme-stacks/bootstrap/outputs.yaml
  roleArn: arn:aws:iam::210987654321:role/peering
outputs: s3://acme-stacks/dev/core.yaml
peeringTimeout: 2m
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "acme-dev-core", cfg.Naming().Prefix())
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "10.20.0.0/16", cfg.CIDR)
	assert.True(t, cfg.Flags().Public)
	assert.True(t, cfg.Flags().PrivateApp)
	assert.False(t, cfg.Flags().PrivateData)
	assert.True(t, cfg.Flags().IsolatedData)
	assert.Equal(t, []string{"ssm", "ec2messages"}, cfg.InterfaceEndpoints)
	require.NotNil(t, cfg.Peer)
	assert.Equal(t, "s3://acme-stacks/bootstrap/outputs.yaml", cfg.Peer.Stack)
	assert.Equal(t, "arn:aws:iam::210987654321:role/peering", cfg.RemoteRoleARN())
	assert.Equal(t, 2*time.Minute, cfg.PeeringTimeout)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_DefaultsWithoutPeer(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
namespace: acme
environment: dev
name: core
region: eu-west-1
cidr: 10.0.0.0/16
`))
	require.NoError(t, err)

	assert.Nil(t, cfg.Peer)
	assert.Empty(t, cfg.RemoteRoleARN())
	assert.Empty(t, cfg.InterfaceEndpoints)
	assert.Equal(t, 5*time.Minute, cfg.PeeringTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STRATA_REGION", "ap-southeast-2")
	t.Setenv("STRATA_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, fullConfig))
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", cfg.Region)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing namespace",
			body: "environment: dev\nname: core\nregion: us-east-1\ncidr: 10.0.0.0/16\n",
			want: "Namespace",
		},
		{
			name: "ipv6 block",
			body: "namespace: a\nenvironment: b\nname: c\nregion: us-east-1\ncidr: fd00::/48\n",
			want: "cidrv4",
		},
		{
			name: "duplicate endpoint",
			body: "namespace: a\nenvironment: b\nname: c\nregion: us-east-1\ncidr: 10.0.0.0/16\ninterfaceEndpoints: [ssm, ssm]\n",
			want: "unique",
		},
		{
			name: "peer without stack",
			body: "namespace: a\nenvironment: b\nname: c\nregion: us-east-1\ncidr: 10.0.0.0/16\npeer:\n  roleArn: arn:aws:iam::1:role/x\n",
			want: "Stack",
		},
		{
			name: "bad role arn",
			body: "namespace: a\nenvironment: b\nname: c\nregion: us-east-1\ncidr: 10.0.0.0/16\npeer:\n  stack: ./peer.yaml\n  roleArn: peering\n",
			want: "RoleARN",
		},
		{
			name: "bad log level",
			body: "namespace: a\nenvironment: b\nname: c\nregion: us-east-1\ncidr: 10.0.0.0/16\nlog:\n  level: loud\n",
			want: "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLog_NewLogger(t *testing.T) {
	logger, err := Log{Level: "debug", Format: "json"}.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = Log{Level: "loud", Format: "text"}.NewLogger()
	require.Error(t, err)
}
