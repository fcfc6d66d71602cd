package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/domain"
)

type credentialEntry struct {
	creds      domain.AWSCredentials
	expiration time.Time
}

// AccountContext owns the local client and, when a remote role is configured,
// a client for the bootstrap network's side of the peering.
type AccountContext struct {
	baseConfig    aws.Config
	remoteRoleARN string
	stsClient     *sts.Client
	local         *Client
	remote        *Client
	remoteCreds   credentialEntry
	accountID     string
	log           *logrus.Entry
	mu            sync.RWMutex
}

func NewAccountContext(cfg aws.Config, remoteRoleARN string, log *logrus.Entry) *AccountContext {
	return &AccountContext{
		baseConfig:    cfg,
		remoteRoleARN: remoteRoleARN,
		stsClient:     sts.NewFromConfig(cfg, func(o *sts.Options) { o.Retryer = newRetryer() }),
		local:         NewClient(cfg, log),
		log:           log,
	}
}

func (a *AccountContext) Local() domain.NetworkClient {
	return a.local
}

// AccountID returns the account of the calling principal.
func (a *AccountContext) AccountID(ctx context.Context) (string, error) {
	a.mu.RLock()
	id := a.accountID
	a.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	out, err := a.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}

	a.mu.Lock()
	a.accountID = derefString(out.Account)
	a.mu.Unlock()
	return derefString(out.Account), nil
}

// PeerAccountID returns the account that owns the peer network. Without a
// remote role it is the caller's account; otherwise it is the role's account.
func (a *AccountContext) PeerAccountID(ctx context.Context) (string, error) {
	if a.remoteRoleARN == "" {
		return a.AccountID(ctx)
	}
	parsed, err := arn.Parse(a.remoteRoleARN)
	if err != nil {
		return "", fmt.Errorf("parse remote role %s: %w", a.remoteRoleARN, err)
	}
	return parsed.AccountID, nil
}

// Remote returns the client used for routes in the peer's route tables. With
// no remote role the local client is returned.
func (a *AccountContext) Remote(ctx context.Context) (domain.NetworkClient, error) {
	if a.remoteRoleARN == "" {
		return a.local, nil
	}

	a.mu.RLock()
	client, entry := a.remote, a.remoteCreds
	a.mu.RUnlock()
	if client != nil && time.Now().Add(5*time.Minute).Before(entry.expiration) {
		return client, nil
	}

	creds, err := a.assumeRole(ctx)
	if err != nil {
		return nil, err
	}

	cfg := a.baseConfig.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID,
		creds.SecretAccessKey,
		creds.SessionToken,
	)
	client = NewClient(cfg, a.log.WithField("side", "remote"))

	a.mu.Lock()
	a.remote = client
	a.remoteCreds = credentialEntry{creds: creds, expiration: creds.Expiration}
	a.mu.Unlock()
	return client, nil
}

func (a *AccountContext) assumeRole(ctx context.Context) (domain.AWSCredentials, error) {
	out, err := a.stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(a.remoteRoleARN),
		RoleSessionName: aws.String("strata-peering"),
		DurationSeconds: aws.Int32(3600),
	})
	if err != nil {
		return domain.AWSCredentials{}, fmt.Errorf("assume role %s: %w", a.remoteRoleARN, err)
	}

	return domain.AWSCredentials{
		AccessKeyID:     derefString(out.Credentials.AccessKeyId),
		SecretAccessKey: derefString(out.Credentials.SecretAccessKey),
		SessionToken:    derefString(out.Credentials.SessionToken),
		Expiration:      aws.ToTime(out.Credentials.Expiration),
	}, nil
}
