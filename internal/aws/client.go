package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/ratelimit"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/domain"
)

// clientTokenNamespace seeds the name-based UUIDs used as EC2 client tokens,
// so a retried create with the same logical id is deduplicated by EC2.
var clientTokenNamespace = uuid.MustParse("5b0f7c36-8f1e-4c63-9f4a-3c1f1f0f8a21")

const natGatewayWaitTimeout = 10 * time.Minute

type Client struct {
	ec2Client *ec2.Client
	region    string
	cache     *ttlCache[[]string]
	log       *logrus.Entry
}

func newRetryer() aws.Retryer {
	return retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = 5
		o.MaxBackoff = 30 * time.Second
		o.Backoff = retry.NewExponentialJitterBackoff(o.MaxBackoff)
		o.RateLimiter = ratelimit.None
	})
}

func NewClient(cfg aws.Config, log *logrus.Entry) *Client {
	retryer := newRetryer()
	return &Client{
		ec2Client: ec2.NewFromConfig(cfg, func(o *ec2.Options) { o.Retryer = retryer }),
		region:    cfg.Region,
		cache:     newTTLCache[[]string](5*time.Minute, 2000),
		log:       log.WithField("region", cfg.Region),
	}
}

func (c *Client) cacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

func clientToken(logicalID string) string {
	return uuid.NewSHA1(clientTokenNamespace, []byte(logicalID)).String()
}

func logicalIDFilter(logicalID string) ec2types.Filter {
	return ec2types.Filter{
		Name:   aws.String("tag:" + domain.TagLogicalID),
		Values: []string{logicalID},
	}
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func (c *Client) AvailabilityZones(ctx context.Context, count int) ([]string, error) {
	key := c.cacheKey("azs", c.region)
	if v, ok := c.cache.get(key); ok {
		return firstN(v, count)
	}
	out, err := c.ec2Client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("state"), Values: []string{"available"}},
			{Name: aws.String("zone-type"), Values: []string{"availability-zone"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describe availability zones: %w", err)
	}

	var zones []string
	for _, az := range out.AvailabilityZones {
		zones = append(zones, derefString(az.ZoneName))
	}
	sort.Strings(zones)
	c.cache.set(key, zones)
	return firstN(zones, count)
}

func firstN(zones []string, count int) ([]string, error) {
	if len(zones) < count {
		return nil, fmt.Errorf("%w: need %d, region has %d", domain.ErrNotEnoughZones, count, len(zones))
	}
	return append([]string(nil), zones[:count]...), nil
}
