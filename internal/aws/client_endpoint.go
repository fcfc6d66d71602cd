package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/samber/lo"

	"github.com/eleven-am/strata/internal/domain"
)

func (c *Client) EnsureSecurityGroup(ctx context.Context, req domain.SecurityGroupRequest) (string, error) {
	out, err := c.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{req.VPCID}},
			{Name: aws.String("group-name"), Values: []string{req.Name}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe security group %s: %w", req.Name, err)
	}

	var sgID string
	if len(out.SecurityGroups) > 0 {
		sgID = derefString(out.SecurityGroups[0].GroupId)
	} else {
		created, err := c.ec2Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName:         aws.String(req.Name),
			Description:       aws.String(req.Description),
			VpcId:             aws.String(req.VPCID),
			TagSpecifications: tagSpec(ec2types.ResourceTypeSecurityGroup, req.LogicalID, req.Tags),
		})
		if err != nil {
			return "", fmt.Errorf("create security group %s: %w", req.Name, err)
		}
		sgID = derefString(created.GroupId)
	}

	if len(req.Ingress) > 0 {
		_, err := c.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(sgID),
			IpPermissions: toIPPermissions(req.Ingress),
		})
		if err != nil && apiErrorCode(err) != "InvalidPermission.Duplicate" {
			return "", fmt.Errorf("authorize ingress on %s: %w", sgID, err)
		}
	}
	if len(req.Egress) > 0 {
		_, err := c.ec2Client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(sgID),
			IpPermissions: toIPPermissions(req.Egress),
		})
		if err != nil && apiErrorCode(err) != "InvalidPermission.Duplicate" {
			return "", fmt.Errorf("authorize egress on %s: %w", sgID, err)
		}
	}
	return sgID, nil
}

// EnsureVPCEndpoint is idempotent by service name within the VPC. An existing
// gateway endpoint is converged by adding any missing route tables.
func (c *Client) EnsureVPCEndpoint(ctx context.Context, req domain.EndpointRequest) (string, error) {
	existing, err := c.findVPCEndpoint(ctx, req.VPCID, req.ServiceName)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if req.Kind == domain.EndpointGateway {
			missing, _ := lo.Difference(req.RouteTableIDs, existing.RouteTableIDs)
			if len(missing) > 0 {
				_, err := c.ec2Client.ModifyVpcEndpoint(ctx, &ec2.ModifyVpcEndpointInput{
					VpcEndpointId:    aws.String(existing.ID),
					AddRouteTableIds: missing,
				})
				if err != nil {
					return "", fmt.Errorf("add route tables to endpoint %s: %w", existing.ID, err)
				}
			}
		}
		return existing.ID, nil
	}

	in := &ec2.CreateVpcEndpointInput{
		VpcId:             aws.String(req.VPCID),
		ServiceName:       aws.String(req.ServiceName),
		ClientToken:       aws.String(clientToken(req.LogicalID)),
		TagSpecifications: tagSpec(ec2types.ResourceTypeVpcEndpoint, req.LogicalID, req.Tags),
	}
	switch req.Kind {
	case domain.EndpointGateway:
		in.VpcEndpointType = ec2types.VpcEndpointTypeGateway
		in.RouteTableIds = req.RouteTableIDs
	case domain.EndpointInterface:
		in.VpcEndpointType = ec2types.VpcEndpointTypeInterface
		in.SubnetIds = req.SubnetIDs
		in.SecurityGroupIds = req.SecurityGroupIDs
		in.PrivateDnsEnabled = aws.Bool(req.PrivateDNS)
	}

	out, err := c.ec2Client.CreateVpcEndpoint(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create %s endpoint %s: %w", req.Kind, req.ServiceName, err)
	}
	id := derefString(out.VpcEndpoint.VpcEndpointId)
	c.log.WithField("endpoint", id).WithField("service", req.ServiceName).Info("created vpc endpoint")
	return id, nil
}

func (c *Client) findVPCEndpoint(ctx context.Context, vpcID, serviceName string) (*domain.VPCEndpointData, error) {
	input := &ec2.DescribeVpcEndpointsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("service-name"), Values: []string{serviceName}},
		},
	}
	paginator := ec2.NewDescribeVpcEndpointsPaginator(c.ec2Client, input)
	endpoints, err := drainPages[*ec2.DescribeVpcEndpointsOutput, ec2types.VpcEndpoint](ctx, paginator,
		func(out *ec2.DescribeVpcEndpointsOutput) []ec2types.VpcEndpoint {
			return out.VpcEndpoints
		})
	if err != nil {
		return nil, fmt.Errorf("describe vpc endpoints for %s: %w", serviceName, err)
	}

	for i := range endpoints {
		switch endpoints[i].State {
		case ec2types.StateDeleted, ec2types.StateDeleting, ec2types.StateFailed, ec2types.StateRejected:
			continue
		}
		return toVPCEndpointData(&endpoints[i]), nil
	}
	return nil, nil
}
