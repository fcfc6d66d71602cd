package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/domain"
)

func (c *Client) EnsureVPC(ctx context.Context, req domain.VPCRequest) (*domain.VPCData, error) {
	out, err := c.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{logicalIDFilter(req.LogicalID)},
	})
	if err != nil {
		return nil, fmt.Errorf("describe vpc %s: %w", req.LogicalID, err)
	}

	var vpc *ec2types.Vpc
	if len(out.Vpcs) > 0 {
		vpc = &out.Vpcs[0]
		if cidr := derefString(vpc.CidrBlock); cidr != req.CIDR {
			return nil, fmt.Errorf("vpc %s exists with cidr %s, want %s", derefString(vpc.VpcId), cidr, req.CIDR)
		}
	} else {
		created, err := c.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
			CidrBlock:         aws.String(req.CIDR),
			TagSpecifications: tagSpec(ec2types.ResourceTypeVpc, req.LogicalID, req.Tags),
		})
		if err != nil {
			return nil, fmt.Errorf("create vpc %s: %w", req.LogicalID, err)
		}
		vpc = created.Vpc
		c.log.WithField("vpc", derefString(vpc.VpcId)).Info("created vpc")

		waiter := ec2.NewVpcAvailableWaiter(c.ec2Client)
		if err := waiter.Wait(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{derefString(vpc.VpcId)}}, 5*time.Minute); err != nil {
			return nil, fmt.Errorf("wait for vpc %s: %w", derefString(vpc.VpcId), err)
		}
	}

	vpcID := derefString(vpc.VpcId)
	// EC2 accepts a single attribute per ModifyVpcAttribute call.
	for _, in := range []*ec2.ModifyVpcAttributeInput{
		{VpcId: aws.String(vpcID), EnableDnsSupport: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
		{VpcId: aws.String(vpcID), EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)}},
	} {
		if _, err := c.ec2Client.ModifyVpcAttribute(ctx, in); err != nil {
			return nil, fmt.Errorf("enable dns on vpc %s: %w", vpcID, err)
		}
	}

	mainRtID, err := c.findMainRouteTable(ctx, vpcID)
	if err != nil {
		return nil, fmt.Errorf("describe main route table for vpc %s: %w", vpcID, err)
	}
	defaultSGID, err := c.findDefaultSecurityGroup(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	return toVPCData(vpc, mainRtID, defaultSGID), nil
}

func (c *Client) findMainRouteTable(ctx context.Context, vpcID string) (string, error) {
	out, err := c.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("association.main"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(out.RouteTables) > 0 {
		return derefString(out.RouteTables[0].RouteTableId), nil
	}
	return "", nil
}

func (c *Client) findDefaultSecurityGroup(ctx context.Context, vpcID string) (string, error) {
	out, err := c.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("group-name"), Values: []string{"default"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe default security group for vpc %s: %w", vpcID, err)
	}
	if len(out.SecurityGroups) == 0 {
		return "", fmt.Errorf("default security group for vpc %s not found", vpcID)
	}
	return derefString(out.SecurityGroups[0].GroupId), nil
}

func (c *Client) EnsureInternetGateway(ctx context.Context, req domain.InternetGatewayRequest) (string, error) {
	out, err := c.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{logicalIDFilter(req.LogicalID)},
	})
	if err != nil {
		return "", fmt.Errorf("describe internet gateway %s: %w", req.LogicalID, err)
	}

	var igwID string
	attached := false
	if len(out.InternetGateways) > 0 {
		igw := out.InternetGateways[0]
		igwID = derefString(igw.InternetGatewayId)
		for _, att := range igw.Attachments {
			if derefString(att.VpcId) == req.VPCID {
				attached = true
			}
		}
	} else {
		created, err := c.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
			TagSpecifications: tagSpec(ec2types.ResourceTypeInternetGateway, req.LogicalID, req.Tags),
		})
		if err != nil {
			return "", fmt.Errorf("create internet gateway %s: %w", req.LogicalID, err)
		}
		igwID = derefString(created.InternetGateway.InternetGatewayId)
	}

	if !attached {
		_, err := c.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(req.VPCID),
		})
		if err != nil {
			return "", fmt.Errorf("attach internet gateway %s to %s: %w", igwID, req.VPCID, err)
		}
	}
	return igwID, nil
}

func (c *Client) EnsureSubnet(ctx context.Context, req domain.SubnetRequest) (*domain.SubnetData, error) {
	out, err := c.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{req.VPCID}},
			logicalIDFilter(req.LogicalID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("describe subnet %s: %w", req.LogicalID, err)
	}
	if len(out.Subnets) > 0 {
		return existingSubnet(&out.Subnets[0], req)
	}

	created, err := c.ec2Client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             aws.String(req.VPCID),
		CidrBlock:         aws.String(req.CIDR),
		AvailabilityZone:  aws.String(req.Zone),
		TagSpecifications: tagSpec(ec2types.ResourceTypeSubnet, req.LogicalID, req.Tags),
	})
	if err != nil {
		return nil, fmt.Errorf("create subnet %s: %w", req.LogicalID, err)
	}
	subnet := created.Subnet

	if req.MapPublicIP {
		_, err := c.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            subnet.SubnetId,
			MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("enable public ip mapping on %s: %w", derefString(subnet.SubnetId), err)
		}
	}
	return toSubnetData(subnet), nil
}

// existingSubnet accepts a subnet found by logical id only if it still has
// the requested range; a mismatch means the layout drifted since it was made.
func existingSubnet(subnet *ec2types.Subnet, req domain.SubnetRequest) (*domain.SubnetData, error) {
	if cidr := derefString(subnet.CidrBlock); cidr != req.CIDR {
		return nil, fmt.Errorf("subnet %s exists with cidr %s, want %s", derefString(subnet.SubnetId), cidr, req.CIDR)
	}
	return toSubnetData(subnet), nil
}

func (c *Client) EnsureRouteTable(ctx context.Context, req domain.RouteTableRequest) (string, error) {
	out, err := c.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{req.VPCID}},
			logicalIDFilter(req.LogicalID),
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe route table %s: %w", req.LogicalID, err)
	}

	var rt *ec2types.RouteTable
	if len(out.RouteTables) > 0 {
		rt = &out.RouteTables[0]
	} else {
		created, err := c.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
			VpcId:             aws.String(req.VPCID),
			TagSpecifications: tagSpec(ec2types.ResourceTypeRouteTable, req.LogicalID, req.Tags),
		})
		if err != nil {
			return "", fmt.Errorf("create route table %s: %w", req.LogicalID, err)
		}
		rt = created.RouteTable
	}

	rtID := derefString(rt.RouteTableId)
	if req.SubnetID == "" {
		return rtID, nil
	}
	for _, assoc := range rt.Associations {
		if derefString(assoc.SubnetId) == req.SubnetID {
			return rtID, nil
		}
	}
	_, err = c.ec2Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(rtID),
		SubnetId:     aws.String(req.SubnetID),
	})
	if err != nil {
		return "", fmt.Errorf("associate route table %s with %s: %w", rtID, req.SubnetID, err)
	}
	return rtID, nil
}

func (c *Client) EnsureNATGateway(ctx context.Context, req domain.NATGatewayRequest) (string, error) {
	out, err := c.ec2Client.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		Filter: []ec2types.Filter{
			logicalIDFilter(req.LogicalID),
			{Name: aws.String("state"), Values: []string{"pending", "available"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe nat gateway %s: %w", req.LogicalID, err)
	}

	var natID string
	if len(out.NatGateways) > 0 {
		natID = derefString(out.NatGateways[0].NatGatewayId)
	} else {
		allocationID, err := c.ensureElasticIP(ctx, req.LogicalID+"-eip", req.Tags)
		if err != nil {
			return "", err
		}
		created, err := c.ec2Client.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
			SubnetId:          aws.String(req.SubnetID),
			AllocationId:      aws.String(allocationID),
			ClientToken:       aws.String(clientToken(req.LogicalID)),
			TagSpecifications: tagSpec(ec2types.ResourceTypeNatgateway, req.LogicalID, req.Tags),
		})
		if err != nil {
			return "", fmt.Errorf("create nat gateway %s: %w", req.LogicalID, err)
		}
		natID = derefString(created.NatGateway.NatGatewayId)
		c.log.WithField("nat_gateway", natID).Info("created nat gateway")
	}

	waiter := ec2.NewNatGatewayAvailableWaiter(c.ec2Client)
	err = waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{natID}}, natGatewayWaitTimeout)
	if err != nil {
		return "", fmt.Errorf("wait for nat gateway %s: %w", natID, err)
	}
	return natID, nil
}

func (c *Client) ensureElasticIP(ctx context.Context, logicalID string, tags domain.Tags) (string, error) {
	out, err := c.ec2Client.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		Filters: []ec2types.Filter{logicalIDFilter(logicalID)},
	})
	if err != nil {
		return "", fmt.Errorf("describe elastic ip %s: %w", logicalID, err)
	}
	if len(out.Addresses) > 0 {
		return derefString(out.Addresses[0].AllocationId), nil
	}

	created, err := c.ec2Client.AllocateAddress(ctx, &ec2.AllocateAddressInput{
		Domain:            ec2types.DomainTypeVpc,
		TagSpecifications: tagSpec(ec2types.ResourceTypeElasticIp, logicalID, tags),
	})
	if err != nil {
		return "", fmt.Errorf("allocate elastic ip %s: %w", logicalID, err)
	}
	return derefString(created.AllocationId), nil
}

// EnsureRoute creates the route, or replaces it when the destination already
// routes to a different target.
func (c *Client) EnsureRoute(ctx context.Context, req domain.RouteRequest) error {
	in := &ec2.CreateRouteInput{
		RouteTableId:         aws.String(req.RouteTableID),
		DestinationCidrBlock: aws.String(req.DestinationCIDR),
	}
	if err := setRouteTarget(req.Target, &in.GatewayId, &in.NatGatewayId, &in.VpcPeeringConnectionId); err != nil {
		return err
	}

	_, err := c.ec2Client.CreateRoute(ctx, in)
	if err == nil {
		return nil
	}
	if apiErrorCode(err) != "RouteAlreadyExists" {
		return fmt.Errorf("create route %s -> %s in %s: %w", req.DestinationCIDR, req.Target.ID, req.RouteTableID, err)
	}

	rt, err := c.describeRouteTable(ctx, req.RouteTableID)
	if err != nil {
		return err
	}
	for _, r := range rt.Routes {
		if derefString(r.DestinationCidrBlock) == req.DestinationCIDR && routeTargetMatches(r, req.Target) {
			return nil
		}
	}

	replace := &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(req.RouteTableID),
		DestinationCidrBlock: aws.String(req.DestinationCIDR),
	}
	if err := setRouteTarget(req.Target, &replace.GatewayId, &replace.NatGatewayId, &replace.VpcPeeringConnectionId); err != nil {
		return err
	}
	if _, err := c.ec2Client.ReplaceRoute(ctx, replace); err != nil {
		return fmt.Errorf("replace route %s in %s: %w", req.DestinationCIDR, req.RouteTableID, err)
	}
	c.log.WithFields(logrus.Fields{
		"route_table": req.RouteTableID,
		"destination": req.DestinationCIDR,
		"target":      req.Target.ID,
	}).Info("replaced route")
	return nil
}

func setRouteTarget(target domain.RouteTarget, gatewayID, natGatewayID, peeringID **string) error {
	switch target.Type {
	case domain.RouteTargetInternetGateway:
		*gatewayID = aws.String(target.ID)
	case domain.RouteTargetNATGateway:
		*natGatewayID = aws.String(target.ID)
	case domain.RouteTargetVPCPeering:
		*peeringID = aws.String(target.ID)
	default:
		return fmt.Errorf("unsupported route target type %q", target.Type)
	}
	return nil
}

func (c *Client) describeRouteTable(ctx context.Context, rtID string) (*ec2types.RouteTable, error) {
	out, err := c.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{rtID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe route table %s: %w", rtID, err)
	}
	if len(out.RouteTables) == 0 {
		return nil, fmt.Errorf("route table %s not found", rtID)
	}
	return &out.RouteTables[0], nil
}

// GetRouteTable is not cached: routes and tags change during a run.
func (c *Client) GetRouteTable(ctx context.Context, rtID string) (*domain.RouteTableData, error) {
	rt, err := c.describeRouteTable(ctx, rtID)
	if err != nil {
		return nil, err
	}
	return toRouteTableData(rt), nil
}

func (c *Client) GetRouteTableTags(ctx context.Context, rtID string) (domain.Tags, error) {
	rt, err := c.describeRouteTable(ctx, rtID)
	if err != nil {
		return nil, err
	}
	return fromEC2Tags(rt.Tags), nil
}

func (c *Client) GetSecurityGroup(ctx context.Context, sgID string) (*domain.SecurityGroupData, error) {
	sg, err := c.describeSecurityGroup(ctx, sgID)
	if err != nil {
		return nil, err
	}
	return toSecurityGroupData(sg), nil
}

func (c *Client) describeSecurityGroup(ctx context.Context, sgID string) (*ec2types.SecurityGroup, error) {
	out, err := c.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{sgID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe security group %s: %w", sgID, err)
	}
	if len(out.SecurityGroups) == 0 {
		return nil, fmt.Errorf("security group %s not found", sgID)
	}
	return &out.SecurityGroups[0], nil
}

// ClearRouteTable deletes every route except the implicit local route, which
// EC2 does not allow to be removed.
func (c *Client) ClearRouteTable(ctx context.Context, rtID string, tags domain.Tags) error {
	rt, err := c.describeRouteTable(ctx, rtID)
	if err != nil {
		return err
	}

	for _, r := range rt.Routes {
		if derefString(r.GatewayId) == "local" {
			continue
		}
		in := &ec2.DeleteRouteInput{RouteTableId: aws.String(rtID)}
		switch {
		case r.DestinationCidrBlock != nil:
			in.DestinationCidrBlock = r.DestinationCidrBlock
		case r.DestinationIpv6CidrBlock != nil:
			in.DestinationIpv6CidrBlock = r.DestinationIpv6CidrBlock
		case r.DestinationPrefixListId != nil:
			in.DestinationPrefixListId = r.DestinationPrefixListId
		default:
			continue
		}
		if _, err := c.ec2Client.DeleteRoute(ctx, in); err != nil && apiErrorCode(err) != "InvalidRoute.NotFound" {
			return fmt.Errorf("delete route from %s: %w", rtID, err)
		}
	}
	return c.tagResource(ctx, rtID, tags)
}

// LockSecurityGroup revokes every ingress and egress permission.
func (c *Client) LockSecurityGroup(ctx context.Context, sgID string, tags domain.Tags) error {
	sg, err := c.describeSecurityGroup(ctx, sgID)
	if err != nil {
		return err
	}

	if len(sg.IpPermissions) > 0 {
		_, err := c.ec2Client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(sgID),
			IpPermissions: sg.IpPermissions,
		})
		if err != nil {
			return fmt.Errorf("revoke ingress on %s: %w", sgID, err)
		}
	}
	if len(sg.IpPermissionsEgress) > 0 {
		_, err := c.ec2Client.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       aws.String(sgID),
			IpPermissions: sg.IpPermissionsEgress,
		})
		if err != nil {
			return fmt.Errorf("revoke egress on %s: %w", sgID, err)
		}
	}
	return c.tagResource(ctx, sgID, tags)
}

func (c *Client) tagResource(ctx context.Context, resourceID string, tags domain.Tags) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := c.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{resourceID},
		Tags:      toEC2Tags(tags),
	})
	if err != nil {
		return fmt.Errorf("tag %s: %w", resourceID, err)
	}
	return nil
}
