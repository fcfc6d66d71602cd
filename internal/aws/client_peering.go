package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/eleven-am/strata/internal/domain"
)

var livePeeringStates = []string{
	domain.PeeringStatusInitiating,
	domain.PeeringStatusPendingAcceptance,
	domain.PeeringStatusProvisioning,
	domain.PeeringStatusActive,
}

func (c *Client) EnsurePeeringConnection(ctx context.Context, req domain.PeeringRequest) (string, error) {
	out, err := c.ec2Client.DescribeVpcPeeringConnections(ctx, &ec2.DescribeVpcPeeringConnectionsInput{
		Filters: []ec2types.Filter{
			logicalIDFilter(req.LogicalID),
			{Name: aws.String("requester-vpc-info.vpc-id"), Values: []string{req.VPCID}},
			{Name: aws.String("accepter-vpc-info.vpc-id"), Values: []string{req.PeerVPCID}},
			{Name: aws.String("status-code"), Values: livePeeringStates},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe vpc peering %s: %w", req.LogicalID, err)
	}
	if len(out.VpcPeeringConnections) > 0 {
		return derefString(out.VpcPeeringConnections[0].VpcPeeringConnectionId), nil
	}

	in := &ec2.CreateVpcPeeringConnectionInput{
		VpcId:             aws.String(req.VPCID),
		PeerVpcId:         aws.String(req.PeerVPCID),
		TagSpecifications: tagSpec(ec2types.ResourceTypeVpcPeeringConnection, req.LogicalID, req.Tags),
	}
	if req.PeerOwnerID != "" {
		in.PeerOwnerId = aws.String(req.PeerOwnerID)
	}
	created, err := c.ec2Client.CreateVpcPeeringConnection(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create vpc peering %s: %w", req.LogicalID, err)
	}
	id := derefString(created.VpcPeeringConnection.VpcPeeringConnectionId)
	c.log.WithField("peering", id).Info("requested vpc peering")
	return id, nil
}

// AcceptPeeringConnection accepts a pending request. Accepting an already
// active connection is a no-op.
func (c *Client) AcceptPeeringConnection(ctx context.Context, peeringID string) error {
	pcx, err := c.GetVPCPeering(ctx, peeringID)
	if err != nil {
		return err
	}
	if pcx.Status != domain.PeeringStatusPendingAcceptance {
		return nil
	}
	_, err = c.ec2Client.AcceptVpcPeeringConnection(ctx, &ec2.AcceptVpcPeeringConnectionInput{
		VpcPeeringConnectionId: aws.String(peeringID),
	})
	if err != nil {
		return fmt.Errorf("accept vpc peering %s: %w", peeringID, err)
	}
	return nil
}

func (c *Client) GetVPCPeering(ctx context.Context, peeringID string) (*domain.VPCPeeringData, error) {
	out, err := c.ec2Client.DescribeVpcPeeringConnections(ctx, &ec2.DescribeVpcPeeringConnectionsInput{
		VpcPeeringConnectionIds: []string{peeringID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe vpc peering %s: %w", peeringID, err)
	}
	if len(out.VpcPeeringConnections) == 0 {
		return nil, fmt.Errorf("vpc peering %s not found", peeringID)
	}
	return toVPCPeeringData(&out.VpcPeeringConnections[0]), nil
}
