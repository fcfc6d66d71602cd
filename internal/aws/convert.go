package aws

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/eleven-am/strata/internal/domain"
)

func toSecurityGroupData(sg *ec2types.SecurityGroup) *domain.SecurityGroupData {
	return &domain.SecurityGroupData{
		ID:            derefString(sg.GroupId),
		VPCID:         derefString(sg.VpcId),
		Name:          derefString(sg.GroupName),
		InboundRules:  toSecurityGroupRules(sg.IpPermissions),
		OutboundRules: toSecurityGroupRules(sg.IpPermissionsEgress),
	}
}

func toSecurityGroupRules(perms []ec2types.IpPermission) []domain.SecurityGroupRule {
	var rules []domain.SecurityGroupRule
	for _, perm := range perms {
		var ipv4Cidrs []string
		for _, r := range perm.IpRanges {
			if r.CidrIp != nil {
				ipv4Cidrs = append(ipv4Cidrs, *r.CidrIp)
			}
		}

		var ipv6Cidrs []string
		for _, r := range perm.Ipv6Ranges {
			if r.CidrIpv6 != nil {
				ipv6Cidrs = append(ipv6Cidrs, *r.CidrIpv6)
			}
		}

		var referencedSGs []string
		for _, pair := range perm.UserIdGroupPairs {
			if pair.GroupId != nil {
				referencedSGs = append(referencedSGs, *pair.GroupId)
			}
		}

		var prefixListIDs []string
		for _, pl := range perm.PrefixListIds {
			if pl.PrefixListId != nil {
				prefixListIDs = append(prefixListIDs, *pl.PrefixListId)
			}
		}

		rules = append(rules, domain.SecurityGroupRule{
			Protocol:                 protocolNumberToString(derefString(perm.IpProtocol)),
			FromPort:                 int(derefInt32(perm.FromPort)),
			ToPort:                   int(derefInt32(perm.ToPort)),
			CIDRBlocks:               ipv4Cidrs,
			IPv6CIDRBlocks:           ipv6Cidrs,
			ReferencedSecurityGroups: referencedSGs,
			PrefixListIDs:            prefixListIDs,
		})
	}
	return rules
}

// toIPPermissions is the inverse of toSecurityGroupRules for the CIDR based
// rules this tool writes.
func toIPPermissions(rules []domain.SecurityGroupRule) []ec2types.IpPermission {
	perms := make([]ec2types.IpPermission, 0, len(rules))
	for _, rule := range rules {
		perm := ec2types.IpPermission{
			IpProtocol: aws.String(rule.Protocol),
		}
		if rule.Protocol != "-1" {
			perm.FromPort = aws.Int32(int32(rule.FromPort))
			perm.ToPort = aws.Int32(int32(rule.ToPort))
		}
		for _, cidr := range rule.CIDRBlocks {
			perm.IpRanges = append(perm.IpRanges, ec2types.IpRange{CidrIp: aws.String(cidr)})
		}
		for _, cidr := range rule.IPv6CIDRBlocks {
			perm.Ipv6Ranges = append(perm.Ipv6Ranges, ec2types.Ipv6Range{CidrIpv6: aws.String(cidr)})
		}
		perms = append(perms, perm)
	}
	return perms
}

func toSubnetData(subnet *ec2types.Subnet) *domain.SubnetData {
	return &domain.SubnetData{
		ID:        derefString(subnet.SubnetId),
		VPCID:     derefString(subnet.VpcId),
		CIDRBlock: derefString(subnet.CidrBlock),
		Zone:      derefString(subnet.AvailabilityZone),
	}
}

func toRouteTableData(rt *ec2types.RouteTable) *domain.RouteTableData {
	var routes []domain.Route
	for _, r := range rt.Routes {
		route := domain.Route{
			DestinationCIDR:         derefString(r.DestinationCidrBlock),
			DestinationIPv6CIDR:     derefString(r.DestinationIpv6CidrBlock),
			DestinationPrefixListID: derefString(r.DestinationPrefixListId),
		}

		if route.DestinationCIDR != "" {
			route.PrefixLength = prefixLength(route.DestinationCIDR)
		} else if route.DestinationIPv6CIDR != "" {
			route.PrefixLength = prefixLength(route.DestinationIPv6CIDR)
		}

		route.TargetType, route.TargetID = determineRouteTarget(r)
		routes = append(routes, route)
	}

	main := false
	for _, assoc := range rt.Associations {
		if aws.ToBool(assoc.Main) {
			main = true
			break
		}
	}

	return &domain.RouteTableData{
		ID:     derefString(rt.RouteTableId),
		VPCID:  derefString(rt.VpcId),
		Main:   main,
		Tags:   fromEC2Tags(rt.Tags),
		Routes: routes,
	}
}

func determineRouteTarget(r ec2types.Route) (targetType, targetID string) {
	switch {
	case r.GatewayId != nil && strings.HasPrefix(*r.GatewayId, "igw-"):
		return domain.RouteTargetInternetGateway, *r.GatewayId
	case r.GatewayId != nil && strings.HasPrefix(*r.GatewayId, "vgw-"):
		return "vpn-gateway", *r.GatewayId
	case r.GatewayId != nil && strings.HasPrefix(*r.GatewayId, "vpce-"):
		return domain.RouteTargetVPCEndpoint, *r.GatewayId
	case r.GatewayId != nil && *r.GatewayId == "local":
		return domain.RouteTargetLocal, "local"
	case r.NatGatewayId != nil:
		return domain.RouteTargetNATGateway, *r.NatGatewayId
	case r.TransitGatewayId != nil:
		return "transit-gateway", *r.TransitGatewayId
	case r.VpcPeeringConnectionId != nil:
		return domain.RouteTargetVPCPeering, *r.VpcPeeringConnectionId
	case r.NetworkInterfaceId != nil:
		return "network-interface", *r.NetworkInterfaceId
	default:
		return "unknown", ""
	}
}

// routeTargetMatches reports whether an existing route already points at want.
func routeTargetMatches(r ec2types.Route, want domain.RouteTarget) bool {
	gotType, gotID := determineRouteTarget(r)
	return gotType == want.Type && gotID == want.ID
}

func toVPCData(vpc *ec2types.Vpc, mainRtID, defaultSGID string) *domain.VPCData {
	return &domain.VPCData{
		ID:                     derefString(vpc.VpcId),
		CIDRBlock:              derefString(vpc.CidrBlock),
		MainRouteTableID:       mainRtID,
		DefaultSecurityGroupID: defaultSGID,
	}
}

func toVPCEndpointData(ep *ec2types.VpcEndpoint) *domain.VPCEndpointData {
	var sgIDs []string
	for _, sg := range ep.Groups {
		sgIDs = append(sgIDs, derefString(sg.GroupId))
	}
	return &domain.VPCEndpointData{
		ID:             derefString(ep.VpcEndpointId),
		VPCID:          derefString(ep.VpcId),
		ServiceName:    derefString(ep.ServiceName),
		Type:           string(ep.VpcEndpointType),
		State:          string(ep.State),
		RouteTableIDs:  ep.RouteTableIds,
		SubnetIDs:      ep.SubnetIds,
		SecurityGroups: sgIDs,
	}
}

func toVPCPeeringData(pcx *ec2types.VpcPeeringConnection) *domain.VPCPeeringData {
	data := &domain.VPCPeeringData{
		ID: derefString(pcx.VpcPeeringConnectionId),
	}
	if pcx.RequesterVpcInfo != nil {
		data.RequesterVPC = derefString(pcx.RequesterVpcInfo.VpcId)
		data.RequesterOwner = derefString(pcx.RequesterVpcInfo.OwnerId)
	}
	if pcx.AccepterVpcInfo != nil {
		data.AccepterVPC = derefString(pcx.AccepterVpcInfo.VpcId)
		data.AccepterOwner = derefString(pcx.AccepterVpcInfo.OwnerId)
	}
	if pcx.Status != nil {
		data.Status = string(pcx.Status.Code)
	}
	return data
}

func fromEC2Tags(tags []ec2types.Tag) domain.Tags {
	out := make(domain.Tags, len(tags))
	for _, t := range tags {
		if t.Key == nil {
			continue
		}
		out[*t.Key] = derefString(t.Value)
	}
	return out
}

// toEC2Tags emits tags sorted by key so request payloads are stable.
func toEC2Tags(tags domain.Tags) []ec2types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ec2types.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func tagSpec(resourceType ec2types.ResourceType, logicalID string, tags domain.Tags) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{
		ResourceType: resourceType,
		Tags:         toEC2Tags(tags.With(domain.Tags{domain.TagLogicalID: logicalID})),
	}}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt32(i *int32) int32 {
	if i == nil {
		return 0
	}
	return *i
}

func prefixLength(cidr string) int {
	parts := strings.Split(cidr, "/")
	if len(parts) != 2 {
		return 0
	}
	length, _ := strconv.Atoi(parts[1])
	return length
}

func protocolNumberToString(proto string) string {
	switch proto {
	case "-1":
		return "-1"
	case "6":
		return "tcp"
	case "17":
		return "udp"
	case "1":
		return "icmp"
	default:
		return proto
	}
}
