// Package audit checks a provisioned network against what it should look
// like after a run: peering routes in place both ways, and locked defaults.
package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/strata/internal/domain"
)

type Check string

const (
	CheckPeeringLink          Check = "peering-link"
	CheckLocalPeeringRoute    Check = "local-peering-route"
	CheckRemotePeeringRoute   Check = "remote-peering-route"
	CheckDefaultRouteTable    Check = "default-route-table"
	CheckDefaultSecurityGroup Check = "default-security-group"
)

type Finding struct {
	Check    Check
	Resource string
	Reason   string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Check, f.Resource, f.Reason)
}

type Auditor struct {
	accounts    domain.AccountContext
	concurrency int
	log         *logrus.Entry
}

func NewAuditor(accounts domain.AccountContext, concurrency int, log *logrus.Entry) *Auditor {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Auditor{accounts: accounts, concurrency: concurrency, log: log.WithField("component", "audit")}
}

// Audit inspects the network described by out. Provider errors abort the
// audit; anything wrong with the network itself becomes a finding.
func (a *Auditor) Audit(ctx context.Context, out domain.Outputs) ([]Finding, error) {
	local := a.accounts.Local()

	var (
		mu       sync.Mutex
		findings []Finding
	)
	report := func(f Finding) {
		mu.Lock()
		findings = append(findings, f)
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	if out.MainRouteTableID != "" {
		g.Go(func() error {
			return a.checkDefaultRouteTable(gCtx, local, out.MainRouteTableID, report)
		})
	}
	if out.DefaultSecurityGroupID != "" {
		g.Go(func() error {
			return a.checkDefaultSecurityGroup(gCtx, local, out.DefaultSecurityGroupID, report)
		})
	}

	if out.PeeringConnectionID != "" {
		g.Go(func() error {
			return a.checkPeeringLink(gCtx, local, out.PeeringConnectionID, report)
		})
		for _, rtID := range out.PrivateRouteTables {
			g.Go(func() error {
				return a.checkPeeringRoute(gCtx, local, CheckLocalPeeringRoute, rtID, out.PeerCIDR, out.PeeringConnectionID, report)
			})
		}
		if len(out.PeerRouteTables) > 0 {
			remote, err := a.accounts.Remote(ctx)
			if err != nil {
				return nil, err
			}
			for _, rtID := range out.PeerRouteTables {
				g.Go(func() error {
					return a.checkPeeringRoute(gCtx, remote, CheckRemotePeeringRoute, rtID, out.VPCCIDR, out.PeeringConnectionID, report)
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Check != findings[j].Check {
			return findings[i].Check < findings[j].Check
		}
		return findings[i].Resource < findings[j].Resource
	})
	a.log.WithFields(logrus.Fields{
		"vpc":      out.VPCID,
		"findings": len(findings),
	}).Info("audit complete")
	return findings, nil
}

func (a *Auditor) checkPeeringLink(ctx context.Context, client domain.NetworkClient, pcxID string, report func(Finding)) error {
	pcx, err := client.GetVPCPeering(ctx, pcxID)
	if err != nil {
		return err
	}
	if pcx.Status != domain.PeeringStatusActive {
		report(Finding{Check: CheckPeeringLink, Resource: pcxID, Reason: fmt.Sprintf("status is %s", pcx.Status)})
	}
	return nil
}

func (a *Auditor) checkPeeringRoute(ctx context.Context, client domain.NetworkClient, check Check, rtID, dest, pcxID string, report func(Finding)) error {
	data, err := client.GetRouteTable(ctx, rtID)
	if err != nil {
		return err
	}
	rt, err := NewRouteTable(data)
	if err != nil {
		return err
	}
	route, err := rt.Lookup(dest)
	if err != nil {
		return err
	}

	switch {
	case route == nil:
		report(Finding{Check: check, Resource: rtID, Reason: fmt.Sprintf("no route to %s", dest)})
	case route.TargetType != domain.RouteTargetVPCPeering || route.TargetID != pcxID:
		report(Finding{Check: check, Resource: rtID, Reason: fmt.Sprintf("%s routes via %s %s, want %s", dest, route.TargetType, route.TargetID, pcxID)})
	}
	return nil
}

func (a *Auditor) checkDefaultRouteTable(ctx context.Context, client domain.NetworkClient, rtID string, report func(Finding)) error {
	data, err := client.GetRouteTable(ctx, rtID)
	if err != nil {
		return err
	}
	rt, err := NewRouteTable(data)
	if err != nil {
		return err
	}
	if !rt.OnlyLocal() {
		report(Finding{Check: CheckDefaultRouteTable, Resource: rtID, Reason: fmt.Sprintf("%d routes beyond local", len(data.Routes)-countLocal(data.Routes))})
	}
	return nil
}

func (a *Auditor) checkDefaultSecurityGroup(ctx context.Context, client domain.NetworkClient, sgID string, report func(Finding)) error {
	sg, err := client.GetSecurityGroup(ctx, sgID)
	if err != nil {
		return err
	}
	if n := len(sg.InboundRules) + len(sg.OutboundRules); n > 0 {
		report(Finding{Check: CheckDefaultSecurityGroup, Resource: sgID, Reason: fmt.Sprintf("%d ingress and %d egress rules", len(sg.InboundRules), len(sg.OutboundRules))})
	}
	return nil
}

func countLocal(routes []domain.Route) int {
	n := 0
	for _, r := range routes {
		if r.TargetType == domain.RouteTargetLocal {
			n++
		}
	}
	return n
}
