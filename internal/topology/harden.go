package topology

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/strata/internal/domain"
)

// Hardener locks down the defaults EC2 creates with every VPC: the main
// route table loses every route but the implicit local one, and the default
// security group loses every rule.
type Hardener struct {
	client domain.NetworkClient
	naming domain.Naming
	log    *logrus.Entry
}

func NewHardener(client domain.NetworkClient, naming domain.Naming, log *logrus.Entry) *Hardener {
	return &Hardener{client: client, naming: naming, log: log.WithField("component", "harden")}
}

// Harden overwrites the defaults of network. Applying it twice is a no-op.
func (h *Hardener) Harden(ctx context.Context, network *domain.Network) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.client.ClearRouteTable(gCtx, network.MainRouteTableID, h.naming.BaseTags())
	})
	g.Go(func() error {
		return h.client.LockSecurityGroup(gCtx, network.DefaultSecurityGroupID, h.naming.Tagged("default"))
	})
	if err := g.Wait(); err != nil {
		return err
	}

	h.log.WithFields(logrus.Fields{
		"routeTable":    network.MainRouteTableID,
		"securityGroup": network.DefaultSecurityGroupID,
	}).Info("vpc defaults hardened")
	return nil
}
