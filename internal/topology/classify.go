package topology

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eleven-am/strata/internal/domain"
	"github.com/eleven-am/strata/internal/future"
)

// Classifier selects the private route tables of a network from the tags the
// provider reports for them.
type Classifier struct {
	client domain.NetworkClient
	log    *logrus.Entry
}

func NewClassifier(client domain.NetworkClient, log *logrus.Entry) *Classifier {
	return &Classifier{client: client, log: log.WithField("component", "classify")}
}

// Classify resolves every table's tags independently, waits for all of them,
// then keeps the private tables in input order.
func (c *Classifier) Classify(ctx context.Context, tables *future.Future[[]domain.RouteTable]) *future.Future[[]domain.RouteTable] {
	return future.Then(ctx, tables, func(ctx context.Context, rts []domain.RouteTable) ([]domain.RouteTable, error) {
		fetches := make([]*future.Future[domain.RouteTable], len(rts))
		for i, rt := range rts {
			fetches[i] = future.Go(ctx, func(ctx context.Context) (domain.RouteTable, error) {
				return c.resolve(ctx, rt)
			})
		}

		resolved, err := future.All(ctx, fetches).Await(ctx)
		if err != nil {
			return nil, err
		}

		private := FilterClass(resolved, domain.RouteTableClassPrivate)
		c.log.WithFields(logrus.Fields{
			"tables":  len(rts),
			"private": len(private),
		}).Info("route tables classified")
		return private, nil
	})
}

// resolve reads the SubnetType tag back and checks it against the class the
// table was created with.
func (c *Classifier) resolve(ctx context.Context, rt domain.RouteTable) (domain.RouteTable, error) {
	tags, err := c.client.GetRouteTableTags(ctx, rt.ID)
	if err != nil {
		return domain.RouteTable{}, fmt.Errorf("get tags of route table %s: %w", rt.ID, err)
	}

	observed := domain.ParseRouteTableClass(tags[domain.TagSubnetType])
	if rt.Class != domain.RouteTableClassUnclassified && observed != rt.Class {
		return domain.RouteTable{}, fmt.Errorf("%w: route table %s created as %s, tagged %q",
			domain.ErrTagsNotPropagated, rt.ID, rt.Class, tags[domain.TagSubnetType])
	}
	rt.Class = observed
	return rt, nil
}

// FilterClass keeps the tables of the given class in input order.
func FilterClass(tables []domain.RouteTable, class domain.RouteTableClass) []domain.RouteTable {
	out := make([]domain.RouteTable, 0, len(tables))
	for _, rt := range tables {
		if rt.Class == class {
			out = append(out, rt)
		}
	}
	return out
}
