package stackref

import (
	"context"
	"fmt"
	"sync"

	"github.com/eleven-am/strata/internal/domain"
	"github.com/eleven-am/strata/internal/future"
)

// Reference points at another stack's published outputs. The document is
// fetched once, in the background, the first time Load is called.
type Reference struct {
	store *Store
	uri   string
	once  sync.Once
	doc   *future.Future[domain.Outputs]
}

func (s *Store) Reference(uri string) *Reference {
	return &Reference{store: s, uri: uri}
}

// Outputs returns the document future, starting the fetch if needed.
func (r *Reference) Outputs(ctx context.Context) *future.Future[domain.Outputs] {
	r.once.Do(func() {
		r.doc = future.Go(ctx, func(ctx context.Context) (domain.Outputs, error) {
			return r.store.Read(ctx, r.uri)
		})
	})
	return r.doc
}

// Load exposes the peer's VPC id, address block and private route tables as
// independent futures. A missing vpcId or vpcCidr rejects that value.
func (r *Reference) Load(ctx context.Context) *domain.PeerNetwork {
	doc := r.Outputs(ctx)
	return &domain.PeerNetwork{
		VPCID: future.Then(ctx, doc, func(_ context.Context, out domain.Outputs) (string, error) {
			return r.require("vpcId", out.VPCID)
		}),
		CIDR: future.Then(ctx, doc, func(_ context.Context, out domain.Outputs) (string, error) {
			return r.require("vpcCidr", out.VPCCIDR)
		}),
		RouteTableIDs: future.Then(ctx, doc, func(_ context.Context, out domain.Outputs) ([]string, error) {
			return out.PrivateRouteTables, nil
		}),
	}
}

func (r *Reference) require(key, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("stack output %q missing in %s", key, r.uri)
	}
	return value, nil
}
