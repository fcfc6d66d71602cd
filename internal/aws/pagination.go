package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// ec2Pager is the method set every generated EC2 paginator has.
type ec2Pager[Page any] interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*ec2.Options)) (Page, error)
}

// drainPages collects every item of an EC2 paginator.
func drainPages[Page any, Item any](ctx context.Context, p ec2Pager[Page], extract func(Page) []Item) ([]Item, error) {
	return CollectPages(ctx, p.HasMorePages, func(ctx context.Context) (Page, error) {
		return p.NextPage(ctx)
	}, extract)
}

// CollectPages flattens pages into one slice, stopping at the first page error.
func CollectPages[Page any, Item any](
	ctx context.Context,
	hasMore func() bool,
	nextPage func(context.Context) (Page, error),
	extract func(Page) []Item,
) ([]Item, error) {
	var items []Item
	for hasMore() {
		page, err := nextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, extract(page)...)
	}
	return items, nil
}
