package scripture

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// expandContext runs the main lookup and both neighbour lookups in parallel
// and joins them; results are merged by field, not completion order.
func expandContext(ctx context.Context, r *Resolver, ref *Reference, ds *Dataset) (*Passage, error) {
	passage := &Passage{
		Reference: ref,
		Prior:     Verses{},
		Next:      Verses{},
	}

	var g errgroup.Group

	g.Go(func() error {
		main, err := r.Resolve(ref.String(), ds)
		if err != nil {
			return err
		}
		passage.Main = main
		return nil
	})

	if ref.VerseStart > 1 {
		g.Go(func() error {
			passage.Prior = r.contextVerse(ctx, ref, ref.VerseStart-1, ds, "prior")
			return nil
		})
	}

	if ref.VerseEnd < MaxNumber {
		g.Go(func() error {
			passage.Next = r.contextVerse(ctx, ref, ref.VerseEnd+1, ds, "next")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return passage, nil
}
