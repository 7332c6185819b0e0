package library

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ac-schroeder/DJApp/internal/logger"
)

// importWorkers bounds concurrent probes.
const importWorkers = 4

// Import probes locators concurrently and appends the readable ones in input
// order. Unreadable files are logged and skipped; only cancellation fails
// the import, in which case nothing is added.
func (l *Library) Import(ctx context.Context, locators []string) ([]Track, error) {
	probed := make([]Track, len(locators))
	ok := make([]bool, len(locators))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(importWorkers)
	for i, loc := range locators {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := l.probe(loc)
			if err != nil {
				return nil // probe logged it
			}
			probed[i], ok[i] = t, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var keep []Track
	for i := range probed {
		if ok[i] {
			keep = append(keep, probed[i])
		}
	}
	added := l.insert(keep...)
	if len(added) > 0 {
		l.saveIfConfigured()
	}
	logger.Info("import finished", logger.Int("requested", len(locators)), logger.Int("added", len(added)))
	return added, nil
}
