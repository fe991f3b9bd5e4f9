// run_all.go — Concurrent diagnosis of several targets.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dev-console/pagediag/internal/diagnose"
	"github.com/dev-console/pagediag/internal/driver"
	"github.com/dev-console/pagediag/internal/util"
)

// RunAll diagnoses every target concurrently, each on its own page and
// session. Reports are returned in target order; a target that could not be
// diagnosed leaves a nil slot and contributes to the joined error.
func RunAll(ctx context.Context, opener driver.Opener, targets []string, opts Options) ([]*diagnose.Report, error) {
	reports := make([]*diagnose.Report, len(targets))
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		util.SafeGo(func() {
			defer wg.Done()
			r, err := runOne(ctx, opener, target, opts)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", target, err)
				return
			}
			reports[i] = r
		})
	}
	wg.Wait()
	return reports, errors.Join(errs...)
}

func runOne(ctx context.Context, opener driver.Opener, target string, opts Options) (*diagnose.Report, error) {
	page, err := opener.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()
	return Run(ctx, page, target, opts)
}
