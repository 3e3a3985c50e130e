package scanner

import (
	"context"
	"runtime"
	"sort"
	"sync"
)

// CollectAll scans multiple library roots concurrently with a worker pool.
// Results are merged and sorted by path so repeated scans of the same tree
// produce identical slices. The first error cancels the remaining roots.
func CollectAll(ctx context.Context, roots []string, opts Options, workers int) ([]FileCandidate, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(roots) {
		workers = len(roots)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootChan := make(chan string, len(roots))
	for _, root := range roots {
		rootChan <- root
	}
	close(rootChan)

	var (
		mu         sync.Mutex
		candidates []FileCandidate
		scanErr    error
		errOnce    sync.Once
		wg         sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case root, ok := <-rootChan:
					if !ok {
						return
					}
					found, err := Collect(root, opts)
					if err != nil {
						errOnce.Do(func() {
							scanErr = err
							cancel()
						})
						return
					}
					mu.Lock()
					candidates = append(candidates, found...)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if scanErr != nil {
		return nil, scanErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}
