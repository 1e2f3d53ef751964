package sync

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greport/greport/internal/github"
)

// BatchResult reports a sync pass over the whole tracked-repo set.
type BatchResult struct {
	Results    []*Result `json:"results"`
	TotalRepos int       `json:"total_repos"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	SyncedAt   time.Time `json:"synced_at"`
}

// SyncAll runs a sync over every tracked repository. Repositories sharing
// a credential run sequentially to respect that credential's rate budget;
// distinct credentials run in parallel, one worker each.
func (c *Coordinator) SyncAll(ctx context.Context, force bool) (*BatchResult, error) {
	repos, err := c.db.ListRepositories()
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{
		Results:    []*Result{},
		TotalRepos: len(repos),
		SyncedAt:   c.now().UTC(),
	}
	if len(repos) == 0 {
		return batch, nil
	}

	type repoRef struct{ owner, name, fullName string }
	groups := map[string][]repoRef{}
	for _, repo := range repos {
		owner, name, err := github.ParseFullName(repo.FullName)
		if err != nil {
			c.log.WithField("repository", repo.FullName).WithError(err).Warn("skipping malformed repository row")
			continue
		}
		key := c.registry.CredentialKey(owner)
		groups[key] = append(groups[key], repoRef{owner, name, repo.FullName})
	}

	results := make(chan *Result, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, ref := range group {
				result, err := c.SyncRepository(gctx, ref.owner, ref.name, force)
				if err != nil {
					result = &Result{
						Repository: ref.fullName,
						Warnings:   []string{err.Error()},
						SyncedAt:   c.now().UTC(),
					}
				}
				select {
				case results <- result:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	err = g.Wait()
	close(results)

	for result := range results {
		batch.Results = append(batch.Results, result)
		if result.Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}
	sort.Slice(batch.Results, func(i, j int) bool {
		return batch.Results[i].Repository < batch.Results[j].Repository
	})
	if err != nil {
		return batch, err
	}
	return batch, nil
}
