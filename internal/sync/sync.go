// Package sync orchestrates fetch-then-upsert passes from the host into
// the warehouse, one repository at a time. Surfaces run in a fixed order
// and a failed surface is recorded as a warning without aborting the rest.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/greport/greport/internal/db"
	"github.com/greport/greport/internal/github"
)

// DefaultOverlap is subtracted from the last sync timestamp when building
// an incremental `since`, absorbing clock skew and late-arriving events.
const DefaultOverlap = time.Hour

// Coordinator runs sync passes against the warehouse.
type Coordinator struct {
	db       *db.DB
	registry *github.Registry
	overlap  time.Duration
	log      *logrus.Entry
	now      func() time.Time
}

// Options tune a Coordinator. Zero values take the defaults.
type Options struct {
	Overlap time.Duration
	Log     *logrus.Entry
}

// New creates a coordinator over a warehouse and credential registry.
func New(database *db.DB, registry *github.Registry, opts Options) *Coordinator {
	if opts.Overlap <= 0 {
		opts.Overlap = DefaultOverlap
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Coordinator{
		db:       database,
		registry: registry,
		overlap:  opts.Overlap,
		log:      opts.Log,
		now:      time.Now,
	}
}

// Result reports one repository's sync pass.
type Result struct {
	Repository       string    `json:"repository"`
	Success          bool      `json:"success"`
	MilestonesSynced int       `json:"milestones_synced"`
	IssuesSynced     int       `json:"issues_synced"`
	EventsSynced     int       `json:"events_synced"`
	PullsSynced      int       `json:"pulls_synced"`
	ReleasesSynced   int       `json:"releases_synced"`
	Warnings         []string  `json:"warnings"`
	SyncedAt         time.Time `json:"synced_at"`
}

// SyncRepository runs one full pass for a repository. Surfaces are
// sequenced: repository meta, milestones, issues, issue events, pulls,
// releases. The repository fetch itself is fatal; everything after it
// degrades to warnings. force disables incremental fetching.
func (c *Coordinator) SyncRepository(ctx context.Context, owner, name string, force bool) (*Result, error) {
	fullName := owner + "/" + name
	log := c.log.WithField("repository", fullName)
	started := c.now().UTC()

	client, err := c.registry.ClientFor(owner)
	if err != nil {
		return nil, err
	}

	repo, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		recordSync(fullName, "failed")
		return nil, fmt.Errorf("failed to fetch repository %s: %w", fullName, err)
	}
	if c.registry.HasOrg(owner) {
		repo.Org = owner
	}
	if err := c.db.UpsertRepository(repo); err != nil {
		recordSync(fullName, "failed")
		return nil, err
	}

	status, err := c.db.GetSyncStatus(repo.ID)
	if err != nil {
		return nil, err
	}
	// A recorded error poisons the incremental watermark, so the next
	// pass refetches everything.
	full := force || status == nil || status.LastError != ""

	result := &Result{Repository: fullName, Warnings: []string{}, SyncedAt: started}
	var warnings *multierror.Error

	surface := func(s db.Surface, run func() (int, error)) {
		count, err := run()
		if err != nil {
			warnings = multierror.Append(warnings,
				fmt.Errorf("%s: %w", s, err))
			recordSurfaceFailure(string(s))
			log.WithField("surface", s).WithError(err).Warn("surface sync failed")
			return
		}
		observeSynced(string(s), count)
		if err := c.db.MarkSurfaceSynced(repo.ID, s, c.now().UTC()); err != nil {
			warnings = multierror.Append(warnings, err)
		}
	}

	surface(db.SurfaceMilestones, func() (int, error) {
		milestones, err := client.ListMilestones(ctx, owner, name)
		if err != nil {
			return 0, err
		}
		if err := c.db.UpsertMilestones(repo.ID, milestones); err != nil {
			return 0, err
		}
		result.MilestonesSynced = len(milestones)
		return len(milestones), nil
	})

	var issuesWatermark *time.Time
	if status != nil {
		issuesWatermark = status.IssuesSyncedAt
	}

	var issueNumbers []int
	surface(db.SurfaceIssues, func() (int, error) {
		since := c.sinceFor(full, issuesWatermark)
		issues, err := client.ListIssues(ctx, owner, name, since)
		if err != nil {
			return 0, err
		}
		if err := c.db.UpsertIssues(repo.ID, issues); err != nil {
			return 0, err
		}
		result.IssuesSynced = len(issues)
		for _, issue := range issues {
			issueNumbers = append(issueNumbers, issue.Number)
		}
		return len(issues), nil
	})

	surface(db.SurfaceEvents, func() (int, error) {
		// Timeline fetches are per issue, so only the issues touched by
		// this pass are revisited.
		total := 0
		for _, number := range issueNumbers {
			events, err := client.ListIssueTimeline(ctx, owner, name, number)
			if err != nil {
				return total, fmt.Errorf("issue #%d timeline: %w", number, err)
			}
			if err := c.db.UpsertIssueEvents(repo.ID, events); err != nil {
				return total, err
			}
			total += len(events)
		}
		result.EventsSynced = total
		return total, nil
	})

	surface(db.SurfacePulls, func() (int, error) {
		pulls, err := client.ListPulls(ctx, owner, name)
		if err != nil {
			return 0, err
		}
		if err := c.db.UpsertPulls(repo.ID, pulls); err != nil {
			return 0, err
		}
		result.PullsSynced = len(pulls)
		return len(pulls), nil
	})

	surface(db.SurfaceReleases, func() (int, error) {
		releases, err := client.ListReleases(ctx, owner, name)
		if err != nil {
			return 0, err
		}
		if err := c.db.UpsertReleases(repo.ID, releases); err != nil {
			return 0, err
		}
		result.ReleasesSynced = len(releases)
		return len(releases), nil
	})

	if warnings.ErrorOrNil() != nil {
		for _, werr := range warnings.Errors {
			result.Warnings = append(result.Warnings, werr.Error())
		}
		if err := c.db.RecordSyncError(repo.ID, warnings.Error(), c.now().UTC()); err != nil {
			log.WithError(err).Error("failed to record sync error")
		}
		recordSync(fullName, "partial")
	} else {
		result.Success = true
		recordSync(fullName, "success")
	}

	log.WithFields(logrus.Fields{
		"issues":     result.IssuesSynced,
		"pulls":      result.PullsSynced,
		"milestones": result.MilestonesSynced,
		"releases":   result.ReleasesSynced,
		"events":     result.EventsSynced,
		"warnings":   len(result.Warnings),
		"elapsed":    c.now().Sub(started).Round(time.Millisecond),
	}).Info("repository synced")
	return result, nil
}

// sinceFor builds the incremental watermark for a surface, zero when a
// full pass is wanted or the surface has never completed.
func (c *Coordinator) sinceFor(full bool, syncedAt *time.Time) time.Time {
	if full || syncedAt == nil {
		return time.Time{}
	}
	return syncedAt.Add(-c.overlap)
}
