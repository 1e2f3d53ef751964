package metrics

import (
	"sort"

	"github.com/greport/greport/internal/models"
)

// notesSectionOrder fixes the rendering order of release-note sections.
var notesSectionOrder = []string{
	"Breaking Changes",
	"Security",
	"New Features",
	"Enhancements",
	"Bug Fixes",
	"Performance",
	"Documentation",
	"Deprecations",
	"Other",
}

// notesLabelSections maps entry labels to their section.
var notesLabelSections = map[string]string{
	"bug":           "Bug Fixes",
	"feature":       "New Features",
	"enhancement":   "Enhancements",
	"documentation": "Documentation",
	"docs":          "Documentation",
	"breaking":      "Breaking Changes",
	"security":      "Security",
	"performance":   "Performance",
	"perf":          "Performance",
	"deprecation":   "Deprecations",
	"deprecated":    "Deprecations",
}

// NotesEntry is one issue or pull in generated release notes.
type NotesEntry struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	IsPull bool   `json:"is_pull"`
}

// NotesSection groups entries under one heading.
type NotesSection struct {
	Title   string       `json:"title"`
	Entries []NotesEntry `json:"entries"`
}

// NotesStats summarizes the generated notes.
type NotesStats struct {
	IssuesClosed int `json:"issues_closed"`
	PullsMerged  int `json:"pulls_merged"`
	Contributors int `json:"contributors"`
}

// ReleaseNotes are generated from a milestone's closed issues and
// merged pulls.
type ReleaseNotes struct {
	Milestone    string         `json:"milestone"`
	Sections     []NotesSection `json:"sections"`
	Contributors []string       `json:"contributors"`
	Stats        NotesStats     `json:"stats"`
}

// sectionFor picks the highest-priority section any of the labels maps
// to, per the fixed section order.
func sectionFor(labels []string) string {
	best := "Other"
	bestRank := len(notesSectionOrder)
	for _, label := range labels {
		section, ok := notesLabelSections[label]
		if !ok {
			continue
		}
		for rank, title := range notesSectionOrder {
			if title == section && rank < bestRank {
				best = section
				bestRank = rank
				break
			}
		}
	}
	return best
}

// ComputeReleaseNotes categorizes a milestone's closed issues and merged
// pulls by label, collecting contributors along the way.
func ComputeReleaseNotes(milestone *models.Milestone, issues []*models.Issue, pulls []*models.PullRequest) *ReleaseNotes {
	notes := &ReleaseNotes{
		Milestone:    milestone.Title,
		Sections:     []NotesSection{},
		Contributors: []string{},
	}

	bySection := make(map[string][]NotesEntry)
	contributors := make(map[string]bool)

	for _, issue := range issues {
		if issue.State != "closed" || issue.MilestoneID == nil || *issue.MilestoneID != milestone.ID {
			continue
		}
		notes.Stats.IssuesClosed++
		if issue.AuthorLogin != "" {
			contributors[issue.AuthorLogin] = true
		}
		section := sectionFor(issue.Labels)
		bySection[section] = append(bySection[section], NotesEntry{
			Number: issue.Number,
			Title:  issue.Title,
			Author: issue.AuthorLogin,
		})
	}

	for _, pr := range pulls {
		if !pr.Merged {
			continue
		}
		notes.Stats.PullsMerged++
		if pr.AuthorLogin != "" {
			contributors[pr.AuthorLogin] = true
		}
		section := sectionFor(pr.Labels)
		bySection[section] = append(bySection[section], NotesEntry{
			Number: pr.Number,
			Title:  pr.Title,
			Author: pr.AuthorLogin,
			IsPull: true,
		})
	}

	for _, title := range notesSectionOrder {
		entries := bySection[title]
		if len(entries) == 0 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Number < entries[j].Number
		})
		notes.Sections = append(notes.Sections, NotesSection{Title: title, Entries: entries})
	}

	for login := range contributors {
		notes.Contributors = append(notes.Contributors, login)
	}
	sort.Strings(notes.Contributors)
	notes.Stats.Contributors = len(notes.Contributors)
	return notes
}
