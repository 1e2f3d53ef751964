package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greport/greport/internal/models"
)

func TestSlaDefaults(t *testing.T) {
	// Three open issues against the 24h/168h defaults: one fresh, one
	// unanswered past the response window, one long past resolution.
	issues := []*models.Issue{
		openIssue(1, 4*time.Hour),
		openIssue(2, 30*time.Hour),
		openIssue(3, 200*time.Hour),
	}

	report := ComputeSla(issues, nil, DefaultSlaConfig(), testNow)

	assert.Equal(t, 3, report.Summary.TotalOpen)
	assert.Equal(t, 1, report.Summary.WithinSla)
	assert.Equal(t, 1, report.Summary.ResponseBreached)
	assert.Equal(t, 1, report.Summary.ResolutionBreached)
	assert.Zero(t, report.Summary.AtRisk)
	assert.InDelta(t, 33.3, report.Summary.ComplianceRate, 0.001)

	// Breaching sorts oldest first.
	require.Len(t, report.Breaching, 2)
	assert.Equal(t, 3, report.Breaching[0].Number)
	assert.Equal(t, SlaResolutionBreached, report.Breaching[0].Status.Type)
	require.NotNil(t, report.Breaching[0].Status.HoursOverdue)
	assert.InDelta(t, 32.0, *report.Breaching[0].Status.HoursOverdue, 0.001)

	assert.Equal(t, 2, report.Breaching[1].Number)
	assert.Equal(t, SlaResponseBreached, report.Breaching[1].Status.Type)
	require.NotNil(t, report.Breaching[1].Status.HoursOverdue)
	assert.InDelta(t, 6.0, *report.Breaching[1].Status.HoursOverdue, 0.001)
}

func TestSlaResponseEvents(t *testing.T) {
	issue := openIssue(7, 30*time.Hour)
	eventAt := issue.CreatedAt.Add(2 * time.Hour)

	cases := []struct {
		name      string
		event     *models.IssueEvent
		wantType  string
	}{
		{"no events", nil, SlaResponseBreached},
		{"comment by teammate", &models.IssueEvent{IssueNumber: 7, Event: "commented", ActorLogin: "bob", CreatedAt: eventAt}, SlaOk},
		{"assignment counts", &models.IssueEvent{IssueNumber: 7, Event: "assigned", ActorLogin: "bob", CreatedAt: eventAt}, SlaOk},
		{"label counts", &models.IssueEvent{IssueNumber: 7, Event: "labeled", ActorLogin: "bob", CreatedAt: eventAt}, SlaOk},
		{"author comment ignored", &models.IssueEvent{IssueNumber: 7, Event: "commented", ActorLogin: "alice", CreatedAt: eventAt}, SlaResponseBreached},
		{"other issue ignored", &models.IssueEvent{IssueNumber: 8, Event: "commented", ActorLogin: "bob", CreatedAt: eventAt}, SlaResponseBreached},
		{"close event ignored", &models.IssueEvent{IssueNumber: 7, Event: "closed", ActorLogin: "bob", CreatedAt: eventAt}, SlaResponseBreached},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var events []*models.IssueEvent
			if tc.event != nil {
				events = append(events, tc.event)
			}
			report := ComputeSla([]*models.Issue{issue}, events, DefaultSlaConfig(), testNow)
			if tc.wantType == SlaOk {
				assert.Equal(t, 1, report.Summary.WithinSla)
			} else {
				require.Len(t, report.Breaching, 1)
				assert.Equal(t, tc.wantType, report.Breaching[0].Status.Type)
			}
		})
	}
}

func TestSlaAtRisk(t *testing.T) {
	// 150h of 168h resolution budget is past the 80 percent mark but not
	// yet breached; a teammate already responded.
	issue := openIssue(5, 150*time.Hour)
	events := []*models.IssueEvent{
		{IssueNumber: 5, Event: "commented", ActorLogin: "bob", CreatedAt: issue.CreatedAt.Add(time.Hour)},
	}

	report := ComputeSla([]*models.Issue{issue}, events, DefaultSlaConfig(), testNow)

	require.Len(t, report.AtRisk, 1)
	assert.Equal(t, SlaAtRisk, report.AtRisk[0].Status.Type)
	require.NotNil(t, report.AtRisk[0].Status.PercentElapsed)
	assert.InDelta(t, 89.3, *report.AtRisk[0].Status.PercentElapsed, 0.001)
	assert.Equal(t, 1, report.Summary.AtRisk)
	assert.Zero(t, report.Summary.ComplianceRate)
}

func TestSlaPriorityOverrides(t *testing.T) {
	cfg := DefaultSlaConfig()
	cfg.Priorities = map[string]SlaThresholds{
		"priority/critical": {ResponseHours: 4, ResolutionHours: 24},
	}

	issue := openIssue(9, 6*time.Hour)
	issue.Labels = []string{"bug", "priority/critical"}

	report := ComputeSla([]*models.Issue{issue}, nil, cfg, testNow)

	require.Len(t, report.Breaching, 1)
	assert.Equal(t, SlaResponseBreached, report.Breaching[0].Status.Type)
	assert.Equal(t, "priority/critical", report.Breaching[0].Priority)

	// Without the label the same age is comfortably within the defaults.
	plain := openIssue(10, 6*time.Hour)
	report = ComputeSla([]*models.Issue{plain}, nil, cfg, testNow)
	assert.Equal(t, 1, report.Summary.WithinSla)
}

func TestSlaClosedIssuesExcluded(t *testing.T) {
	issues := []*models.Issue{
		closedIssue(1, 400*time.Hour, 300*time.Hour),
	}
	report := ComputeSla(issues, nil, DefaultSlaConfig(), testNow)
	assert.Zero(t, report.Summary.TotalOpen)
	assert.Zero(t, report.Summary.ComplianceRate)
	assert.Empty(t, report.Breaching)
	assert.Empty(t, report.AtRisk)
}
