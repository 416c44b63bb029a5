package progress

import (
	"testing"

	"github.com/pot-code/lms-progress/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
		{1, 200, 1},
		{1, 201, 0},
		{4, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	assert.Equal(t, &ProgressStats{}, ComputeStats(nil))
}

func TestComputeOverview(t *testing.T) {
	overview := ComputeOverview("c1", []*ProgressRecord{
		{UserID: "a", ProgressPercentage: 100},
		{UserID: "b", ProgressPercentage: 100},
		{UserID: "c", ProgressPercentage: 50},
	})
	assert.Equal(t, 3, overview.TotalUsers)
	assert.Equal(t, 2, overview.CompletedUsers)
	assert.Equal(t, 83, overview.AverageProgress)
	assert.Equal(t, 67, overview.CompletionRate)

	empty := ComputeOverview("c1", nil)
	assert.Equal(t, 0, empty.CompletionRate)
	assert.Equal(t, 0, empty.AverageProgress)
}

func TestListQueryNormalize(t *testing.T) {
	q := &ListQuery{}
	assert.NoError(t, q.Normalize())
	assert.Equal(t, ListQuery{Page: 1, Limit: 10, Sort: "-createdAt"}, *q)

	q = &ListQuery{Page: 3, Limit: 500, Sort: "progressPercentage"}
	assert.NoError(t, q.Normalize())
	assert.Equal(t, 100, q.Limit)
	column, desc, err := q.orderBy()
	assert.NoError(t, err)
	assert.Equal(t, "progress_percentage", column)
	assert.False(t, desc)

	q = &ListQuery{Sort: "-user_id; DROP TABLE progress"}
	assert.Equal(t, domain.KindBadRequest, domain.KindOf(q.Normalize()))
}

func TestParseGatePolicy(t *testing.T) {
	g, err := ParseGatePolicy("")
	assert.NoError(t, err)
	assert.Equal(t, GateOnUnlocked, g)
	g, err = ParseGatePolicy("completed")
	assert.NoError(t, err)
	assert.Equal(t, GateOnCompleted, g)
	_, err = ParseGatePolicy("never")
	assert.Error(t, err)
}
