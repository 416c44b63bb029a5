package progress

import "math"

// Percentage round(100*completed/total) clamped to [0, 100], 0 for an empty course
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(completed) / float64(total)))
	if pct > 100 {
		return 100
	}
	return pct
}

func roundedMean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// ComputeStats aggregate a user's records
func ComputeStats(records []*ProgressRecord) *ProgressStats {
	stats := new(ProgressStats)
	sum := 0
	for _, r := range records {
		stats.TotalCourses++
		switch {
		case r.ProgressPercentage >= 100:
			stats.CompletedCourses++
		case r.ProgressPercentage > 0:
			stats.InProgressCourses++
		}
		stats.TotalLectures += len(r.UnlockedLectures)
		stats.CompletedLectures += len(r.CompletedLectures)
		sum += r.ProgressPercentage
	}
	stats.AverageProgress = roundedMean(sum, stats.TotalCourses)
	return stats
}

// ComputeOverview aggregate the records of a course, records are expected
// sorted by percentage already
func ComputeOverview(courseID string, records []*ProgressRecord) *CourseOverview {
	overview := &CourseOverview{CourseID: courseID, TotalUsers: len(records), Records: records}
	sum := 0
	for _, r := range records {
		if r.ProgressPercentage >= 100 {
			overview.CompletedUsers++
		}
		sum += r.ProgressPercentage
	}
	overview.AverageProgress = roundedMean(sum, overview.TotalUsers)
	overview.CompletionRate = Percentage(overview.CompletedUsers, overview.TotalUsers)
	return overview
}

// gateSatisfied reports whether prev is far enough along for the lecture after it to unlock
func gateSatisfied(r *ProgressRecord, prev string, gate GatePolicy) bool {
	if gate == GateOnCompleted {
		return r.IsCompleted(prev)
	}
	return r.IsUnlocked(prev)
}
