// Package stats turns a list of study sessions into daily, per-subject and overall figures.
// Every function is pure: the current instant and the time zone come in as arguments.
package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/limbo/studytrack/pkg/entity"
)

const (
	dateLayout = "2006-01-02"
	// Streaks are not looked up further back than this
	MaxStreakDays = 365
)

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func dayKey(t time.Time, loc *time.Location) string {
	return startOfDay(t, loc).Format(dateLayout)
}

// DailyStats returns one entry per calendar day for the last days days ending today, oldest first.
func DailyStats(sessions []entity.Session, days int, now time.Time, loc *time.Location) []entity.DailyStats {
	if days <= 0 {
		return []entity.DailyStats{}
	}
	today := startOfDay(now, loc)
	index := make(map[string]int, days)
	result := make([]entity.DailyStats, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format(dateLayout)
		index[key] = len(result)
		result = append(result, entity.DailyStats{
			Date:     key,
			Subjects: map[string]int{},
		})
	}
	for _, s := range sessions {
		i, ok := index[dayKey(s.StartedAt, loc)]
		if !ok {
			continue
		}
		result[i].Subjects[s.Subject] += s.Minutes
		result[i].TotalMinutes += s.Minutes
	}
	return result
}

// SubjectStats groups by exact subject and orders by total minutes, largest first.
// Subjects with equal totals keep the order in which they first appeared.
func SubjectStats(sessions []entity.Session) []entity.SubjectStats {
	result := make([]entity.SubjectStats, 0)
	index := make(map[string]int)
	total := 0
	for _, s := range sessions {
		i, ok := index[s.Subject]
		if !ok {
			i = len(result)
			index[s.Subject] = i
			result = append(result, entity.SubjectStats{Subject: s.Subject})
		}
		result[i].TotalMinutes += s.Minutes
		total += s.Minutes
	}
	for i := range result {
		if total > 0 {
			result[i].Percentage = float64(result[i].TotalMinutes) / float64(total) * 100
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalMinutes > result[j].TotalMinutes
	})
	return result
}

// StudyDays lists the distinct local calendar days holding at least one session, ascending.
func StudyDays(sessions []entity.Session, loc *time.Location) []string {
	seen := make(map[string]struct{})
	days := make([]string, 0)
	for _, s := range sessions {
		key := dayKey(s.StartedAt, loc)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, key)
	}
	sort.Strings(days)
	return days
}

// Streak counts consecutive study days walking back from today. No session today means no streak.
func Streak(sessions []entity.Session, now time.Time, loc *time.Location) int {
	studied := make(map[string]struct{})
	for _, s := range sessions {
		studied[dayKey(s.StartedAt, loc)] = struct{}{}
	}
	streak := 0
	day := startOfDay(now, loc)
	for range MaxStreakDays {
		if _, ok := studied[day.Format(dateLayout)]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func OverallStats(sessions []entity.Session, now time.Time, loc *time.Location) entity.OverallStats {
	if len(sessions) == 0 {
		return entity.OverallStats{}
	}
	total := 0
	for _, s := range sessions {
		total += s.Minutes
	}
	result := entity.OverallStats{
		TotalMinutes:    total,
		TotalSessions:   len(sessions),
		ConsecutiveDays: Streak(sessions, now, loc),
	}
	if subjects := SubjectStats(sessions); len(subjects) > 0 {
		result.FavoriteSubject = subjects[0].Subject
	}
	if days := StudyDays(sessions, loc); len(days) > 0 {
		result.AverageMinutesPerDay = int(math.Round(float64(total) / float64(len(days))))
	}
	return result
}

// Report computes every aggregate from the same slice.
func Report(sessions []entity.Session, days int, now time.Time, loc *time.Location) entity.StatsReport {
	return entity.StatsReport{
		Overall:  OverallStats(sessions, now, loc),
		Subjects: SubjectStats(sessions),
		Daily:    DailyStats(sessions, days, now, loc),
	}
}

// FormatMinutes renders a duration as hours and minutes, e.g. 90 -> "1時間30分".
func FormatMinutes(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60
	switch {
	case hours == 0:
		return fmt.Sprintf("%d分", mins)
	case mins == 0:
		return fmt.Sprintf("%d時間", hours)
	default:
		return fmt.Sprintf("%d時間%d分", hours, mins)
	}
}
