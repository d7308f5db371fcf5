package roster

import (
	"fmt"
	"time"

	"github.com/fieldcast/fieldcast/pkg/models"
)

// nextWorkDate computes a group's next turn in the rotation. Groups rotate
// in the given order (sorted by name); the group after the one that filed
// the latest report works next. A group whose turn has just been is a full
// rotation away. Without any report the date is from, truncated to the day.
func nextWorkDate(groups []models.WorkGroup, targetID string, last *models.Report, from time.Time, rotationDays int) (time.Time, error) {
	target := indexOf(groups, targetID)
	if target < 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrGroupNotFound, targetID)
	}
	if rotationDays < 1 {
		rotationDays = 1
	}

	if last == nil {
		return startOfDay(from), nil
	}
	prev := indexOf(groups, last.GroupID)
	if prev < 0 {
		return startOfDay(from), nil
	}

	k := len(groups)
	steps := (target - prev + k) % k
	if steps == 0 {
		steps = k
	}
	return startOfDay(last.Date).AddDate(0, 0, steps*rotationDays), nil
}

func indexOf(groups []models.WorkGroup, id string) int {
	for i, g := range groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
