package app

import (
	"context"
	"encoding/json"
	"time"

	"greenplay-service/internal/domain"
)

// Fixed challenge bonuses.
const (
	DailyLoginBonus   = 10
	DailyGameBonus    = 20
	WeeklyStreakBonus = 100
)

// Clock supplies the current time and the zone that decides what "today" is.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// SystemClock uses time.Now in loc.
func SystemClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

func (c Clock) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// Today is the current calendar date at midnight.
func (c Clock) Today() time.Time {
	return domain.Day(c.now())
}

// award is the only way totalPoints changes. Exactly one of score or
// activity is set; it is appended to its ledger in the same transaction
// that increments the aggregate, so the total stays replayable.
type award struct {
	userID   int64
	points   int
	score    *domain.ScoreRecord
	activity *domain.Activity
}

func (a award) apply(ctx context.Context, tx Tx) (int, error) {
	switch {
	case a.score != nil:
		a.score.UserID = a.userID
		a.score.PointsEarned = a.points
		if err := tx.InsertScore(ctx, a.score); err != nil {
			return 0, err
		}
	case a.activity != nil:
		a.activity.UserID = a.userID
		a.activity.Points = a.points
		if err := tx.InsertActivity(ctx, a.activity); err != nil {
			return 0, err
		}
	}
	return tx.AddPoints(ctx, a.userID, a.points)
}

func activityAward(userID int64, kind domain.ActivityKind, title string, points int, data any) award {
	act := &domain.Activity{Kind: kind, Title: title}
	if data != nil {
		act.Data = mustJSON(data)
	}
	return award{userID: userID, points: points, activity: act}
}

// mustJSON encodes detail blobs built from plain structs and maps.
func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
