package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenplay-service/internal/app"
	"greenplay-service/internal/auth"
	"greenplay-service/internal/domain"
)

func TestAdminUserManagement(t *testing.T) {
	f := newFixture(t)
	admin := app.NewAdminService(f.store, f.clock.Clock())
	ctx := context.Background()

	root := f.addUser(t, domain.User{Email: "root@mmu.edu.my", StudentID: "R", Role: domain.RoleAdmin})
	u := f.student(t, "aina@mmu.edu.my")
	_, err := f.games.SubmitMemory(ctx, u.ID, domain.MemoryResult{Moves: 18, TimeTaken: 70, Level: 1})
	require.NoError(t, err)

	page, err := admin.ListUsers(ctx, "student", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Users, 1)
	assert.Equal(t, 1, page.Users[0].GamesPlayed)

	_, err = admin.ListUsers(ctx, "superuser", 1, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)

	detail, err := admin.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, detail.RecentGames, 1)

	promoted, err := admin.UpdateRole(ctx, root.ID, u.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, promoted.Role)

	_, err = admin.UpdateRole(ctx, root.ID, root.ID, "student")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = admin.UpdateRole(ctx, root.ID, u.ID, "owner")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.ErrorIs(t, admin.ResetPassword(ctx, u.ID, "weak"), domain.ErrValidation)
	require.NoError(t, admin.ResetPassword(ctx, u.ID, "N3w!Password"))
	stored, err := f.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "N3w!Password"))

	assert.ErrorIs(t, admin.DeleteUser(ctx, root.ID, root.ID), domain.ErrValidation)
	require.NoError(t, admin.DeleteUser(ctx, root.ID, u.ID))
	_, err = f.store.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, admin.DeleteUser(ctx, root.ID, u.ID), domain.ErrNotFound)
}

func TestAdminPlatformStats(t *testing.T) {
	f := newFixture(t)
	admin := app.NewAdminService(f.store, f.clock.Clock())
	ctx := context.Background()

	f.addUser(t, domain.User{Email: "root@mmu.edu.my", StudentID: "R", Role: domain.RoleAdmin})
	a := f.addUser(t, domain.User{Email: "a@mmu.edu.my", StudentID: "A", Faculty: "FCI"})
	b := f.addUser(t, domain.User{Email: "b@mmu.edu.my", StudentID: "B", Faculty: "FOM"})

	_, err := f.games.SubmitMemory(ctx, a.ID, domain.MemoryResult{Moves: 18, TimeTaken: 70, Level: 1})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.games.SubmitPuzzle(ctx, b.ID, domain.PuzzleResult{Moves: 45, TimeTaken: 100})
	require.NoError(t, err)

	stats, err := admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalAdmins)
	assert.Equal(t, 90+75, stats.TotalPoints)
	assert.Equal(t, 2, stats.TotalGames)
	assert.Equal(t, 1, stats.GamesByType[domain.GameMemory])
	assert.Equal(t, 82.5, stats.AveragePointsPerUser)
	assert.Equal(t, 2, stats.ActiveUsers)
	require.Len(t, stats.TopFaculties, 2)
	assert.Equal(t, "FCI", stats.TopFaculties[0].Faculty)
}

func TestProfileViews(t *testing.T) {
	f := newFixture(t)
	profiles := app.NewProfileService(f.store, f.clock.Clock())
	ctx := context.Background()

	u := f.student(t, "aina@mmu.edu.my")
	for i := 0; i < domain.WeeklyStreakTarget; i++ {
		_, err := f.games.SubmitMemory(ctx, u.ID, domain.MemoryResult{Moves: 10, TimeTaken: 10, Level: 2})
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	p, err := profiles.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.GlobalRank)
	assert.Equal(t, 7, p.TotalGamesPlayed)
	assert.Equal(t, 7*120+7*20, p.TotalPoints)
	assert.Len(t, p.RecentGames, 7)

	st, err := profiles.Stats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, st.BestScores[domain.GameMemory])
	assert.Equal(t, 120.0, st.AverageScores[domain.GameMemory])
	assert.Len(t, st.DailyActivity, 6, "the window covers today and the six days before")
	assert.NotEmpty(t, st.RecentActivities)

	achievements, err := profiles.Achievements(ctx, u.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(achievements))
	for _, a := range achievements {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"points_500", "streak_7"}, ids)
}
