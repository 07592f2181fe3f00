package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/spc"
	"github.com/banshee-data/capability.report/internal/testutil"
	"github.com/banshee-data/capability.report/internal/timeutil"
)

var fixtureTime = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func analyzeFixture(t *testing.T, id string, at time.Time) *analysis.Report {
	t.Helper()
	rep, err := analysis.Analyze(context.Background(), testutil.FiveGroupRequest(), 5,
		analysis.WithID(id), analysis.WithClock(timeutil.NewMockClock(at)))
	require.NoError(t, err)
	return rep
}

func saveFixture(t *testing.T, db *DB, id string) *analysis.Report {
	t.Helper()
	rep := analyzeFixture(t, id, fixtureTime)
	require.NoError(t, db.SaveReport(context.Background(), rep))
	return rep
}

func TestSaveAndGetReport(t *testing.T) {
	db := newTestDB(t)
	want := saveFixture(t, db, "run-1")

	got, err := db.GetReport(context.Background(), "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stored report differs (-want +got):\n%s", diff)
	}
}

func TestSaveReport_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	rep := saveFixture(t, db, "run-1")
	assert.Error(t, db.SaveReport(context.Background(), rep))
}

func TestSaveReport_LimitErrors(t *testing.T) {
	db := newTestDB(t)
	rep := &analysis.Report{
		RunID: "flat", CreatedAt: fixtureTime, GroupCount: 2, Accepted: 2, Complete: true, SubgroupSize: 2,
		Summary: &spc.Summary{GroupCount: 2, SubgroupSize: 2, MeanOfMeans: 4, D2: 1.128},
		Results: []analysis.LimitReport{{
			Limits:    spc.Limits{LCL: 0, UCL: 8},
			Error:     spc.ErrZeroVariance.Error(),
			ErrorKind: spc.KindZeroVariance,
		}},
	}
	require.NoError(t, db.SaveReport(context.Background(), rep))

	var kind string
	require.NoError(t, db.QueryRow(`SELECT error_kind FROM limit_results WHERE run_id = 'flat'`).Scan(&kind))
	assert.Equal(t, spc.KindZeroVariance, kind)

	runs, err := db.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].WorstCPK)
	assert.Equal(t, 1, runs[0].LimitPairs)
	assert.Equal(t, 0, runs[0].GoodPairs)
}

func TestGetReport_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for i, id := range []string{"old", "mid", "new"} {
		rep := analyzeFixture(t, id, fixtureTime.Add(time.Duration(i)*time.Hour))
		require.NoError(t, db.SaveReport(ctx, rep))
	}

	runs, err = db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "mid", runs[1].RunID)

	r := runs[0]
	assert.True(t, fixtureTime.Add(2*time.Hour).Equal(r.CreatedAt), "created %v", r.CreatedAt)
	assert.Equal(t, "Sam", r.Analyst)
	assert.Equal(t, 5, r.GroupCount)
	assert.True(t, r.Complete)
	require.NotNil(t, r.MeanOfMeans)
	assert.InDelta(t, 10.08, *r.MeanOfMeans, 1e-9)
	require.NotNil(t, r.WorstCPK)
	assert.Less(t, *r.WorstCPK, spc.CapabilityThreshold)
	assert.Equal(t, 2, r.LimitPairs)
	assert.Equal(t, 1, r.GoodPairs)
}

func TestDeleteRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	saveFixture(t, db, "run-1")

	require.NoError(t, db.DeleteRun(ctx, "run-1"))
	_, err := db.GetReport(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM limit_results`).Scan(&n))
	assert.Zero(t, n, "limit results cascade with their run")

	assert.ErrorIs(t, db.DeleteRun(ctx, "run-1"), ErrRunNotFound)
}
