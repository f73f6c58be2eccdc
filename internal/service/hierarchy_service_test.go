package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"
	"tuteck_exam_backend/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id uint, parent uint, level int) model.HierarchyNode {
	n := model.HierarchyNode{ID: id, RoleLevel: level}
	if parent != 0 {
		n.ParentID = &parent
	}
	return n
}

// orgChart:
//
//	1 admin(1)
//	└─ 2 director(2)
//	   ├─ 3 manager(3)
//	   │  ├─ 5 supervisor(4)
//	   │  │  └─ 7 candidate(5)
//	   │  └─ 6 manager(3)
//	   │     └─ 8 candidate(5)
//	   └─ 4 candidate(5)
//	9 supervisor(4), separate tree
//	└─ 10 candidate(5)
//	   └─ 11 candidate(5)
func orgChart() []model.HierarchyNode {
	return []model.HierarchyNode{
		node(1, 0, 1),
		node(2, 1, 2),
		node(3, 2, 3),
		node(4, 2, 5),
		node(5, 3, 4),
		node(6, 3, 3),
		node(7, 5, 5),
		node(8, 6, 5),
		node(9, 0, 4),
		node(10, 9, 5),
		node(11, 10, 5),
	}
}

func newHierarchy(nodes []model.HierarchyNode) (*HierarchyService, *memDB, *clock.ManualClock) {
	db := newMemDB()
	db.nodes = nodes
	clk := clock.NewManual(epoch)
	return NewHierarchyService(memHierarchy{db}, nil, time.Minute, 32, clk), db, clk
}

func TestVisibleUserIDs(t *testing.T) {
	svc, _, _ := newHierarchy(orgChart())
	ctx := context.Background()

	tests := []struct {
		name      string
		requester uint
		want      []uint
	}{
		{"admin sees everyone", 1, []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
		{"director sees lower ranks in subtree", 2, []uint{2, 3, 4, 5, 6, 7, 8}},
		{"manager sees same-rank direct report and below", 3, []uint{3, 5, 6, 7, 8}},
		{"supervisor sees its subtree", 9, []uint{9, 10, 11}},
		{"candidate sees only direct reports", 10, []uint{10, 11}},
		{"leaf sees itself", 7, []uint{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.VisibleUserIDs(ctx, tt.requester)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectReportVisibleRegardlessOfRank(t *testing.T) {
	// 6 reports to 3 at the same rank; direct reports are always visible
	svc, _, _ := newHierarchy(orgChart())
	ok, err := svc.CanView(context.Background(), 3, 6)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVisibilityStaysInsideSubtree(t *testing.T) {
	svc, _, _ := newHierarchy(orgChart())
	ctx := context.Background()

	subtree := map[uint][]uint{
		2: {3, 4, 5, 6, 7, 8},
		3: {5, 6, 7, 8},
		9: {10, 11},
	}
	for requester, below := range subtree {
		allowed := map[uint]bool{requester: true}
		for _, id := range below {
			allowed[id] = true
		}
		got, err := svc.VisibleUserIDs(ctx, requester)
		require.NoError(t, err)
		for _, id := range got {
			assert.True(t, allowed[id], "requester %d must not see %d", requester, id)
		}
	}
}

func TestHierarchyCycleIsSafe(t *testing.T) {
	nodes := []model.HierarchyNode{
		node(1, 3, 2),
		node(2, 1, 3),
		node(3, 2, 4),
		node(4, 4, 5), // self parent
	}
	svc, _, _ := newHierarchy(nodes)

	got, err := svc.VisibleUserIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, got)

	got, err = svc.VisibleUserIDs(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []uint{4}, got)
}

func TestHierarchyDepthBound(t *testing.T) {
	var nodes []model.HierarchyNode
	nodes = append(nodes, node(1, 0, 2))
	for id := uint(2); id <= 10; id++ {
		nodes = append(nodes, node(id, id-1, 5))
	}
	db := newMemDB()
	db.nodes = nodes
	svc := NewHierarchyService(memHierarchy{db}, nil, time.Minute, 3, clock.NewManual(epoch))

	got, err := svc.VisibleUserIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3, 4}, got)
}

func TestHierarchyUnknownRequester(t *testing.T) {
	svc, _, _ := newHierarchy(orgChart())
	_, err := svc.VisibleUserIDs(context.Background(), 404)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestHierarchyCacheTTL(t *testing.T) {
	svc, db, clk := newHierarchy(orgChart())
	ctx := context.Background()

	_, err := svc.VisibleUserIDs(ctx, 9)
	require.NoError(t, err)
	_, err = svc.VisibleUserIDs(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, db.hierarchyHit)

	// a new report appears; the cached forest hides it until the TTL passes
	db.mu.Lock()
	db.nodes = append(db.nodes, node(12, 9, 5))
	db.mu.Unlock()

	got, _ := svc.VisibleUserIDs(ctx, 9)
	assert.NotContains(t, got, uint(12))

	clk.Advance(2 * time.Minute)
	got, _ = svc.VisibleUserIDs(ctx, 9)
	assert.Contains(t, got, uint(12))
	assert.Equal(t, 2, db.hierarchyHit)

	svc.Invalidate(ctx)
	_, _ = svc.VisibleUserIDs(ctx, 9)
	assert.Equal(t, 3, db.hierarchyHit)
}

func TestResultServiceVisibility(t *testing.T) {
	svc, db, _ := newHierarchy(orgChart())
	results := NewResultService(memResults{db}, svc)
	ctx := context.Background()

	for _, owner := range []uint{7, 8, 10} {
		r := model.TestResult{UserID: owner, SurveyID: 1}
		r.ID = fmt.Sprintf("r-%d", owner)
		db.results[r.ID] = r
	}

	list, err := results.ListResults(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint(7), list[0].UserID)
	assert.Equal(t, uint(8), list[1].UserID)

	list, err = results.ListResults(ctx, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = results.GetResult(ctx, 3, "r-10")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	got, err := results.GetResult(ctx, 10, "r-10")
	require.NoError(t, err)
	assert.Equal(t, uint(10), got.UserID)

	_, err = results.GetResult(ctx, 1, "missing")
	assert.ErrorIs(t, err, util.ErrResultNotFound)
}
