package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"
	"tuteck_exam_backend/pkg/clock"
	"tuteck_exam_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const hierarchyCacheKey = "exam:hierarchy:nodes"

const defaultHierarchyDepth = 32

// HierarchyService answers which users a requester may see results for.
// It reads the parent/role table directly and never consults any other
// authorization check, so evaluating it cannot recurse.
type HierarchyService struct {
	Store    HierarchyStore
	Redis    *redis.Client // optional shared cache
	TTL      time.Duration
	MaxDepth int
	Clock    clock.Clock

	mu       sync.Mutex
	nodes    []model.HierarchyNode
	loadedAt time.Time
}

func NewHierarchyService(store HierarchyStore, rdb *redis.Client, ttl time.Duration, maxDepth int, clk clock.Clock) *HierarchyService {
	if maxDepth <= 0 {
		maxDepth = defaultHierarchyDepth
	}
	return &HierarchyService{
		Store:    store,
		Redis:    rdb,
		TTL:      ttl,
		MaxDepth: maxDepth,
		Clock:    clk,
	}
}

// VisibleUserIDs returns the sorted ids the requester may view, always including itself.
func (s *HierarchyService) VisibleUserIDs(ctx context.Context, requesterID uint) ([]uint, error) {
	nodes, err := s.loadNodes(ctx)
	if err != nil {
		return nil, err
	}
	set, err := visibleSet(nodes, requesterID, s.MaxDepth)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CanView reports whether requester may view data owned by userID.
func (s *HierarchyService) CanView(ctx context.Context, requesterID, userID uint) (bool, error) {
	if requesterID == userID {
		return true, nil
	}
	nodes, err := s.loadNodes(ctx)
	if err != nil {
		return false, err
	}
	set, err := visibleSet(nodes, requesterID, s.MaxDepth)
	if err != nil {
		return false, err
	}
	_, ok := set[userID]
	return ok, nil
}

// Invalidate drops both cache layers.
func (s *HierarchyService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.nodes = nil
	s.mu.Unlock()

	if s.Redis != nil {
		if err := s.Redis.Del(ctx, hierarchyCacheKey).Err(); err != nil {
			logger.Log.Warn("Failed to drop hierarchy cache", zap.Error(err))
		}
	}
}

func (s *HierarchyService) loadNodes(ctx context.Context) ([]model.HierarchyNode, error) {
	now := s.Clock.Now()

	s.mu.Lock()
	if s.nodes != nil && now.Sub(s.loadedAt) < s.TTL {
		nodes := s.nodes
		s.mu.Unlock()
		return nodes, nil
	}
	s.mu.Unlock()

	nodes, ok := s.readShared(ctx)
	if !ok {
		var err error
		nodes, err = s.Store.ListHierarchy(ctx)
		if err != nil {
			return nil, err
		}
		s.writeShared(ctx, nodes)
	}

	s.mu.Lock()
	s.nodes = nodes
	s.loadedAt = now
	s.mu.Unlock()
	return nodes, nil
}

func (s *HierarchyService) readShared(ctx context.Context) ([]model.HierarchyNode, bool) {
	if s.Redis == nil {
		return nil, false
	}
	raw, err := s.Redis.Get(ctx, hierarchyCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("hierarchy cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var nodes []model.HierarchyNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		logger.Log.Warn("hierarchy cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return nodes, true
}

func (s *HierarchyService) writeShared(ctx context.Context, nodes []model.HierarchyNode) {
	if s.Redis == nil || s.TTL <= 0 {
		return
	}
	raw, err := json.Marshal(nodes)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, hierarchyCacheKey, raw, s.TTL).Err(); err != nil {
		logger.Log.Warn("hierarchy cache write failed", zap.Error(err))
	}
}

// visibleSet applies the visibility rules for requester over the forest:
// itself; everyone for level 1; direct reports; and, for levels up to the
// supervisor tier, every lower-ranked user in its subtree. The walk is
// breadth-first, bounded by maxDepth and guarded against parent cycles.
func visibleSet(nodes []model.HierarchyNode, requesterID uint, maxDepth int) (map[uint]struct{}, error) {
	var requester *model.HierarchyNode
	children := make(map[uint][]model.HierarchyNode, len(nodes))
	for i := range nodes {
		n := nodes[i]
		if n.ID == requesterID {
			requester = &nodes[i]
		}
		if n.ParentID != nil && *n.ParentID != n.ID {
			children[*n.ParentID] = append(children[*n.ParentID], n)
		}
	}
	if requester == nil {
		return nil, util.ErrUserNotFound
	}

	visible := map[uint]struct{}{requesterID: {}}

	if requester.RoleLevel == model.RoleLevelAdmin {
		for _, n := range nodes {
			visible[n.ID] = struct{}{}
		}
		return visible, nil
	}

	for _, c := range children[requesterID] {
		visible[c.ID] = struct{}{}
	}

	if requester.RoleLevel > model.RoleLevelSupervisor {
		return visible, nil
	}

	seen := map[uint]struct{}{requesterID: {}}
	frontier := []uint{requesterID}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []uint
		for _, id := range frontier {
			for _, c := range children[id] {
				if _, ok := seen[c.ID]; ok {
					continue
				}
				seen[c.ID] = struct{}{}
				if c.RoleLevel > requester.RoleLevel {
					visible[c.ID] = struct{}{}
				}
				next = append(next, c.ID)
			}
		}
		frontier = next
	}
	return visible, nil
}
