package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/models"
	"github.com/ternarybob/fabula/internal/queue"
	"github.com/ternarybob/fabula/internal/services/embedding"
	"github.com/ternarybob/fabula/internal/services/events"
	"github.com/ternarybob/fabula/internal/services/generation"
	"github.com/ternarybob/fabula/internal/services/graph"
	"github.com/ternarybob/fabula/internal/services/llm"
	"github.com/ternarybob/fabula/internal/services/pipeline"
	"github.com/ternarybob/fabula/internal/services/search"
	badgerstorage "github.com/ternarybob/fabula/internal/storage/badger"
	"github.com/ternarybob/fabula/internal/worker"
)

func TestSweepRepairsZeroEmbeddings(t *testing.T) {
	logger := arbor.NewLogger()

	storage, err := badgerstorage.NewManager(logger, &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "sweep-test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	queueMgr, err := queue.NewManager(storage.Badger(), "test", time.Minute, 3)
	require.NoError(t, err)

	offline := llm.NewOfflineService(models.EmbeddingDim, logger)
	embedder := embedding.NewService(offline, models.EmbeddingDim, true, nil, logger)
	searcher := search.NewService(storage.SegmentStorage(), logger)
	generator := generation.NewService(offline, offline, true, nil, logger)
	eventBus := events.NewService(logger)
	graphSvc := graph.NewService(storage.StoryStorage(), storage.SegmentStorage(), storage.EdgeStorage(), logger)
	orchestrator := pipeline.NewOrchestrator(storage, queueMgr, graphSvc, eventBus, logger)
	executors := pipeline.NewExecutors(storage, graphSvc, embedder, searcher, generator, eventBus, 5, logger)

	pool := worker.NewPool(queueMgr, storage.TaskStorage(), logger, 1, 10*time.Millisecond)
	pool.RegisterExecutor(string(models.TaskTypeRecomputeEmbedding), executors.RecomputeEmbedding)
	pool.Start()
	t.Cleanup(pool.Stop)

	// A story with one segment persisted during an embedding outage.
	require.NoError(t, storage.StoryStorage().SaveStory(&models.Story{
		ID: "story_1", OwnerID: "owner-a", Title: "T", InitialPrompt: "p",
	}))
	require.NoError(t, storage.SegmentStorage().SaveSegment(&models.Segment{
		ID:          "seg_degraded",
		StoryID:     "story_1",
		ContentText: "written while the backend was down",
		Embedding:   models.ZeroEmbedding(),
	}))

	sweep := NewService(storage.SegmentStorage(), orchestrator, common.SweepConfig{
		Enabled:  true,
		Schedule: "@every 10m",
		Limit:    50,
	}, logger)

	dispatched, err := sweep.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 1, dispatched)

	// Wait for the recompute pipeline to repair the vector.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		seg, err := storage.SegmentStorage().GetSegment("seg_degraded")
		require.NoError(t, err)
		if !seg.HasZeroEmbedding() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	seg, err := storage.SegmentStorage().GetSegment("seg_degraded")
	require.NoError(t, err)
	require.False(t, seg.HasZeroEmbedding(), "sweep must re-embed the degraded segment")

	// Nothing left to repair on the next run.
	dispatched, err = sweep.RunOnce()
	require.NoError(t, err)
	require.Equal(t, 0, dispatched)
}
