package jobs_test

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andrevros/imovelsync/internal/config"
	"github.com/andrevros/imovelsync/internal/jobs"
	"github.com/andrevros/imovelsync/internal/objectstore"
	"github.com/andrevros/imovelsync/internal/websocket"
)

type fakeJobContext struct {
	db     *sql.DB
	cfg    *config.Config
	ws     *websocket.Hub
	jobMgr *jobs.JobManager
	assets objectstore.Store
}

func (f *fakeJobContext) DB() *sql.DB                  { return f.db }
func (f *fakeJobContext) Config() *config.Config       { return f.cfg }
func (f *fakeJobContext) WsHub() *websocket.Hub        { return f.ws }
func (f *fakeJobContext) JobManager() *jobs.JobManager { return f.jobMgr }
func (f *fakeJobContext) Assets() objectstore.Store    { return f.assets }

func newFakeContext() *fakeJobContext {
	return &fakeJobContext{
		cfg:    &config.Config{},
		ws:     websocket.NewHub(),
		assets: objectstore.NewMemStore(),
	}
}

func TestManager_NewManager(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	assert.NotNil(t, mgr)
	assert.Empty(t, mgr.GetStatus())
}

func TestManager_RegisterAndGetStatus(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	mgr.Register("jobA", "Job A", func(ctx jobs.JobContext) {})
	mgr.Register("jobB", "Job B", func(ctx jobs.JobContext) {})
	statuses := mgr.GetStatus()
	assert.Len(t, statuses, 2)
	var foundA, foundB bool
	for _, s := range statuses {
		if s.ID == "jobA" {
			foundA = true
		}
		if s.ID == "jobB" {
			foundB = true
		}
	}
	assert.True(t, foundA && foundB)
}

func TestManager_RunJob_SuccessAndStatus(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	ctx.jobMgr = mgr
	var called bool
	mgr.Register("jobX", "Job X", func(ctx jobs.JobContext) { called = true })
	err := mgr.RunJob("jobX", ctx)
	assert.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, called)
	statuses := mgr.GetStatus()
	assert.Equal(t, "success", statuses[0].Status)
}

func TestManager_RunJob_AlreadyRunning(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	ctx.jobMgr = mgr
	block := make(chan struct{})
	mgr.Register("jobY", "Job Y", func(ctx jobs.JobContext) { <-block })
	_ = mgr.RunJob("jobY", ctx)
	err := mgr.RunJob("jobY", ctx)
	assert.Error(t, err)
	close(block)
}

func TestManager_RunJob_NotFound(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	err := mgr.RunJob("nojob", ctx)
	assert.Error(t, err)
}

func TestManager_RunJob_Panic(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	ctx.jobMgr = mgr
	mgr.Register("panicJob", "Panic Job", func(ctx jobs.JobContext) { panic("fail") })
	err := mgr.RunJob("panicJob", ctx)
	assert.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	statuses := mgr.GetStatus()
	assert.Equal(t, "failed", statuses[0].Status)
	assert.Contains(t, statuses[0].Message, "panicked")
}

func TestManager_StatusReadsDuringPanickingJob(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	ctx.jobMgr = mgr
	release := make(chan struct{})
	mgr.Register("flaky", "Flaky Job", func(ctx jobs.JobContext) {
		<-release
		panic("boom")
	})
	err := mgr.RunJob("flaky", ctx)
	assert.NoError(t, err)

	// Poll the status while the job finishes; run with -race this catches
	// any status write outside the manager lock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			for _, s := range mgr.GetStatus() {
				_ = s.Status
				_ = s.Message
			}
			time.Sleep(time.Millisecond)
		}
	}()
	close(release)
	<-done

	statuses := mgr.GetStatus()
	assert.Equal(t, "failed", statuses[0].Status)
}

func TestManager_Concurrency(t *testing.T) {
	ctx := newFakeContext()
	mgr := jobs.NewManager(ctx)
	ctx.jobMgr = mgr
	var mu sync.Mutex
	var count int
	start := make(chan struct{})
	mgr.Register("jobC", "Job C", func(ctx jobs.JobContext) {
		<-start
		mu.Lock()
		count++
		mu.Unlock()
	})
	wg := sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			_ = mgr.RunJob("jobC", ctx)
			wg.Done()
		}()
	}
	wg.Wait()
	close(start)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, count, "job should only run once concurrently")
	mu.Unlock()
}
