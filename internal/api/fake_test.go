package api

import (
	"context"
	"sync"
	"time"

	"github.com/charliek/sidecarhost/internal/domain"
	"github.com/charliek/sidecarhost/internal/host"
)

// fakeController is an in-memory Controller
type fakeController struct {
	mu       sync.Mutex
	info     domain.SidecarInfo
	startErr error
	starts   int
	stops    int
}

func newFakeController() *fakeController {
	return &fakeController{info: domain.SidecarInfo{
		Name:   "backend",
		State:  domain.SidecarStateUnstarted,
		Health: domain.HealthStatusUnknown,
	}}
}

func (c *fakeController) Info() domain.SidecarInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *fakeController) StartSidecar(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if c.startErr != nil {
		return c.startErr
	}
	if c.info.State.IsRunning() {
		return domain.NewSpawnError(domain.SpawnAlreadyRunning, c.info.Name, nil)
	}
	c.info.State = domain.SidecarStateRunning
	c.info.PID = 4242
	c.info.Instance = "instance-1"
	c.info.StartedAt = time.Now()
	return nil
}

func (c *fakeController) StopSidecar(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.info.State = domain.SidecarStateStopped
	c.info.StoppedAt = time.Now()
}

func (c *fakeController) Greet(name string) string {
	return host.Greet(name)
}
