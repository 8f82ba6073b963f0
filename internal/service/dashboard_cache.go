package service

import (
	"sync"
	"time"

	"github.com/whatsdrip/dashboard/internal/model"
)

// DashboardCache holds the last dashboard snapshot fetched for the session.
type DashboardCache struct {
	mu        sync.RWMutex
	data      *model.DashboardData
	fetchedAt time.Time
	listeners []func(*model.DashboardData)
}

func NewDashboardCache() *DashboardCache {
	return &DashboardCache{}
}

func (c *DashboardCache) OnChange(fn func(*model.DashboardData)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *DashboardCache) Set(data *model.DashboardData) {
	c.mu.Lock()
	c.data = data
	c.fetchedAt = time.Now()
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(data)
	}
}

// Get returns nil when nothing has been fetched since the last Clear.
func (c *DashboardCache) Get() (*model.DashboardData, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.fetchedAt
}

func (c *DashboardCache) Clear() {
	c.mu.Lock()
	had := c.data != nil
	c.data = nil
	c.fetchedAt = time.Time{}
	listeners := c.listeners
	c.mu.Unlock()

	if had {
		for _, fn := range listeners {
			fn(nil)
		}
	}
}
