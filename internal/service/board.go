package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
)

// CampaignBoard is the local working copy of templates and campaigns behind
// the day-assignment calendar. Day entries change only after the backend
// confirms the assignment.
type CampaignBoard struct {
	facade   *Facade
	notifier notify.Notifier

	mu        sync.RWMutex
	templates []model.Template
	campaigns map[string]*model.Campaign
	order     []string
	loading   map[string]bool
	loaded    bool
}

func NewCampaignBoard(facade *Facade, notifier notify.Notifier) *CampaignBoard {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &CampaignBoard{
		facade:    facade,
		notifier:  notifier,
		campaigns: make(map[string]*model.Campaign),
		loading:   make(map[string]bool),
	}
}

// CellKey identifies one campaign/day cell.
func CellKey(campaignID string, day int) string {
	return fmt.Sprintf("%s_%d", campaignID, day)
}

// Load fetches templates and campaigns in parallel and replaces the local
// copy only if both succeed.
func (b *CampaignBoard) Load(ctx context.Context) error {
	var templates []model.Template
	var campaigns []model.Campaign

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		templates, err = b.facade.ListTemplates(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		campaigns, err = b.facade.ListCampaigns(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		b.notifier.Notify(ctx, notify.LevelError, "Failed to load data")
		return err
	}

	b.mu.Lock()
	b.templates = templates
	b.campaigns = make(map[string]*model.Campaign, len(campaigns))
	b.order = b.order[:0]
	for i := range campaigns {
		c := campaigns[i]
		if c.DayTemplates == nil {
			c.DayTemplates = map[int]string{}
		}
		b.campaigns[c.ID] = &c
		b.order = append(b.order, c.ID)
	}
	b.loaded = true
	b.mu.Unlock()

	log.Debug().Int("templates", len(templates)).Int("campaigns", len(campaigns)).Msg("campaign board loaded")
	return nil
}

// Refresh reloads a board that has already been loaded, after a campaign or
// template was created, updated or deleted. An unloaded board is left for
// its first viewer to load.
func (b *CampaignBoard) Refresh(ctx context.Context) error {
	b.mu.RLock()
	loaded := b.loaded
	b.mu.RUnlock()
	if !loaded {
		return nil
	}
	return b.Load(ctx)
}

func (b *CampaignBoard) Templates() []model.Template {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Template(nil), b.templates...)
}

func (b *CampaignBoard) Campaigns() []model.Campaign {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Campaign, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, copyCampaign(b.campaigns[id]))
	}
	return out
}

func (b *CampaignBoard) Campaign(id string) (model.Campaign, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.campaigns[id]
	if !ok {
		return model.Campaign{}, false
	}
	return copyCampaign(c), true
}

// TemplateForDay resolves the template assigned to a campaign day.
func (b *CampaignBoard) TemplateForDay(campaignID string, day int) (model.Template, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.campaigns[campaignID]
	if !ok {
		return model.Template{}, false
	}
	templateID, ok := c.TemplateIDForDay(day)
	if !ok {
		return model.Template{}, false
	}
	for _, t := range b.templates {
		if t.ID == templateID {
			return t, true
		}
	}
	return model.Template{}, false
}

// LoadingCells lists the cells with a request in flight.
func (b *CampaignBoard) LoadingCells() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cells := make([]string, 0, len(b.loading))
	for key, on := range b.loading {
		if on {
			cells = append(cells, key)
		}
	}
	sort.Strings(cells)
	return cells
}

func (b *CampaignBoard) Assign(ctx context.Context, campaignID string, day int, templateID string) error {
	b.setLoading(campaignID, day, true)
	defer b.setLoading(campaignID, day, false)

	resp, err := b.facade.AssignTemplateToDay(ctx, campaignID, day, templateID)
	if err != nil {
		return err
	}
	if !resp.Success {
		return nil
	}

	b.mu.Lock()
	if c, ok := b.campaigns[campaignID]; ok {
		c.DayTemplates[day] = templateID
	}
	b.mu.Unlock()

	b.notifier.Notify(ctx, notify.LevelSuccess, "Template assigned successfully")
	return nil
}

func (b *CampaignBoard) Unassign(ctx context.Context, campaignID string, day int) error {
	b.setLoading(campaignID, day, true)
	defer b.setLoading(campaignID, day, false)

	resp, err := b.facade.RemoveTemplateFromDay(ctx, campaignID, day)
	if err != nil {
		return err
	}
	if !resp.Success {
		return nil
	}

	b.mu.Lock()
	if c, ok := b.campaigns[campaignID]; ok {
		delete(c.DayTemplates, day)
	}
	b.mu.Unlock()

	b.notifier.Notify(ctx, notify.LevelSuccess, "Template removed successfully")
	return nil
}

// Clear drops the local copy, as on sign-out.
func (b *CampaignBoard) Clear() {
	b.mu.Lock()
	b.templates = nil
	b.campaigns = make(map[string]*model.Campaign)
	b.order = nil
	b.loading = make(map[string]bool)
	b.loaded = false
	b.mu.Unlock()
}

func (b *CampaignBoard) setLoading(campaignID string, day int, on bool) {
	key := CellKey(campaignID, day)
	b.mu.Lock()
	if on {
		b.loading[key] = true
	} else {
		delete(b.loading, key)
	}
	b.mu.Unlock()
}

func copyCampaign(c *model.Campaign) model.Campaign {
	out := *c
	out.DayTemplates = make(map[int]string, len(c.DayTemplates))
	for day, id := range c.DayTemplates {
		out.DayTemplates[day] = id
	}
	return out
}
