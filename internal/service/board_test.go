package service

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
)

func newBoardEnv(t *testing.T) (*CampaignBoard, *facadeEnv) {
	t.Helper()
	env := newFacadeEnv()
	env.api.on(http.MethodGet, pathTemplates, `{"success":true,"templates":[{"id":"tmpl_1","name":"Welcome","day":1}]}`)
	env.api.on(http.MethodGet, pathCampaigns, `{"success":true,"campaigns":[{"id":"camp_9","name":"Spring","status":"active","dayTemplates":{"1":"tmpl_1"}},{"id":"camp_2","name":"Empty","status":"draft"}]}`)
	board := NewCampaignBoard(env.facade, env.notifier)
	require.NoError(t, board.Load(context.Background()))
	return board, env
}

func TestCampaignBoard_Load(t *testing.T) {
	board, _ := newBoardEnv(t)

	assert.Len(t, board.Templates(), 1)
	campaigns := board.Campaigns()
	require.Len(t, campaigns, 2)
	assert.Equal(t, "camp_9", campaigns[0].ID)
	assert.NotNil(t, campaigns[1].DayTemplates)

	tmpl, ok := board.TemplateForDay("camp_9", 1)
	require.True(t, ok)
	assert.Equal(t, "Welcome", tmpl.Name)

	_, ok = board.TemplateForDay("camp_9", 2)
	assert.False(t, ok)
	_, ok = board.TemplateForDay("missing", 1)
	assert.False(t, ok)
}

func TestCampaignBoard_LoadFailure(t *testing.T) {
	env := newFacadeEnv()
	env.api.fail(http.MethodGet, pathCampaigns, apperrors.Remote(500, "boom", nil))
	board := NewCampaignBoard(env.facade, env.notifier)

	err := board.Load(context.Background())
	require.Error(t, err)
	assert.Empty(t, board.Campaigns())
	assert.Equal(t, []string{"error: Failed to load data"}, env.notifier.all())
}

func TestCampaignBoard_AssignAndUnassign(t *testing.T) {
	ctx := context.Background()
	board, env := newBoardEnv(t)
	env.api.on(http.MethodPost, pathCampaigns+"/camp_9/assign-template", `{"success":true}`)
	env.api.on(http.MethodDelete, pathCampaigns+"/camp_9/remove-template/3", `{"success":true}`)

	require.NoError(t, board.Assign(ctx, "camp_9", 3, "tmpl_1"))
	c, _ := board.Campaign("camp_9")
	assert.Equal(t, "tmpl_1", c.DayTemplates[3])
	assert.Empty(t, board.LoadingCells())

	require.NoError(t, board.Unassign(ctx, "camp_9", 3))
	c, _ = board.Campaign("camp_9")
	_, ok := c.DayTemplates[3]
	assert.False(t, ok)
	assert.Equal(t, "tmpl_1", c.DayTemplates[1])

	assert.Equal(t, []string{
		"success: Template assigned successfully",
		"success: Template removed successfully",
	}, env.notifier.all())
}

func TestCampaignBoard_AssignNotConfirmed(t *testing.T) {
	ctx := context.Background()

	t.Run("success false leaves local copy", func(t *testing.T) {
		board, env := newBoardEnv(t)
		env.api.on(http.MethodPost, pathCampaigns+"/camp_9/assign-template", `{"success":false}`)

		require.NoError(t, board.Assign(ctx, "camp_9", 3, "tmpl_1"))
		c, _ := board.Campaign("camp_9")
		assert.NotContains(t, c.DayTemplates, 3)
	})

	t.Run("error leaves local copy", func(t *testing.T) {
		board, env := newBoardEnv(t)
		env.api.fail(http.MethodPost, pathCampaigns+"/camp_9/assign-template", apperrors.Remote(500, "boom", nil))

		require.Error(t, board.Assign(ctx, "camp_9", 3, "tmpl_1"))
		c, _ := board.Campaign("camp_9")
		assert.NotContains(t, c.DayTemplates, 3)
		assert.Empty(t, board.LoadingCells())
	})
}

type blockingAPI struct {
	*mockAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAPI) Call(ctx context.Context, method, path string, body, out any) error {
	if method == http.MethodPost {
		b.entered <- struct{}{}
		<-b.release
	}
	return b.mockAPI.Call(ctx, method, path, body, out)
}

func TestCampaignBoard_LoadingCells(t *testing.T) {
	env := newFacadeEnv()
	api := &blockingAPI{mockAPI: env.api, entered: make(chan struct{}), release: make(chan struct{})}
	env.facade.api = api
	env.api.on(http.MethodPost, pathCampaigns+"/camp_9/assign-template", `{"success":true}`)

	board := NewCampaignBoard(env.facade, env.notifier)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, board.Assign(context.Background(), "camp_9", 3, "tmpl_1"))
	}()

	<-api.entered
	assert.Equal(t, []string{"camp_9_3"}, board.LoadingCells())

	close(api.release)
	wg.Wait()
	assert.Empty(t, board.LoadingCells())
}

func TestCampaignBoard_Clear(t *testing.T) {
	board, _ := newBoardEnv(t)
	board.Clear()
	assert.Empty(t, board.Templates())
	assert.Empty(t, board.Campaigns())
}

func TestCampaignBoard_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("reloads a loaded board", func(t *testing.T) {
		board, env := newBoardEnv(t)
		env.api.on(http.MethodGet, pathCampaigns, `{"success":true,"campaigns":[{"id":"camp_new","name":"Autumn","status":"draft"}]}`)

		require.NoError(t, board.Refresh(ctx))
		campaigns := board.Campaigns()
		require.Len(t, campaigns, 1)
		assert.Equal(t, "camp_new", campaigns[0].ID)
		_, ok := board.Campaign("camp_9")
		assert.False(t, ok)
	})

	t.Run("leaves an unloaded board alone", func(t *testing.T) {
		env := newFacadeEnv()
		board := NewCampaignBoard(env.facade, env.notifier)

		require.NoError(t, board.Refresh(ctx))
		assert.Empty(t, env.api.allCalls())
	})

	t.Run("cleared board is not reloaded", func(t *testing.T) {
		board, env := newBoardEnv(t)
		board.Clear()
		before := len(env.api.allCalls())

		require.NoError(t, board.Refresh(ctx))
		assert.Len(t, env.api.allCalls(), before)
		assert.Empty(t, board.Campaigns())
	})
}

func TestCellKey(t *testing.T) {
	assert.Equal(t, "camp_9_3", CellKey("camp_9", 3))
}

func TestDashboardCache(t *testing.T) {
	cache := NewDashboardCache()
	var seen []*model.DashboardData
	cache.OnChange(func(d *model.DashboardData) { seen = append(seen, d) })

	cache.Clear()
	assert.Empty(t, seen)

	data := &model.DashboardData{Success: true}
	cache.Set(data)
	got, at := cache.Get()
	assert.Same(t, data, got)
	assert.False(t, at.IsZero())

	cache.Clear()
	got, at = cache.Get()
	assert.Nil(t, got)
	assert.True(t, at.IsZero())
	assert.Equal(t, []*model.DashboardData{data, nil}, seen)
}
