package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
	pkgmdw "github.com/ndtrung-ct/signal-reactor/internal/server/middleware"
)

type fakeScheduler struct {
	submitted []models.JobParams
	job       *models.AIJob
	statusErr error
}

func (f *fakeScheduler) Submit(ctx context.Context, params models.JobParams) (*models.AIJob, error) {
	f.submitted = append(f.submitted, params)
	return &models.AIJob{ID: "job-1", Params: params, State: models.JobStateQueued}, nil
}

func (f *fakeScheduler) Status(ctx context.Context, id string) (*models.AIJob, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.job, nil
}

func (f *fakeScheduler) Start(ctx context.Context) error { return nil }
func (f *fakeScheduler) Stop(ctx context.Context) error  { return nil }

type fakeRuleRepo struct {
	rules map[string]*models.ReactionRule
}

func (f *fakeRuleRepo) GetBySender(ctx context.Context, senderID string) (*models.ReactionRule, error) {
	return f.rules[senderID], nil
}

func (f *fakeRuleRepo) Upsert(ctx context.Context, rule *models.ReactionRule) error {
	f.rules[rule.UserID] = rule
	return nil
}

func (f *fakeRuleRepo) AdvanceCursor(ctx context.Context, senderID string) error { return nil }

func (f *fakeRuleRepo) List(ctx context.Context) ([]*models.ReactionRule, error) {
	var rules []*models.ReactionRule
	for _, r := range f.rules {
		rules = append(rules, r)
	}
	return rules, nil
}

type fakeGroupRepo struct {
	groups map[string]*models.Group
}

func (f *fakeGroupRepo) IsMonitored(ctx context.Context, groupID string) (bool, error) {
	g, ok := f.groups[groupID]
	return ok && g.Monitored, nil
}

func (f *fakeGroupRepo) Upsert(ctx context.Context, group *models.Group) error {
	f.groups[group.GroupID] = group
	return nil
}

func (f *fakeGroupRepo) EnsureKnown(ctx context.Context, groupID, name string) error { return nil }

func (f *fakeGroupRepo) List(ctx context.Context) ([]*models.Group, error) {
	var groups []*models.Group
	for _, g := range f.groups {
		groups = append(groups, g)
	}
	return groups, nil
}

func newTestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = pkgmdw.NewValidator()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newTestController(sched *fakeScheduler) Controller {
	return NewHandler(
		sched,
		&fakeRuleRepo{rules: map[string]*models.ReactionRule{}},
		&fakeGroupRepo{groups: map[string]*models.Group{}},
	)
}

func TestSubmitJob(t *testing.T) {
	t.Parallel()

	t.Run("accepts a valid job", func(t *testing.T) {
		sched := &fakeScheduler{}
		h := newTestController(sched)

		c, rec := newTestContext(t, http.MethodPost, "/api/v1/jobs",
			`{"kind":"summary","group_id":"group-a","hours":24}`)

		require.NoError(t, h.SubmitJob(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, sched.submitted, 1)
		assert.Equal(t, models.AnalysisSummary, sched.submitted[0].Kind)
		assert.Contains(t, rec.Body.String(), "job-1")
		assert.Contains(t, rec.Body.String(), "queued")
	})

	t.Run("rejects missing group", func(t *testing.T) {
		sched := &fakeScheduler{}
		h := newTestController(sched)

		c, _ := newTestContext(t, http.MethodPost, "/api/v1/jobs",
			`{"kind":"summary","hours":24}`)

		err := h.SubmitJob(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		assert.Empty(t, sched.submitted)
	})

	t.Run("rejects hours outside range", func(t *testing.T) {
		sched := &fakeScheduler{}
		h := newTestController(sched)

		c, _ := newTestContext(t, http.MethodPost, "/api/v1/jobs",
			`{"kind":"summary","group_id":"g","hours":999}`)

		err := h.SubmitJob(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestGetJobStatus(t *testing.T) {
	t.Parallel()

	t.Run("returns the job", func(t *testing.T) {
		sched := &fakeScheduler{job: &models.AIJob{
			ID:     "job-1",
			State:  models.JobStateCompleted,
			Result: "all good",
		}}
		h := newTestController(sched)

		c, rec := newTestContext(t, http.MethodGet, "/api/v1/jobs/job-1", "")
		c.SetParamNames("id")
		c.SetParamValues("job-1")

		require.NoError(t, h.GetJobStatus(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "completed")
		assert.Contains(t, rec.Body.String(), "all good")
	})

	t.Run("unknown job is 404", func(t *testing.T) {
		sched := &fakeScheduler{statusErr: models.ErrNotFound}
		h := newTestController(sched)

		c, _ := newTestContext(t, http.MethodGet, "/api/v1/jobs/missing", "")
		c.SetParamNames("id")
		c.SetParamValues("missing")

		err := h.GetJobStatus(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestUpsertRule(t *testing.T) {
	t.Parallel()

	t.Run("stores the rule", func(t *testing.T) {
		rules := &fakeRuleRepo{rules: map[string]*models.ReactionRule{}}
		h := NewHandler(&fakeScheduler{}, rules, &fakeGroupRepo{groups: map[string]*models.Group{}})

		c, rec := newTestContext(t, http.MethodPut, "/api/v1/rules/alice",
			`{"emojis":["👍","❤️"],"mode":"sequential","enabled":true}`)
		c.SetParamNames("sender_id")
		c.SetParamValues("alice")

		require.NoError(t, h.UpsertRule(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		stored := rules.rules["alice"]
		require.NotNil(t, stored)
		assert.Equal(t, models.ReactionModeSequential, stored.Mode)
		assert.True(t, stored.Enabled)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		h := newTestController(&fakeScheduler{})

		c, _ := newTestContext(t, http.MethodPut, "/api/v1/rules/alice",
			`{"emojis":["👍"],"mode":"chaotic"}`)
		c.SetParamNames("sender_id")
		c.SetParamValues("alice")

		err := h.UpsertRule(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})

	t.Run("rejects empty emoji set", func(t *testing.T) {
		h := newTestController(&fakeScheduler{})

		c, _ := newTestContext(t, http.MethodPut, "/api/v1/rules/alice",
			`{"emojis":[],"mode":"random"}`)
		c.SetParamNames("sender_id")
		c.SetParamValues("alice")

		err := h.UpsertRule(c)
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestUpsertGroup(t *testing.T) {
	t.Parallel()

	groups := &fakeGroupRepo{groups: map[string]*models.Group{}}
	h := NewHandler(&fakeScheduler{}, &fakeRuleRepo{rules: map[string]*models.ReactionRule{}}, groups)

	c, rec := newTestContext(t, http.MethodPut, "/api/v1/groups/group-a",
		`{"name":"Weekend Plans","monitored":true}`)
	c.SetParamNames("group_id")
	c.SetParamValues("group-a")

	require.NoError(t, h.UpsertGroup(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	stored := groups.groups["group-a"]
	require.NotNil(t, stored)
	assert.True(t, stored.Monitored)
	assert.Equal(t, "Weekend Plans", stored.Name)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newTestController(&fakeScheduler{})
	c, rec := newTestContext(t, http.MethodGet, "/health", "")

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
