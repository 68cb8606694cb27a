package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"caresched/internal/config"
	"caresched/internal/engine"
	"caresched/internal/metrics"
	"caresched/internal/model"
	"caresched/internal/nlp"
	"caresched/internal/store"
	"caresched/internal/tenant"
)

type stubParser struct {
	parsed *nlp.ParsedCommand
	err    error
}

func (p *stubParser) Parse(ctx context.Context, text, commandContext string) (*nlp.ParsedCommand, error) {
	return p.parsed, p.err
}

type fixture struct {
	srv    *httptest.Server
	store  *store.Store
	org    *model.Organization
	parser *stubParser
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	org := &model.Organization{Name: "Riverbend", Timezone: "America/New_York", Active: true}
	require.NoError(t, s.CreateOrganization(ctx, org))

	p := &model.Practitioner{
		ID: "p1", OrgID: org.ID, Name: "Blake",
		WorkingHours: map[int]model.DayHours{
			1: {Start: "09:00", End: "17:00"},
			2: {Start: "09:00", End: "17:00"},
			3: {Start: "09:00", End: "17:00"},
		},
	}
	require.NoError(t, s.CreatePractitioner(ctx, p))
	require.NoError(t, s.CreateClient(ctx, &model.Client{ID: "c1", OrgID: org.ID, Name: "Jordan", SessionsPerWeek: 1}))

	validator := tenant.NewValidator(s, nil)
	eng := engine.New(s, validator, &config.Config{}, zerolog.Nop())
	parser := &stubParser{}
	server := NewServer(eng, s, validator, parser, zerolog.Nop())

	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: s, org: org, parser: parser}
}

func (f *fixture) do(t *testing.T, method, path, orgID string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if orgID != "" {
		req.Header.Set("X-Org-ID", orgID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeGenerate(t *testing.T, resp *http.Response) *engine.GenerateResult {
	t.Helper()
	var res engine.GenerateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return &res
}

func (f *fixture) generate(t *testing.T) *engine.GenerateResult {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/schedules/generate", f.org.ID,
		map[string]string{"week_start": "2025-03-03"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeGenerate(t, resp)
}

func TestGenerateEndpoint(t *testing.T) {
	f := newFixture(t)

	res := f.generate(t)
	assert.Equal(t, model.ScheduleDraft, res.Schedule.Status)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, 1, res.Stats.SessionsCreated)
	assert.Empty(t, res.Warnings)
}

func TestGenerateRequiresOrgHeader(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/schedules/generate", "",
		map[string]string{"week_start": "2025-03-03"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/schedules/generate", "nonexistent",
		map[string]string{"week_start": "2025-03-03"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGenerateMalformedWeekStart(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/schedules/generate", f.org.ID,
		map[string]string{"week_start": "next monday"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetScheduleScoping(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)

	resp := f.do(t, http.MethodGet, "/api/v1/schedules/"+res.Schedule.ID, f.org.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Schedule model.Schedule  `json:"schedule"`
		Sessions []model.Session `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, res.Schedule.ID, got.Schedule.ID)
	assert.Len(t, got.Sessions, 1)

	resp = f.do(t, http.MethodGet, "/api/v1/schedules/unknown", f.org.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Another organization's schedule is forbidden, not absent.
	other := &model.Organization{Name: "Other", Timezone: "UTC", Active: true}
	require.NoError(t, f.store.CreateOrganization(context.Background(), other))
	resp = f.do(t, http.MethodGet, "/api/v1/schedules/"+res.Schedule.ID, other.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestModifyStructuredCommand(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)

	resp := f.do(t, http.MethodPost, "/api/v1/schedules/"+res.Schedule.ID+"/modify", f.org.ID,
		map[string]any{"command": engine.ModificationCommand{
			Action:     engine.ActionMove,
			Confidence: 0.9,
			SessionID:  res.Sessions[0].ID,
			Date:       "2025-03-04",
			StartTime:  "11:00",
		}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mod engine.ModificationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mod))
	assert.Equal(t, "2025-03-04", mod.After.Date)
	assert.Contains(t, mod.Message, "moved")
}

func TestModifyLowConfidence(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)

	resp := f.do(t, http.MethodPost, "/api/v1/schedules/"+res.Schedule.ID+"/modify", f.org.ID,
		map[string]any{"command": engine.ModificationCommand{
			Action:     engine.ActionCancel,
			Confidence: 0.2,
			SessionID:  res.Sessions[0].ID,
		}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestModifyFreeText(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)

	f.parser.parsed = &nlp.ParsedCommand{
		Type:       "cancel",
		Confidence: 0.95,
		Data:       json.RawMessage(fmt.Sprintf(`{"session_id":%q}`, res.Sessions[0].ID)),
	}
	resp := f.do(t, http.MethodPost, "/api/v1/schedules/"+res.Schedule.ID+"/modify", f.org.ID,
		map[string]string{"text": "cancel jordan's monday session"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var mod engine.ModificationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mod))
	assert.Equal(t, engine.ActionCancel, mod.Action)
	assert.Nil(t, mod.After)
}

func TestModifyFreeTextBadPayload(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)

	f.parser.parsed = &nlp.ParsedCommand{
		Type:       "move",
		Confidence: 0.9,
		Data:       json.RawMessage(`{"session_id":"s1","date":"tomorrow"}`),
	}
	resp := f.do(t, http.MethodPost, "/api/v1/schedules/"+res.Schedule.ID+"/modify", f.org.ID,
		map[string]string{"text": "move it to tomorrow"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPublishLifecycle(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)
	path := "/api/v1/schedules/" + res.Schedule.ID

	resp := f.do(t, http.MethodPost, path+"/publish", f.org.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sched model.Schedule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sched))
	assert.Equal(t, model.SchedulePublished, sched.Status)

	resp = f.do(t, http.MethodPost, path+"/publish", f.org.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, path+"/modify", f.org.ID,
		map[string]any{"command": engine.ModificationCommand{
			Action: engine.ActionCancel, Confidence: 0.9, SessionID: res.Sessions[0].ID,
		}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDraftCopyEndpoint(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)

	resp := f.do(t, http.MethodPost, "/api/v1/schedules/"+res.Schedule.ID+"/draft-copy", f.org.ID,
		map[string]string{"week_start": "2025-03-10"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var dc engine.DraftCopyResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dc))
	assert.Len(t, dc.Kept, 1)
	assert.Empty(t, dc.Removed)
	assert.Equal(t, "2025-03-10", dc.Schedule.WeekStart)
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)
	res := f.generate(t)

	resp := f.do(t, http.MethodGet, "/api/v1/schedules/"+res.Schedule.ID+"/export.xlsx", f.org.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(resp.Header.Get("Content-Type"), "spreadsheetml"))

	wb, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer wb.Close()
	assert.Len(t, wb.GetSheetList(), 7)

	rows, err := wb.GetRows("Monday 2025-03-03")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jordan", rows[1][2])
	assert.Equal(t, "Blake", rows[1][3])
}

func TestRequestMetricStatusLabels(t *testing.T) {
	metrics.Register()
	f := newFixture(t)
	gen := f.generate(t)

	resp := f.do(t, http.MethodPost, "/api/v1/schedules/generate", f.org.ID,
		map[string]string{"week_start": "bogus"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/schedules/"+gen.Schedule.ID+"/modify", f.org.ID,
		map[string]any{"command": map[string]any{
			"action": "cancel", "confidence": 0.1, "session_id": gen.Sessions[0].ID,
		}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Success and failure outcomes alike label the counter with the
	// numeric status code, never a free-form reason string.
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "caresched_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() != "status" {
					continue
				}
				_, convErr := strconv.Atoi(lp.GetValue())
				assert.NoError(t, convErr, "status label %q is not a code", lp.GetValue())
			}
		}
	}
}
