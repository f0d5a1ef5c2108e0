package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/pan-validator/internal/ingest"
	"github.com/ignite/pan-validator/internal/metrics"
	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/pkg/distlock"
	"github.com/ignite/pan-validator/internal/pkg/httputil"
	"github.com/ignite/pan-validator/internal/report"
	"github.com/ignite/pan-validator/internal/resultstore"
	"github.com/ignite/pan-validator/internal/service/validation"
	"github.com/ignite/pan-validator/internal/storage"
)

type testEnv struct {
	router http.Handler
	redis  *redis.Client
}

func setupTestRouter(t *testing.T, src ingest.Source) testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	locks, err := distlock.NewLocker(client, nil, time.Minute)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()

	svc := validation.NewService(validation.Deps{
		Locks:        locks,
		Cache:        resultstore.NewRedisStore(client, time.Hour),
		Metrics:      metrics.New(reg),
		MaxBatchSize: 5,
	})
	hc := NewHealthChecker(nil, client, nil, "")
	return testEnv{
		router: SetupRoutes(NewHandlers(svc, src), hc, reg, nil),
		redis:  client,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestValidateOne(t *testing.T) {
	env := setupTestRouter(t, nil)

	cases := []struct {
		body    string
		id      string
		verdict pan.Verdict
	}{
		{`{"pan": " abxcd1934f "}`, "ABXCD1934F", pan.VerdictValid},
		{`{"pan": "AABCD1923F"}`, "AABCD1923F", pan.VerdictInvalidAdjacentAlphabets},
		{`{"pan": "ABXCD1234F"}`, "ABXCD1234F", pan.VerdictInvalidSequentialDigits},
		{`{"pan": null}`, "", pan.VerdictInvalidFormat},
		{`{}`, "", pan.VerdictInvalidFormat},
	}
	for _, tc := range cases {
		rec := do(t, env.router, http.MethodPost, "/api/v1/pan/validate", tc.body)
		require.Equal(t, http.StatusOK, rec.Code, tc.body)

		var got verdictResponse
		decode(t, rec, &got)
		assert.Equal(t, tc.id, got.Identifier, tc.body)
		assert.Equal(t, tc.verdict, got.Verdict, tc.body)
		assert.Equal(t, tc.verdict.IsValid(), got.Valid, tc.body)
	}

	rec := do(t, env.router, http.MethodPost, "/api/v1/pan/validate", `{"pan":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateBatch(t *testing.T) {
	env := setupTestRouter(t, nil)

	rec := do(t, env.router, http.MethodPost, "/api/v1/pan/batch?details=true",
		`{"values": ["ABXCD1934F", "abxcd1934f", null, "ABCDE1234F"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc report.Document
	decode(t, rec, &doc)
	assert.Equal(t, 3, doc.Summary.TotalRecords)
	assert.Equal(t, 1, doc.Summary.TotalValid)
	assert.Equal(t, 2, doc.Summary.TotalInvalid)
	assert.Equal(t, 1, doc.Dedup.Duplicates)
	assert.Equal(t, []pan.Outcome{
		{Identifier: "ABXCD1934F", Verdict: pan.VerdictValid},
		{Identifier: "", Verdict: pan.VerdictInvalidFormat},
		{Identifier: "ABCDE1234F", Verdict: pan.VerdictInvalidSequentialAlphabets},
	}, doc.Outcomes)

	rec = do(t, env.router, http.MethodPost, "/api/v1/pan/batch", `{"values": ["ABXCD1934F"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var summaryOnly report.Document
	decode(t, rec, &summaryOnly)
	assert.Empty(t, summaryOnly.Outcomes)
}

func TestValidateBatch_Rejects(t *testing.T) {
	env := setupTestRouter(t, nil)

	rec := do(t, env.router, http.MethodPost, "/api/v1/pan/batch", `{"values": ["ABXCD1934F", 42]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body httputil.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "invalid_record", body.Code)

	rec = do(t, env.router, http.MethodPost, "/api/v1/pan/batch", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, env.router, http.MethodPost, "/api/v1/pan/batch", `{"values": ["a","b","c","d","e","f"]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRunLookups(t *testing.T) {
	env := setupTestRouter(t, nil)

	rec := do(t, env.router, http.MethodPost, "/api/v1/pan/batch", `{"values": ["ABXCD1934F", "bad"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc report.Document
	decode(t, rec, &doc)

	rec = do(t, env.router, http.MethodGet, "/api/v1/runs/"+doc.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum pan.RunSummary
	decode(t, rec, &sum)
	assert.Equal(t, doc.Summary, sum.Summary)
	assert.Equal(t, validation.AdhocSource, sum.Source)

	rec = do(t, env.router, http.MethodGet, "/api/v1/runs/"+doc.RunID+"/verdicts/abxcd1934f", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v verdictResponse
	decode(t, rec, &v)
	assert.Equal(t, pan.VerdictValid, v.Verdict)

	rec = do(t, env.router, http.MethodGet, "/api/v1/runs/"+doc.RunID+"/verdicts/ZZZZZ0000Z", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, env.router, http.MethodGet, "/api/v1/runs/00000000-0000-0000-0000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, env.router, http.MethodGet, "/api/v1/runs/"+doc.RunID+"/outcomes", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestListRules(t *testing.T) {
	env := setupTestRouter(t, nil)
	rec := do(t, env.router, http.MethodGet, "/api/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rules []ruleInfo
	decode(t, rec, &rules)
	require.Len(t, rules, 5)
	assert.Equal(t, ruleInfo{Position: 1, Name: "format", Verdict: pan.VerdictInvalidFormat}, rules[0])
	assert.Equal(t, pan.VerdictInvalidSequentialDigits, rules[4].Verdict)
}

func TestTriggerRun(t *testing.T) {
	env := setupTestRouter(t, nil)
	rec := do(t, env.router, http.MethodPost, "/api/v1/runs", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	src := ingest.StaticSource{Label: "file:batch.csv", Items: pan.RawStrings("ABXCD1934F", "AABCD1923F")}
	env = setupTestRouter(t, src)

	rec = do(t, env.router, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc report.Document
	decode(t, rec, &doc)
	assert.Equal(t, "file:batch.csv", doc.Source)
	assert.Equal(t, 1, doc.Summary.TotalValid)

	held := distlock.NewRedisLock(env.redis, distlock.RunKey("file:batch.csv"), time.Minute)
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	rec = do(t, env.router, http.MethodPost, "/api/v1/runs", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestRouter(t, nil)

	rec := do(t, env.router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hs HealthStatus
	decode(t, rec, &hs)
	assert.Equal(t, "healthy", hs.Status)
	assert.Equal(t, "up", hs.Checks["redis"].Status)
	assert.Equal(t, "not_configured", hs.Checks["database"].Status)

	rec = do(t, env.router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	do(t, env.router, http.MethodPost, "/api/v1/pan/batch", `{"values": ["ABXCD1934F"]}`)
	rec = do(t, env.router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pan_verdicts_total{verdict="valid"} 1`)
	assert.Contains(t, rec.Body.String(), `pan_runs_total{status="succeeded"} 1`)
}

func TestOverallStatus(t *testing.T) {
	assert.Equal(t, "healthy", overallStatus(map[string]ComponentCheck{"redis": {Status: "up"}}))
	assert.Equal(t, "degraded", overallStatus(map[string]ComponentCheck{"s3": {Status: "down"}}))
	assert.Equal(t, "unhealthy", overallStatus(map[string]ComponentCheck{"database": {Status: "down", critical: true}}))
}

type memDynamo struct{ items []map[string]types.AttributeValue }

func (m *memDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.items = append(m.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memDynamo) Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{Items: m.items}, nil
}

func TestListSummaries(t *testing.T) {
	env := setupTestRouter(t, nil)
	rec := do(t, env.router, http.MethodGet, "/api/v1/sources/file:batch.csv/summaries", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	store := storage.NewAWSStorage(nil, &memDynamo{}, "", "", "pan_summaries")
	svc := validation.NewService(validation.Deps{
		Sink:    &report.DynamoSink{Store: store},
		History: store,
	})
	src := ingest.StaticSource{Label: "file:batch.csv", Items: pan.RawStrings("ABXCD1934F", "bad", "bad")}
	router := SetupRoutes(NewHandlers(svc, src), NewHealthChecker(nil, nil, nil, ""), prometheus.NewRegistry(), nil)

	rec = do(t, router, http.MethodPost, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/v1/sources/file:batch.csv/summaries?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Source    string           `json:"source"`
		Summaries []pan.RunSummary `json:"summaries"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "file:batch.csv", body.Source)
	require.Len(t, body.Summaries, 1)
	assert.Equal(t, 2, body.Summaries[0].Summary.TotalRecords)
	assert.Equal(t, 1, body.Summaries[0].Dedup.Duplicates)
	assert.Equal(t, 1, body.Summaries[0].Summary.ByVerdict[pan.VerdictInvalidFormat])
}

func TestGetVerdict_BlankIdentifier(t *testing.T) {
	env := setupTestRouter(t, nil)
	rec := do(t, env.router, http.MethodPost, "/api/v1/pan/batch", `{"values": ["ABXCD1934F"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc report.Document
	decode(t, rec, &doc)

	rec = do(t, env.router, http.MethodGet, "/api/v1/runs/"+doc.RunID+"/verdicts/%20", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
