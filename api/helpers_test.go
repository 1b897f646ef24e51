package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/store/sqlstore"
)

// testNow is "today" for every handler test.
var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  *chi.Mux
	logs    *test.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := NewHandler(store, logger)
	h.Engine.Now = func() time.Time { return testNow }
	n := 0
	h.NewID = func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}

	return &testServer{handler: h, router: NewRouter(h, RouterOptions{}), logs: hook}
}

// do sends body (a string or any JSON-encodable value) and returns the
// recorded response.
func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// q1Plan is the Jan-Mar 2024 plan: start 1000, +500 / -800 a month and a
// 200 car repair on Feb 14.
const q1Plan = `{
  "id": "plan-q1",
  "family_id": "fam-1",
  "name": "Q1",
  "start_date": "2024-01-01",
  "end_date": "2024-03-31",
  "starting_balance_mode": "manual",
  "starting_balance_amount": "1000",
  "currency": "USD",
  "income_strategy":   {"mode": "manual_recurring", "amount": "500", "frequency": "monthly"},
  "outgoing_strategy": {"mode": "manual_recurring", "amount": "800", "frequency": "monthly"},
  "items": [
    {"id": "item-repair", "name": "Car repair", "type": "expense", "amount": "200", "fixed_date": "2024-02-14"}
  ]
}`
