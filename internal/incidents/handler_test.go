package incidents

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/agrohub/agrohub/internal/shared"
)

func do(t *testing.T, h *Handler, actor *shared.Principal, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.MountRoutes(r)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if actor != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), *actor))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandlerLifecycle(t *testing.T) {
	f := newFixture(false)
	h := NewHandler(nil, f.svc)

	rr := do(t, h, nil, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, &cashier, http.MethodPost, "/", `{"reason":"missing receipt","amount":20}`, map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		Data struct {
			IncidentID int64 `json:"incident_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	id := strconv.FormatInt(created.Data.IncidentID, 10)

	rr = do(t, h, &cashier, http.MethodPost, "/", `{"reason":"missing receipt","amount":20}`, map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, &hr, http.MethodPut, "/", `{"incident_id":`+id+`,"action":"pay"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"status":"paid"`)

	rr = do(t, h, &cashier, http.MethodGet, "/?incident_id="+id, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, &cashier, http.MethodPut, "/", `{"incident_id":`+id+`,"action":"notify"}`, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, h, &manager, http.MethodGet, "/?status=paid", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Data struct {
			Incidents []Incident `json:"incidents"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Data.Incidents, 1)
}

func TestHandlerStrictConflict(t *testing.T) {
	f := newFixture(true)
	h := NewHandler(nil, f.svc)
	id := strconv.FormatInt(f.report(t), 10)

	rr := do(t, h, &hr, http.MethodPut, "/", `{"incident_id":`+id+`,"action":"pay"}`, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"conflict"`)
}
