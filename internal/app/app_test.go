package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"mcprelay/internal/domain"
)

func TestApplyStackBudgetRejectsExcessiveBudget(t *testing.T) {
	err := applyStackBudget(1<<40, zap.NewNop())
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeStackOverflow))
}

func TestApplyStackBudgetLogsRemediationHint(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	require.NoError(t, applyStackBudget(domain.DefaultMaxStackBytes, zap.New(core)))

	entries := logs.FilterMessage("execution stack budget set").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(domain.DefaultMaxStackBytes), fields["maxStackBytes"])
	hint, ok := fields["hint"].(string)
	require.True(t, ok)
	assert.Contains(t, hint, "maxStackBytes")
}

func TestPrintCatalogWritesDiscoveredTable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /servers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"srv1","name":"Weather","tools":[
				{"id":"t1","name":"Get Weather","slug":"get-weather","parameters":[
					{"name":"city","type":"string","required":true}
				]}
			]}
		]`))
	})
	mux.HandleFunc("GET /resources/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"resources":[]}`))
	})
	mux.HandleFunc("POST /prompts/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prompts":[]}`))
	})
	backendSrv := httptest.NewServer(mux)
	t.Cleanup(backendSrv.Close)

	t.Setenv("MCPRELAY_APIKEY", "test-key")
	t.Setenv("MCPRELAY_BASEURL", backendSrv.URL)

	var out bytes.Buffer
	err := New(zaptest.NewLogger(t)).PrintCatalog(context.Background(), CatalogConfig{Out: &out})
	require.NoError(t, err)

	var table domain.CapabilityTable
	require.NoError(t, json.Unmarshal(out.Bytes(), &table))
	require.Len(t, table.Tools, 1)
	// Unscoped mode prefixes the server id.
	assert.Equal(t, "srv1_get-weather", table.Tools[0].LocalName)
	assert.Equal(t, "get-weather", table.Tools[0].RemoteKey)
}

func TestPrintCatalogFailsWhenPrimaryFetchFails(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusUnauthorized)
	}))
	t.Cleanup(backendSrv.Close)

	t.Setenv("MCPRELAY_APIKEY", "bad-key")
	t.Setenv("MCPRELAY_BASEURL", backendSrv.URL)

	err := New(zaptest.NewLogger(t)).PrintCatalog(context.Background(), CatalogConfig{Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeFetchFailure))
}

func TestValidateReportsInvalidConfig(t *testing.T) {
	t.Setenv("MCPRELAY_APIKEY", "")
	t.Setenv("MCPRELAY_BASEURL", "")

	err := New(zaptest.NewLogger(t)).Validate(ValidateConfig{})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConfigInvalid))
}
