package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealflow_backend/internal/leads/domain"
	"dealflow_backend/platform/httpkit"
	"dealflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(nil, nil, validator.New())
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextTenantIDKey, uuid.New())
	})
	engine.POST("/leads/ingest", h.Ingest)
	return engine
}

func postIngest(t *testing.T, engine *gin.Engine, metadata any) (int, httpkit.ErrorResponse) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"address":      "12 Main Street",
		"listingPrice": 150000,
		"metadata":     metadata,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	var resp httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func fieldNames(t *testing.T, resp httpkit.ErrorResponse) []string {
	t.Helper()
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok, "details: %#v", resp.Details)
	raw, ok := details["fields"].([]any)
	require.True(t, ok, "fields: %#v", details["fields"])
	names := make([]string, 0, len(raw))
	for _, f := range raw {
		names = append(names, f.(map[string]any)["field"].(string))
	}
	return names
}

func TestIngestRejectsInvalidMetadata(t *testing.T) {
	engine := ingestEngine()

	manyFields := make(map[string]any, 80)
	for i := 0; i < 80; i++ {
		manyFields[fmt.Sprintf("k%d", i)] = "v"
	}
	longKey := map[string]any{string(bytes.Repeat([]byte("x"), 65)): "v"}

	tests := []struct {
		name     string
		metadata any
		fields   []string
	}{
		{
			name:     "listing year and days on market out of range",
			metadata: map[string]any{"kind": "listing", "yearBuilt": 1200, "daysOnMarket": -5},
			fields:   []string{"daysOnMarket", "yearBuilt"},
		},
		{
			name:     "import row number below one",
			metadata: map[string]any{"kind": "import", "rowNumber": 0},
			fields:   []string{"rowNumber"},
		},
		{
			name:     "too many generic fields",
			metadata: manyFields,
			fields:   []string{"metadata"},
		},
		{
			name:     "generic key too long",
			metadata: longKey,
			fields:   []string{"metadata"},
		},
		{
			name:     "nested generic value",
			metadata: map[string]any{"owner": map[string]any{"name": "x"}},
			fields:   []string{"metadata"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := postIngest(t, engine, tt.metadata)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.ElementsMatch(t, tt.fields, fieldNames(t, resp))
		})
	}
}

func TestCheckMetadataAcceptsBoundaryValues(t *testing.T) {
	h := New(nil, nil, validator.New())
	year, days, row := 1800, 0, 1

	assert.NoError(t, h.checkMetadata(domain.Metadata{}))
	assert.NoError(t, h.checkMetadata(domain.Metadata{
		Kind:    domain.MetadataListing,
		Listing: &domain.ListingMetadata{YearBuilt: &year, DaysOnMarket: &days},
	}))
	assert.NoError(t, h.checkMetadata(domain.Metadata{
		Kind:   domain.MetadataImport,
		Import: &domain.ImportMetadata{RowNumber: &row},
	}))
	assert.NoError(t, h.checkMetadata(domain.Metadata{
		Kind:   domain.MetadataGeneric,
		Fields: map[string]string{"campaign": "spring"},
	}))
}
