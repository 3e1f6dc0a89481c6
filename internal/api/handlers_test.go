package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"londonsqft/server/internal/database"
	"londonsqft/server/internal/models"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) GetDistrictStatistics() ([]models.DistrictStatistic, error) {
	args := m.Called()
	stats, _ := args.Get(0).([]models.DistrictStatistic)
	return stats, args.Error(1)
}

func (m *MockReader) GetDistrictStatistic(district string) (*models.DistrictStatistic, error) {
	args := m.Called(district)
	stat, _ := args.Get(0).(*models.DistrictStatistic)
	return stat, args.Error(1)
}

func (m *MockReader) GetStageStatuses() ([]models.StageStatus, error) {
	args := m.Called()
	statuses, _ := args.Get(0).([]models.StageStatus)
	return statuses, args.Error(1)
}

func setupRouter(reader StatisticsReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	router := gin.New()
	SetupRoutes(router, reader, logger)
	return router
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetDistricts(t *testing.T) {
	flats := 900.0
	stats := []models.DistrictStatistic{
		{District: "E14", MedianPricePerSqFt: 800, MedianFlatsPricePerSqFt: &flats, SampleSize: 6, FlatsSampleSize: 6, MatchRate: 0.86},
		{District: "N1", MedianPricePerSqFt: 1250, SampleSize: 5, PercentDiff: 56.3},
	}

	tests := []struct {
		name           string
		stats          []models.DistrictStatistic
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "statistics",
			stats:          stats,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "no statistics yet",
			stats:          nil,
			expectedStatus: http.StatusOK,
			expectedBody:   "[]",
		},
		{
			name:           "store error",
			err:            assert.AnError,
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Failed to get district statistics"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockReader)
			reader.On("GetDistrictStatistics").Return(tt.stats, tt.err)

			w := serve(setupRouter(reader), "/api/districts")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			} else {
				var got []models.DistrictStatistic
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, tt.stats, got)
			}
			reader.AssertExpectations(t)
		})
	}
}

func TestGetDistrict(t *testing.T) {
	e14 := &models.DistrictStatistic{District: "E14", MedianPricePerSqFt: 800, SampleSize: 6}

	tests := []struct {
		name           string
		path           string
		district       string
		stat           *models.DistrictStatistic
		err            error
		expectedStatus int
	}{
		{
			name:           "found",
			path:           "/api/districts/E14",
			district:       "E14",
			stat:           e14,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "lower case district",
			path:           "/api/districts/e14",
			district:       "E14",
			stat:           e14,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown district",
			path:           "/api/districts/W1",
			district:       "W1",
			err:            database.ErrNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "store error",
			path:           "/api/districts/N1",
			district:       "N1",
			err:            assert.AnError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockReader)
			reader.On("GetDistrictStatistic", tt.district).Return(tt.stat, tt.err)

			w := serve(setupRouter(reader), tt.path)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.stat != nil {
				var got models.DistrictStatistic
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, *tt.stat, got)
			}
			reader.AssertExpectations(t)
		})
	}
}

func TestGetStages(t *testing.T) {
	reader := new(MockReader)
	reader.On("GetStageStatuses").Return([]models.StageStatus{
		{Stage: models.StageParseTransactions, State: models.StateCompleted, RowsRead: 14, RowsWritten: 12},
		{Stage: models.StageParseBuildings, State: models.StateRunning},
	}, nil)

	w := serve(setupRouter(reader), "/api/stages")

	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "parse-transactions", got[0]["stage"])
	assert.Equal(t, "completed", got[0]["state"])
	assert.Equal(t, float64(12), got[0]["rows_written"])
	assert.Equal(t, "running", got[1]["state"])
	reader.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	w := serve(setupRouter(new(MockReader)), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
