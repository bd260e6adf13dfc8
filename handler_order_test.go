package labflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jcuga/golongpoll"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlims/labflow/config"
)

func newTestAPI(orderRepository OrderRepository, patientRepository PatientRepository) (GinApi, *gin.Engine) {
	configuration := &config.Configuration{
		Authorization:         false,
		Development:           false,
		LogLevel:              zerolog.InfoLevel,
		RequestTimeoutSeconds: 5,
	}
	longpollManager, _ := golongpoll.StartLongpoll(golongpoll.Options{})

	auditLogService := &auditLogServiceMock{}
	instrumentService := &instrumentServiceMock{}
	flaggingService := &flaggingServiceMock{}
	reagentService := &reagentServiceMock{}
	orderService := NewOrderService(orderRepository, patientRepository, &parameterRepositoryMock{},
		flaggingService, reagentService, instrumentService, auditLogService)

	engine := gin.New()
	ginApi := newAPI(engine, configuration, nil, orderService, flaggingService, reagentService, instrumentService, auditLogService, longpollManager)
	return ginApi, engine
}

func TestCreateTestOrderEndpointWrapsOrderInEnvelope(t *testing.T) {
	patient := knownPatient()
	orderRepositoryMock := &orderRepositoryMock{
		countActiveOrdersByPatientIDFunc: func(_ context.Context, _ string) (int, error) {
			return 0, nil
		},
		createOrderFunc: func(_ context.Context, order TestOrder) (string, error) {
			return order.ID, nil
		},
	}
	patientRepositoryMock := &patientRepositoryMock{
		getPatientByIDFunc: func(_ context.Context, _ string) (Patient, error) {
			return patient, nil
		},
	}
	_, engine := newTestAPI(orderRepositoryMock, patientRepositoryMock)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/test-orders", strings.NewReader(`{"patientId":"`+patient.ID+`"}`))
	request.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusCreated, recorder.Code)

	var response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    struct {
			ID          string      `json:"id"`
			Barcode     string      `json:"barcode"`
			PatientID   string      `json:"patientId"`
			Status      OrderStatus `json:"status"`
			TestResults []struct{}  `json:"testResults"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, "Test order created", response.Message)
	assert.True(t, IsValidEntityID(response.Data.ID))
	assert.Regexp(t, `^BC-[A-Z0-9]{9}$`, response.Data.Barcode)
	assert.Equal(t, patient.ID, response.Data.PatientID)
	assert.Equal(t, OrderStatusPending, response.Data.Status)
	assert.NotNil(t, response.Data.TestResults)
}

func TestCreateTestOrderEndpointRejectsMalformedPatientID(t *testing.T) {
	_, engine := newTestAPI(&orderRepositoryMock{}, &patientRepositoryMock{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/test-orders", strings.NewReader(`{"patientId":"not-an-id"}`))
	request.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var response struct {
		Success bool `json:"success"`
		Error   struct {
			Category string            `json:"category"`
			Fields   map[string]string `json:"fields"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.False(t, response.Success)
	assert.Equal(t, string(ErrorCategoryValidation), response.Error.Category)
	assert.Contains(t, response.Error.Fields, "patientId")
}

func TestGetTestOrderEndpointMapsNotFound(t *testing.T) {
	orderRepositoryMock := &orderRepositoryMock{
		getOrderByIDFunc: func(_ context.Context, _ string) (TestOrder, error) {
			return TestOrder{}, NewNotFoundError(MsgTestOrderNotFound)
		},
	}
	_, engine := newTestAPI(orderRepositoryMock, &patientRepositoryMock{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/test-orders/6897e1cd15f60b7dfc01a520", nil)
	engine.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusNotFound, recorder.Code)

	var response struct {
		Success bool `json:"success"`
		Error   struct {
			Category string `json:"category"`
			Message  string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.False(t, response.Success)
	assert.Equal(t, string(ErrorCategoryNotFound), response.Error.Category)
	assert.Equal(t, MsgTestOrderNotFound, response.Error.Message)
}

func TestGetTestOrderEndpointValidatesIDShape(t *testing.T) {
	_, engine := newTestAPI(&orderRepositoryMock{}, &patientRepositoryMock{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/test-orders/short-id", nil)
	engine.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
