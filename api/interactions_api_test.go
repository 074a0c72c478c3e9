/*
Copyright 2024 SellerDesk Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/sellerdesk"
	model2 "github.com/sellerdesk/sellerdesk/api/model"
	"github.com/sellerdesk/sellerdesk/config"
	"github.com/sellerdesk/sellerdesk/database/mocks"
	"github.com/sellerdesk/sellerdesk/internal/apierror"
	"github.com/sellerdesk/sellerdesk/internal/request"
	"github.com/sellerdesk/sellerdesk/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *mocks.MockDataSource) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis:       config.RedisConfig{Dns: mr.Addr()},
		DataSource:  config.DataSourceConfig{Dns: "postgres://postgres:@localhost:5432/sellerdesk?sslmode=disable"},
		Marketplace: config.MarketplaceConfig{Name: "market"},
	})

	mockDS := new(mocks.MockDataSource)
	engine, err := sellerdesk.NewSellerdesk(mockDS)
	require.NoError(t, err)
	router := NewAPI(engine).Router()
	return router, mockDS
}

func TestGetInteraction(t *testing.T) {
	router, mockDS := setupRouter(t)

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Marketplace:   "market",
		Channel:       model.ChannelReview,
		ExternalID:    "rev_1",
		Status:        model.StatusOpen,
		Priority:      model.PriorityHigh,
	}
	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)

	var response model.Interaction
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/interactions/int_1",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "int_1", response.InteractionID)
	assert.Equal(t, model.PriorityHigh, response.Priority)
}

func TestGetInteractionNotFound(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("GetInteraction", mock.Anything, "int_missing").
		Return((*model.Interaction)(nil), apierror.NewAPIError(apierror.ErrNotFound, "Interaction with ID 'int_missing' not found", nil))

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/interactions/int_missing",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestGetAllInteractionsRejectsUnknownChannel(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/interactions?channel=telegram",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetAllInteractionsFiltered(t *testing.T) {
	router, mockDS := setupRouter(t)

	needs := true
	expectedFilter := model.InteractionFilter{
		SellerID:      "seller_1",
		Channel:       model.ChannelReview,
		Status:        model.StatusOpen,
		NeedsResponse: &needs,
	}
	mockDS.On("GetAllInteractions", mock.Anything, expectedFilter, 50, 0).
		Return([]*model.Interaction{{InteractionID: "int_1"}}, nil)

	var response []model.Interaction
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/interactions?seller_id=seller_1&channel=review&status=open&needs_response=true",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, response, 1)
	assert.Equal(t, "int_1", response[0].InteractionID)
}

func TestUpdateInteractionStatusValidation(t *testing.T) {
	router, _ := setupRouter(t)

	payload, _ := request.ToJsonReq(&model2.UpdateStatusRequest{Status: "archived"})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "PUT",
		Route:    "/interactions/int_1/status",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetThread(t *testing.T) {
	router, mockDS := setupRouter(t)

	root := &model.Interaction{InteractionID: "int_1", SellerID: "seller_1", Channel: model.ChannelReview}
	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(root, nil)
	mockDS.On("GetLinksForInteraction", mock.Anything, "int_1").Return([]*model.LinkCandidate{}, nil)
	mockDS.On("GetInteractionEvents", mock.Anything, "int_1").Return([]*model.InteractionEvent{
		{EventID: "evt_1", InteractionID: "int_1", EventType: model.EventIngested},
	}, nil)

	var response sellerdesk.Thread
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/interactions/int_1/thread",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "int_1", response.Interaction.InteractionID)
	require.Len(t, response.Events, 1)
}

func TestGetInteractionLinks(t *testing.T) {
	router, mockDS := setupRouter(t)

	root := &model.Interaction{InteractionID: "int_1", SellerID: "seller_1", Channel: model.ChannelReview}
	other := &model.Interaction{InteractionID: "int_2", SellerID: "seller_1", Channel: model.ChannelChat}
	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(root, nil)
	mockDS.On("GetInteraction", mock.Anything, "int_2").Return(other, nil)
	mockDS.On("GetLinksForInteraction", mock.Anything, "int_1").Return([]*model.LinkCandidate{
		model.NewLinkCandidate("int_1", "int_2", model.LinkTypeDeterministic, 0.99, []string{"order_id"}),
		model.NewLinkCandidate("int_1", "int_2", model.LinkTypeProbabilistic, 0.40, []string{"name_match"}),
	}, nil)

	var response []sellerdesk.ResolvedLink
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/interactions/int_1/links",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, response, 2, "analytics-tier links stay visible on the links endpoint")
	assert.Equal(t, model.LinkVisibilityAction, response[0].Visibility)
	assert.Equal(t, model.ActionModeAuto, response[0].ActionMode)
	assert.Equal(t, model.LinkVisibilityAnalytics, response[1].Visibility)
	assert.Equal(t, model.ActionModeAssistOnly, response[1].ActionMode)
}

func TestValidateDraftEndpoint(t *testing.T) {
	router, mockDS := setupRouter(t)

	in := &model.Interaction{InteractionID: "int_1", SellerID: "seller_1", Channel: model.ChannelReview}
	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)

	payload, _ := request.ToJsonReq(&model2.DraftRequest{Text: "Вы сами виноваты, что он сломался"})
	var response sellerdesk.ValidationResult
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/interactions/int_1/draft/validate",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code, "validation itself succeeds, the verdict is in the body")
	assert.False(t, response.Valid)
	assert.True(t, response.Blocked())
}

func TestSendReplyBlockedReturns422(t *testing.T) {
	router, mockDS := setupRouter(t)

	in := &model.Interaction{
		InteractionID: "int_1",
		SellerID:      "seller_1",
		Channel:       model.ChannelReview,
		ExternalID:    "rev_1",
	}
	mockDS.On("GetInteraction", mock.Anything, "int_1").Return(in, nil)
	mockDS.On("RecordInteractionEvent", mock.Anything, mock.Anything).Return(nil)

	payload, _ := request.ToJsonReq(&model2.SendReplyRequest{
		Text:     "Как языковая модель, я рекомендую вернуть товар.",
		Operator: "operator_1",
	})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/interactions/int_1/reply",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.NotEmpty(t, response["details"], "the violations ride along in the error details")
}

func TestSendReplyRequiresOperator(t *testing.T) {
	router, _ := setupRouter(t)

	payload, _ := request.ToJsonReq(&model2.SendReplyRequest{Text: "Спасибо!"})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/interactions/int_1/reply",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSyncStatusEndpoint(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("GetSyncWatermarks", mock.Anything, "seller_1").Return([]*model.SyncWatermark{
		{SellerID: "seller_1", Channel: model.ChannelReview},
		{SellerID: "seller_1", Channel: model.ChannelChat, LastError: "upstream down"},
	}, nil)

	var response []model.SyncWatermark
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/sync/status?seller_id=seller_1",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, response, 2)
	assert.Equal(t, "upstream down", response[1].LastError)
}

func TestMetricsRequiresSellerID(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/metrics",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, mockDS := setupRouter(t)

	mockDS.On("GetInteractionCounts", mock.Anything, "seller_1").Return(&model.InteractionCounts{
		Total:      3,
		ByStatus:   map[string]int64{model.StatusOpen: 3},
		ByPriority: map[string]int64{model.PriorityNormal: 3},
		ByChannel:  map[string]int64{"review": 3},
	}, nil)
	mockDS.On("GetEventTypeCounts", mock.Anything, "seller_1").Return(map[string]int64{
		model.EventIngested:  3,
		model.EventReplySent: 1,
	}, nil)
	mockDS.On("GetLinkCounts", mock.Anything, "seller_1", mock.Anything).Return(&model.LinkCounts{Total: 1, Deterministic: 1, AutoEligible: 1}, nil)
	mockDS.On("CountOverdueOpen", mock.Anything, "seller_1").Return(int64(1), nil)
	mockDS.On("GetSyncWatermarks", mock.Anything, "seller_1").Return([]*model.SyncWatermark{}, nil)

	var response sellerdesk.SellerMetrics
	resp, err := SetUpTestRequest(TestRequest{
		Response: &response,
		Method:   "GET",
		Route:    "/metrics?seller_id=seller_1",
		Router:   router,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(3), response.Counts.Total)
	require.NotNil(t, response.Quality)
	assert.Equal(t, int64(1), response.Quality.RepliesSent)
	assert.Equal(t, int64(1), response.Quality.OverdueOpen)
	assert.Len(t, response.Channels, 3)
}
