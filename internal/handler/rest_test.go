package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/reverse-auction/internal/auction"
	"github.com/vyrodovalexey/reverse-auction/internal/model"
	"github.com/vyrodovalexey/reverse-auction/internal/store"
)

var errBackend = errors.New("backend unavailable")

// failingService implements AuctionService and fails every call.
type failingService struct {
	err error
}

func (f *failingService) StartAuction(context.Context, map[string]float64) (map[string]model.Item, error) {
	return nil, f.err
}

func (f *failingService) PlaceBid(context.Context, string, string, float64) (model.Confirmation, error) {
	return nil, f.err
}

func (f *failingService) GetUserBids(context.Context, string) (model.UserBids, error) {
	return nil, f.err
}

func (f *failingService) ResolveResults(context.Context) (map[string]model.Result, error) {
	return nil, f.err
}

func (f *failingService) GetResults(context.Context) (map[string]model.Result, error) {
	return nil, f.err
}

func (f *failingService) Items(context.Context) (map[string]model.Item, error) {
	return nil, f.err
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	engine := auction.NewEngine(store.NewMemoryStore(), zap.NewNop())
	router := mux.NewRouter()
	NewRESTHandler(engine, zap.NewNop()).RegisterRoutes(router)
	return router
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func bidForm(user, item, bid string) url.Values {
	return url.Values{formUserID: {user}, formItemID: {item}, formBid: {bid}}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestNewRESTHandler(t *testing.T) {
	// Arrange
	svc := &failingService{}
	logger := zap.NewNop()

	// Act
	handler := NewRESTHandler(svc, logger)

	// Assert
	if handler == nil {
		t.Fatal("NewRESTHandler() returned nil")
	}
	if handler.service == nil {
		t.Error("service should not be nil")
	}
	if handler.logger == nil {
		t.Error("logger should not be nil")
	}
}

func TestRESTHandler_HealthCheck(t *testing.T) {
	// Arrange
	router := newTestRouter(t)

	// Act
	rr := get(router, "/health")

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("HealthCheck() status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %q, want %q", resp.Status, "healthy")
	}
	if resp.Version != Version {
		t.Errorf("Version = %q, want %q", resp.Version, Version)
	}
}

func TestRESTHandler_ReadyCheck(t *testing.T) {
	// Arrange
	router := newTestRouter(t)

	// Act
	rr := get(router, "/ready")

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("ReadyCheck() status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp ReadyResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ready" {
		t.Errorf("Status = %q, want %q", resp.Status, "ready")
	}
}

func TestRESTHandler_StartAuction(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		form       url.Values
		wantStatus int
		wantItems  int
	}{
		{
			name:       "form with trailing slash",
			path:       "/auction/",
			form:       url.Values{"car": {"100"}, "phone": {"10.5"}},
			wantStatus: http.StatusAccepted,
			wantItems:  2,
		},
		{
			name:       "form without trailing slash",
			path:       "/auction",
			form:       url.Values{"car": {"100"}},
			wantStatus: http.StatusAccepted,
			wantItems:  1,
		},
		{
			name:       "empty form",
			path:       "/auction/",
			form:       url.Values{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non numeric price",
			path:       "/auction/",
			form:       url.Values{"car": {"cheap"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "negative price",
			path:       "/auction/",
			form:       url.Values{"car": {"-1"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			router := newTestRouter(t)

			// Act
			rr := postForm(router, tt.path, tt.form)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("StartAuction() status = %d, want %d, body = %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				resp := decodeError(t, rr)
				if resp.Reason != ReasonInvalidArgument {
					t.Errorf("Reason = %q, want %q", resp.Reason, ReasonInvalidArgument)
				}
				return
			}

			var items map[string]model.Item
			if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if len(items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(items), tt.wantItems)
			}
			for key, item := range items {
				if item.LowestBid.Present() {
					t.Errorf("item %q has a lowest bid right after start", key)
				}
			}
		})
	}
}

func TestRESTHandler_StartAuction_JSONBody(t *testing.T) {
	// Arrange
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/auction/", strings.NewReader(`{"car":100,"phone":10}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rr, req)

	// Assert
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"starting_bid":100`) || !strings.Contains(body, `"lowest_bid":null`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRESTHandler_StartAuction_ResetsBids(t *testing.T) {
	// Arrange
	router := newTestRouter(t)
	postForm(router, "/auction/", url.Values{"car": {"100"}})
	postForm(router, "/bidding/", bidForm("Adam", "car", "150"))

	// Act
	rr := postForm(router, "/auction/", url.Values{"car": {"100"}})

	// Assert
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}
	if got := get(router, "/bidding/Adam"); got.Code != http.StatusNotFound {
		t.Errorf("user bids after reset status = %d, want %d", got.Code, http.StatusNotFound)
	}
	if got := get(router, "/bidding/"); got.Code != http.StatusNotFound {
		t.Errorf("results after reset status = %d, want %d", got.Code, http.StatusNotFound)
	}
}

func TestRESTHandler_PlaceBid(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		form       url.Values
		wantStatus int
		wantReason string
	}{
		{
			name:       "accepted",
			path:       "/bidding/",
			form:       bidForm("Adam", "car", "150"),
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "accepted without trailing slash",
			path:       "/bidding",
			form:       bidForm("Adam", "car", "150"),
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "equal to starting bid",
			path:       "/bidding/",
			form:       bidForm("Adam", "car", "100"),
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "below starting bid",
			path:       "/bidding/",
			form:       bidForm("Adam", "car", "90"),
			wantStatus: http.StatusNotAcceptable,
			wantReason: ReasonBidTooLow,
		},
		{
			name:       "negative bid",
			path:       "/bidding/",
			form:       bidForm("Adam", "car", "-5"),
			wantStatus: http.StatusNotAcceptable,
			wantReason: ReasonBidTooLow,
		},
		{
			name:       "unknown item",
			path:       "/bidding/",
			form:       bidForm("Adam", "boat", "150"),
			wantStatus: http.StatusNotFound,
			wantReason: ReasonItemNotFound,
		},
		{
			name:       "non numeric bid",
			path:       "/bidding/",
			form:       bidForm("Adam", "car", "lots"),
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonInvalidArgument,
		},
		{
			name:       "missing bid",
			path:       "/bidding/",
			form:       url.Values{formUserID: {"Adam"}, formItemID: {"car"}},
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonInvalidArgument,
		},
		{
			name:       "unknown item with non numeric bid",
			path:       "/bidding/",
			form:       bidForm("Adam", "boat", "lots"),
			wantStatus: http.StatusNotFound,
			wantReason: ReasonItemNotFound,
		},
		{
			name:       "unknown item with missing bid",
			path:       "/bidding/",
			form:       url.Values{formUserID: {"Adam"}, formItemID: {"boat"}},
			wantStatus: http.StatusNotFound,
			wantReason: ReasonItemNotFound,
		},
		{
			name:       "missing item and bid",
			path:       "/bidding/",
			form:       url.Values{formUserID: {"Adam"}},
			wantStatus: http.StatusNotFound,
			wantReason: ReasonItemNotFound,
		},
		{
			name:       "missing user",
			path:       "/bidding/",
			form:       bidForm("", "car", "150"),
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonInvalidArgument,
		},
		{
			name:       "missing item",
			path:       "/bidding/",
			form:       bidForm("Adam", "", "150"),
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			router := newTestRouter(t)
			postForm(router, "/auction/", url.Values{"car": {"100"}})

			// Act
			rr := postForm(router, tt.path, tt.form)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("PlaceBid() status = %d, want %d, body = %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantReason != "" {
				resp := decodeError(t, rr)
				if resp.Reason != tt.wantReason {
					t.Errorf("Reason = %q, want %q", resp.Reason, tt.wantReason)
				}
				if resp.Code != tt.wantStatus {
					t.Errorf("Code = %d, want %d", resp.Code, tt.wantStatus)
				}
				return
			}

			var confirmation model.Confirmation
			if err := json.NewDecoder(rr.Body).Decode(&confirmation); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			user := tt.form.Get(formUserID)
			if _, ok := confirmation[user]["car"]; !ok {
				t.Errorf("confirmation = %v, want entry for %s/car", confirmation, user)
			}
		})
	}
}

func TestRESTHandler_GetUserBids(t *testing.T) {
	// Arrange
	router := newTestRouter(t)
	postForm(router, "/auction/", url.Values{"car": {"100"}, "phone": {"10"}})
	postForm(router, "/bidding/", bidForm("Adam", "car", "150"))
	postForm(router, "/bidding/", bidForm("Adam", "phone", "12"))
	postForm(router, "/bidding/", bidForm("Adam", "car", "130"))

	// Act
	rr := get(router, "/bidding/Adam")

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var bids model.UserBids
	if err := json.NewDecoder(rr.Body).Decode(&bids); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	want := model.UserBids{"car": 130, "phone": 12}
	if len(bids) != len(want) {
		t.Fatalf("bids = %v, want %v", bids, want)
	}
	for item, amount := range want {
		if bids[item] != amount {
			t.Errorf("bids[%q] = %v, want %v", item, bids[item], amount)
		}
	}
}

func TestRESTHandler_GetUserBids_UnknownUser(t *testing.T) {
	// Arrange
	router := newTestRouter(t)
	postForm(router, "/auction/", url.Values{"car": {"100"}})

	// Act
	rr := get(router, "/bidding/Ghost")

	// Assert
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if resp := decodeError(t, rr); resp.Reason != ReasonUserNotFound {
		t.Errorf("Reason = %q, want %q", resp.Reason, ReasonUserNotFound)
	}
}

func TestRESTHandler_Results(t *testing.T) {
	// Arrange
	router := newTestRouter(t)
	postForm(router, "/auction/", url.Values{"car": {"100"}, "phone": {"10"}})
	postForm(router, "/bidding/", bidForm("Adam", "car", "150"))
	postForm(router, "/bidding/", bidForm("Mark", "car", "120"))
	postForm(router, "/bidding/", bidForm("Nina", "car", "120"))

	// Act
	before := get(router, "/bidding/")
	resolved := get(router, "/auction")
	after := get(router, "/bidding")

	// Assert
	if before.Code != http.StatusNotFound {
		t.Errorf("results before resolution status = %d, want %d", before.Code, http.StatusNotFound)
	}
	if before.Code == http.StatusNotFound {
		if resp := decodeError(t, before); resp.Reason != ReasonResultsNotReady {
			t.Errorf("Reason = %q, want %q", resp.Reason, ReasonResultsNotReady)
		}
	}
	if resolved.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, want %d", resolved.Code, http.StatusOK)
	}
	if after.Code != http.StatusOK {
		t.Fatalf("results status = %d, want %d", after.Code, http.StatusOK)
	}

	resolvedBody := resolved.Body.String()
	if resolvedBody != after.Body.String() {
		t.Errorf("resolve body %s differs from results body %s", resolvedBody, after.Body.String())
	}

	var results map[string]model.Result
	if err := json.Unmarshal([]byte(resolvedBody), &results); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %v, want only car", results)
	}
	if got := results["car"]; got.LowestBidder != "Mark" || got.LowestBid != 120 {
		t.Errorf("car result = %+v, want Mark at 120", got)
	}
}

func TestRESTHandler_ListItems(t *testing.T) {
	// Arrange
	router := newTestRouter(t)
	postForm(router, "/auction/", url.Values{"car": {"100"}})
	postForm(router, "/bidding/", bidForm("Adam", "car", "150"))

	// Act
	rr := get(router, "/auction/items")

	// Assert
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var items map[string]model.Item
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	lowest, ok := items["car"].LowestBid.Get()
	if !ok || lowest.Bidder != "Adam" || lowest.Amount != 150 {
		t.Errorf("car lowest bid = %+v (present %v), want Adam at 150", lowest, ok)
	}
}

func TestRESTHandler_InternalError(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		form   url.Values
	}{
		{name: "start", method: http.MethodPost, path: "/auction/", form: url.Values{"car": {"1"}}},
		{name: "resolve", method: http.MethodGet, path: "/auction/"},
		{name: "items", method: http.MethodGet, path: "/auction/items"},
		{name: "bid", method: http.MethodPost, path: "/bidding/", form: bidForm("Adam", "car", "1")},
		{name: "results", method: http.MethodGet, path: "/bidding/"},
		{name: "user bids", method: http.MethodGet, path: "/bidding/Adam"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			router := mux.NewRouter()
			NewRESTHandler(&failingService{err: errBackend}, zap.NewNop()).RegisterRoutes(router)

			// Act
			var rr *httptest.ResponseRecorder
			if tt.method == http.MethodPost {
				rr = postForm(router, tt.path, tt.form)
			} else {
				rr = get(router, tt.path)
			}

			// Assert
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
			}
			resp := decodeError(t, rr)
			if resp.Reason != ReasonInternal {
				t.Errorf("Reason = %q, want %q", resp.Reason, ReasonInternal)
			}
			if strings.Contains(resp.Message, errBackend.Error()) {
				t.Error("internal error details leaked into the response")
			}
		})
	}
}

func TestRESTHandler_MethodNotAllowed(t *testing.T) {
	// Arrange
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodDelete, "/bidding/", nil)
	rr := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rr, req)

	// Assert
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}
