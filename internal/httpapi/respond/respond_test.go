package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/pkg/apierr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(url string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	return c, rec
}

func TestOKWritesEnvelope(t *testing.T) {
	c, rec := newContext("/x")
	OK(c, http.StatusCreated, gin.H{"id": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "success" {
		t.Fatalf("expected status success, got %v", body["status"])
	}
}

func TestListComputesHasMore(t *testing.T) {
	c, rec := newContext("/x")
	List(c, []int{1, 2}, 10, 2, 0, gin.H{"symbol": "BTCUSDT"})
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	pagination := body["pagination"].(map[string]interface{})
	if pagination["hasMore"] != true {
		t.Fatalf("expected hasMore true with total=10 offset=0 limit=2, got %v", pagination)
	}
	if body["filters"].(map[string]interface{})["symbol"] != "BTCUSDT" {
		t.Fatalf("expected filters to be echoed back, got %v", body["filters"])
	}
}

func TestListHasMoreFalseOnLastPage(t *testing.T) {
	c, rec := newContext("/x")
	List(c, []int{1}, 3, 20, 0, gin.H{})
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	pagination := body["pagination"].(map[string]interface{})
	if pagination["hasMore"] != false {
		t.Fatalf("expected hasMore false, got %v", pagination)
	}
}

func TestErrorMapsApierrKindToStatus(t *testing.T) {
	c, rec := newContext("/x")
	Error(c, apierr.New(apierr.NotFound, "bot not found"))
	if rec.Code != apierr.StatusCode(apierr.NotFound) {
		t.Fatalf("expected status %d, got %d", apierr.StatusCode(apierr.NotFound), rec.Code)
	}
}

func TestErrorIncludesValidationFields(t *testing.T) {
	c, rec := newContext("/x")
	Error(c, apierr.NewValidation(apierr.FieldError{Field: "password", Message: "too short"}))
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	errBody := body["error"].(map[string]interface{})
	if errBody["fields"] == nil {
		t.Fatalf("expected validation fields to be present, got %v", body)
	}
}

func TestErrorTreatsUnknownErrorAsInternal(t *testing.T) {
	c, rec := newContext("/x")
	Error(c, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a non-apierr error, got %d", rec.Code)
	}
}

func TestPairDefaultsAndClamps(t *testing.T) {
	c, _ := newContext("/x?limit=5000&offset=-1")
	limit, offset := Pair(c)
	if limit != 20 {
		t.Fatalf("expected out-of-range limit to fall back to default 20, got %d", limit)
	}
	if offset != 0 {
		t.Fatalf("expected negative offset to clamp to 0, got %d", offset)
	}
}

func TestPairHonorsValidValues(t *testing.T) {
	c, _ := newContext("/x?limit=50&offset=10")
	limit, offset := Pair(c)
	if limit != 50 || offset != 10 {
		t.Fatalf("expected limit=50 offset=10, got limit=%d offset=%d", limit, offset)
	}
}
