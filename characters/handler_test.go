package characters

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chargen_back/gate"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	guard, err := gate.NewTokenGuard("secret")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	router := gin.New()
	module := &Module{db: svc.db, svc: svc}
	module.mountRoutes(router, guard)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	out := map[string]json.RawMessage{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestGenerateEndpointRejectsMissingToken(t *testing.T) {
	db := newTestDB(t)
	gen := &stubImageGenerator{img: []byte("png")}
	svc := NewService(db, gen, &stubTextGenerator{}, &stubPortraitStore{imageURL: "u"})
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/generate", map[string]string{"traits": "elf ranger"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: want 401 got %d", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not be called without a token, got %d calls", gen.calls)
	}
	if got := countCharacters(t, db); got != 0 {
		t.Fatalf("row count: want 0 got %d", got)
	}
}

func TestGenerateEndpointCreatesCharacter(t *testing.T) {
	db := newTestDB(t)
	store := &stubPortraitStore{imageURL: "https://cdn.example.com/chargen/portraits/abc123.png"}
	svc := NewService(db, &stubImageGenerator{img: make([]byte, 2048)}, &stubTextGenerator{}, store)
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/generate?t=secret", map[string]string{
		"name":    "Sylva",
		"class":   "ranger",
		"details": "grew up in the woods",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Character Character `json:"character"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Character.ID == "" {
		t.Fatal("response must carry the new character id")
	}
	if payload.Character.ImageURL != store.imageURL {
		t.Fatalf("image url: want %q got %q", store.imageURL, payload.Character.ImageURL)
	}
	if got := countCharacters(t, db); got != 1 {
		t.Fatalf("row count: want 1 got %d", got)
	}
}

func TestGenerateEndpointAcceptsBearerToken(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &stubImageGenerator{img: []byte("png")}, &stubTextGenerator{}, &stubPortraitStore{imageURL: "u"})
	router := newTestRouter(t, svc)

	raw, _ := json.Marshal(map[string]string{"traits": "elf ranger"})
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListEndpointReturnsJSONArray(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &stubImageGenerator{}, &stubTextGenerator{}, &stubPortraitStore{})
	seedCharacter(t, db, nil)
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodGet, "/characters?t=secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200 got %d", rec.Code)
	}

	var payload struct {
		Characters []Character `json:"characters"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Characters) != 1 {
		t.Fatalf("characters: want 1 got %d", len(payload.Characters))
	}
}

func TestDetailEndpointUnknownIDReturns404(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &stubImageGenerator{}, &stubTextGenerator{}, &stubPortraitStore{})
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodGet, "/c/missing-id?t=secret", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: want 404 got %d", rec.Code)
	}
}

func TestUpdateEndpointUnknownIDReturns404(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &stubImageGenerator{}, &stubTextGenerator{}, &stubPortraitStore{})
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/character/missing-id?t=secret", map[string]string{"name": "X"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: want 404 got %d", rec.Code)
	}
}

func TestDeleteEndpointReportsBlobFailure(t *testing.T) {
	db := newTestDB(t)
	store := &stubPortraitStore{removeErr: errors.New("bucket unavailable")}
	svc := NewService(db, &stubImageGenerator{}, &stubTextGenerator{}, store)
	seeded := seedCharacter(t, db, nil)
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/character/"+seeded.ID+"/delete?t=secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200 got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if string(body["ok"]) != "true" {
		t.Fatalf("ok: want true got %s", body["ok"])
	}
	if string(body["blob_removed"]) != "false" {
		t.Fatalf("blob_removed: want false got %s", body["blob_removed"])
	}
	if got := countCharacters(t, db); got != 0 {
		t.Fatalf("row count: want 0 got %d", got)
	}
}

func TestRegenerateEndpointFailureReturns502(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &stubImageGenerator{err: errors.New("model unavailable")}, &stubTextGenerator{}, &stubPortraitStore{})
	seeded := seedCharacter(t, db, nil)
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/character/"+seeded.ID+"/regenerate?t=secret", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status: want 502 got %d", rec.Code)
	}
}

func TestQuoteEndpointReturnsQuoteText(t *testing.T) {
	db := newTestDB(t)
	quotes := &stubTextGenerator{text: "The forest keeps my secrets."}
	svc := NewService(db, &stubImageGenerator{}, quotes, &stubPortraitStore{})
	seeded := seedCharacter(t, db, nil)
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/character/"+seeded.ID+"/quote?t=secret", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Quote string `json:"quote"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Quote != quotes.text {
		t.Fatalf("quote: want %q got %q", quotes.text, payload.Quote)
	}
}
