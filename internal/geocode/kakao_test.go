package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKakaoQueryByKeyword(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documents":[{
			"x":"127.0495556","y":"37.5048278",
			"place_name":"스타벅스 역삼점",
			"address_name":"서울 강남구 역삼동 812-1",
			"road_address_name":"서울 강남구 테헤란로 211"
		}]}`))
	}))
	defer srv.Close()

	p, err := NewKakaoProvider("test-key", time.Second, 0)
	if err != nil {
		t.Fatal(err)
	}
	p.keywordURL = srv.URL

	res, err := p.QueryByKeyword(context.Background(), "스타벅스 역삼")
	if err != nil {
		t.Fatal(err)
	}

	if gotAuth != "KakaoAK test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQuery != "스타벅스 역삼" {
		t.Errorf("query param = %q", gotQuery)
	}
	if !res.Found {
		t.Fatal("result not found")
	}
	if res.Latitude != 37.5048278 || res.Longitude != 127.0495556 {
		t.Errorf("coordinates = (%v, %v)", res.Latitude, res.Longitude)
	}
	if res.CompareAddress() != "서울 강남구 역삼동 812-1" {
		t.Errorf("CompareAddress = %q, want lot address", res.CompareAddress())
	}
	if res.FinalAddress() != "서울 강남구 테헤란로 211" {
		t.Errorf("FinalAddress = %q, want road address", res.FinalAddress())
	}
}

func TestKakaoQueryByAddress(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documents":[{
			"x":"127.0664091","y":"37.4842544",
			"address_name":"서울 강남구 개포동 186"
		}]}`))
	}))
	defer srv.Close()

	p, err := NewKakaoProvider("test-key", time.Second, 0)
	if err != nil {
		t.Fatal(err)
	}
	p.addressURL = srv.URL

	res, err := p.QueryByAddress(context.Background(), "서울 강남구 개포동 186")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "서울 강남구 개포동 186" {
		t.Errorf("query param = %q", gotQuery)
	}
	if !res.Found {
		t.Fatal("result not found")
	}
	if res.FinalAddress() != "서울 강남구 개포동 186" {
		t.Errorf("FinalAddress = %q, want lot address fallback", res.FinalAddress())
	}
}

func TestKakaoEmptyDocumentsIsMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"documents":[]}`))
	}))
	defer srv.Close()

	p, _ := NewKakaoProvider("k", time.Second, 0)
	p.keywordURL = srv.URL

	res, err := p.QueryByKeyword(context.Background(), "없는가게")
	if err != nil {
		t.Fatalf("miss should not be an error: %v", err)
	}
	if res.Found {
		t.Error("empty documents reported as found")
	}
}

func TestKakaoHTTPErrorIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := NewKakaoProvider("k", time.Second, 0)
	p.keywordURL = srv.URL

	if _, err := p.QueryByKeyword(context.Background(), "스타벅스"); err == nil {
		t.Error("non-200 status should surface as an error")
	}
}

func TestNewKakaoProviderRequiresKey(t *testing.T) {
	if _, err := NewKakaoProvider("", time.Second, 0); err == nil {
		t.Error("empty api key accepted")
	}
}
