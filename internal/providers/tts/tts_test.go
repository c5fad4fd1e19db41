package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolve_TakesExactlyOnePath(t *testing.T) {
	raw := []byte("ID3-fake-mp3")
	b64 := base64.StdEncoding.EncodeToString(raw)

	cases := []struct {
		name string
		in   *Result
		want Speech
	}{
		{"remote", &Result{URL: "https://cdn.example.com/q1.mp3"}, RemoteURL{URL: "https://cdn.example.com/q1.mp3"}},
		{"data_uri_url", &Result{URL: "data:audio/wav;base64," + b64}, InlineData{MediaType: "audio/wav", Data: raw}},
		{"data_uri_audio", &Result{Audio: "data:audio/ogg;base64," + b64}, InlineData{MediaType: "audio/ogg", Data: raw}},
		{"encoded", &Result{Audio: b64}, EncodedPayload{MediaType: "audio/mpeg", Data: raw}},
		{"encoded_typed", &Result{Audio: b64, MediaType: "audio/wav"}, EncodedPayload{MediaType: "audio/wav", Data: raw}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.in)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			switch want := tc.want.(type) {
			case RemoteURL:
				g, ok := got.(RemoteURL)
				if !ok || g != want {
					t.Fatalf("got %#v, want %#v", got, want)
				}
			case InlineData:
				g, ok := got.(InlineData)
				if !ok || g.MediaType != want.MediaType || string(g.Data) != string(want.Data) {
					t.Fatalf("got %#v, want %#v", got, want)
				}
			case EncodedPayload:
				g, ok := got.(EncodedPayload)
				if !ok || g.MediaType != want.MediaType || string(g.Data) != string(want.Data) {
					t.Fatalf("got %#v, want %#v", got, want)
				}
			}
		})
	}
}

func TestResolve_Absent(t *testing.T) {
	for _, r := range []*Result{nil, {}, {URL: "  "}, {URL: "ftp://x/y.mp3"}, {URL: "data:audio/wav;base64,"}} {
		if _, err := Resolve(r); err == nil {
			t.Fatalf("Resolve(%#v) expected error", r)
		}
	}
	if _, err := Resolve(nil); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("nil result should be ErrNoAudio, got %v", err)
	}
}

func TestHTTPService_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			w.WriteHeader(400)
			return
		}
		_, _ = w.Write([]byte(`{"audioContent":"AAEC","contentType":"audio/wav"}`))
	}))
	defer srv.Close()

	s := NewHTTPService(srv.URL, "", "", time.Second)
	r, err := s.Synthesize(context.Background(), "Tell me about yourself.")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if r.Audio != "AAEC" || r.MediaType != "audio/wav" {
		t.Fatalf("result = %#v", r)
	}
}

func TestHTTPService_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewHTTPService(srv.URL, "", "", time.Second)
	if _, err := s.Synthesize(context.Background(), "hi"); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("err = %v, want ErrNoAudio", err)
	}
}
