package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		wantErr bool
	}{
		{
			name: "valid response with all headers",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Expires":       []string{time.Now().Add(1 * time.Hour).Format(http.TimeFormat)},
					"Last-Modified": []string{time.Now().Add(-1 * time.Hour).Format(http.TimeFormat)},
					"Etag":          []string{`"abc123"`},
					"Content-Type":  []string{"application/json"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`{"id":"a1","balance":100}`))),
			},
			wantErr: false,
		},
		{
			name: "response without expires header",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Content-Type": []string{"application/json"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte(`{"id":"a2"}`))),
			},
			wantErr: false,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			body, _ := io.ReadAll(tt.resp.Body)
			if !bytes.Equal(body, entry.Data) {
				t.Errorf("Restored body = %s, entry data = %s", body, entry.Data)
			}

			if entry.ETag != tt.resp.Header.Get("ETag") {
				t.Errorf("ETag = %v, want %v", entry.ETag, tt.resp.Header.Get("ETag"))
			}

			if entry.Expires.IsZero() {
				t.Error("Expires time was not set")
			}
		})
	}
}

func TestParseExpires(t *testing.T) {
	now := time.Now()
	future := now.Add(1 * time.Hour)
	past := now.Add(-1 * time.Hour)
	tolerance := 2 * time.Second

	tests := []struct {
		name    string
		headers http.Header
		want    time.Time
	}{
		{
			name:    "valid expires header",
			headers: http.Header{"Expires": []string{future.Format(http.TimeFormat)}},
			want:    future,
		},
		{
			name:    "no expires header",
			headers: http.Header{},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "invalid expires header",
			headers: http.Header{"Expires": []string{"not a valid date"}},
			want:    now.Add(DefaultTTL),
		},
		{
			name:    "expires in the past",
			headers: http.Header{"Expires": []string{past.Format(http.TimeFormat)}},
			want:    now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseExpires(tt.headers)
			diff := got.Sub(tt.want)
			if diff < -tolerance || diff > tolerance {
				t.Errorf("parseExpires() = %v, want approximately %v (diff: %v)", got, tt.want, diff)
			}
		})
	}
}

func TestShouldMakeConditionalRequest(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{name: "nil entry", entry: nil, want: false},
		{name: "entry with ETag", entry: &Entry{ETag: `"abc123"`}, want: true},
		{name: "entry with Last-Modified", entry: &Entry{LastModified: time.Now()}, want: true},
		{name: "entry without validators", entry: &Entry{Data: []byte(`{}`)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldMakeConditionalRequest(tt.entry); got != tt.want {
				t.Errorf("ShouldMakeConditionalRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	tests := []struct {
		name       string
		entry      *Entry
		wantHeader string
		wantValue  string
	}{
		{
			name:       "add If-None-Match with ETag",
			entry:      &Entry{ETag: `"abc123"`},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
		{
			name:       "add If-Modified-Since with Last-Modified",
			entry:      &Entry{LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)},
			wantHeader: "If-Modified-Since",
			wantValue:  "Sun, 01 Jan 2023 12:00:00 GMT",
		},
		{
			name: "prefer ETag over Last-Modified",
			entry: &Entry{
				ETag:         `"abc123"`,
				LastModified: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
			},
			wantHeader: "If-None-Match",
			wantValue:  `"abc123"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "http://upstream.test/api/a1", nil)
			AddConditionalHeaders(req, tt.entry)

			if got := req.Header.Get(tt.wantHeader); got != tt.wantValue {
				t.Errorf("Header %s = %v, want %v", tt.wantHeader, got, tt.wantValue)
			}
		})
	}
}

func TestAddConditionalHeaders_NilInputs(t *testing.T) {
	AddConditionalHeaders(nil, &Entry{ETag: "test"})
	AddConditionalHeaders(&http.Request{}, nil)
}

func TestNewEntry(t *testing.T) {
	lastMod := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	headers := http.Header{}
	headers.Set("ETag", `"v2"`)
	headers.Set("Last-Modified", lastMod.Format(http.TimeFormat))

	entry := NewEntry([]byte(`{"id":"a1"}`), headers)

	if string(entry.Data) != `{"id":"a1"}` {
		t.Errorf("Data = %s", entry.Data)
	}
	if entry.ETag != `"v2"` {
		t.Errorf("ETag = %q, want %q", entry.ETag, `"v2"`)
	}
	if !entry.LastModified.Equal(lastMod) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastMod)
	}
	if entry.TTL() <= 0 {
		t.Error("Entry without Expires should get the default TTL")
	}
}
