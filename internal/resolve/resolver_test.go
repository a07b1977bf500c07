package resolve

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juba-labs/hornwatch/internal/ingest"
	"github.com/juba-labs/hornwatch/internal/models"
)

func TestIsAggregator(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://news.google.com/rss/articles/ABC123", true},
		{"https://www.news.google.com/articles/ABC123", true},
		{"https://bbc.com/news/world-africa-123", false},
		{"https://sudantribune.com/article295882/", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAggregator(tt.url), tt.url)
	}
}

func TestAnchorTarget(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "publisher anchor in description",
			payload: `<a href="https://bbc.com/news/world-africa-123">Clashes reported</a>`,
			want:    "https://bbc.com/news/world-africa-123",
		},
		{
			name: "skips aggregator anchors",
			payload: `<a href="https://news.google.com/rss/articles/XYZ">item</a>` +
				`<a href="https://www.radiotamazuj.org/en/news/article/some-slug">source</a>`,
			want: "https://www.radiotamazuj.org/en/news/article/some-slug",
		},
		{
			name:    "strips tracking params",
			payload: `<a href="https://eyeradio.org/story?utm_source=rss&utm_medium=feed&id=9">x</a>`,
			want:    "https://eyeradio.org/story?id=9",
		},
		{
			name:    "only aggregator anchors",
			payload: `<a href="https://news.google.com/articles/ABC">item</a>`,
			want:    "",
		},
		{
			name:    "no anchors",
			payload: `<p>plain description</p>`,
			want:    "",
		},
		{
			name:    "empty payload",
			payload: "",
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnchorTarget(tt.payload))
		})
	}
}

func TestDecodeArticleURL(t *testing.T) {
	target := "https://www.sudantribune.com/article295882/"
	raw := append([]byte{0x08, 0x13, 0x22, 0x2e}, []byte(target)...)
	raw = append(raw, 0xd2, 0x01, 0x00)
	id := base64.RawURLEncoding.EncodeToString(raw)

	got := DecodeArticleURL("https://news.google.com/rss/articles/" + id + "?oc=5")
	assert.Equal(t, target, got)

	// Ids that decode to bytes without an embedded URL resolve to nothing.
	opaque := base64.RawURLEncoding.EncodeToString([]byte{0x08, 0x13, 0x22, 0x01, 0x02, 0x03})
	assert.Empty(t, DecodeArticleURL("https://news.google.com/rss/articles/"+opaque))

	assert.Empty(t, DecodeArticleURL("https://news.google.com/topstories"))
	assert.Empty(t, DecodeArticleURL("https://news.google.com/rss/articles/!!!not-base64!!!"))
}

func TestCanonicalTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"HTTPS://BBC.com/news/world-africa-123#section",
			"https://bbc.com/news/world-africa-123",
		},
		{
			"https://eyeradio.org/story?utm_campaign=x&b=2&a=1",
			"https://eyeradio.org/story?a=1&b=2",
		},
		{
			"https://sudanspost.com/plain",
			"https://sudanspost.com/plain",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canonicalTarget(tt.in))
	}
}

func TestBatchExecute(t *testing.T) {
	const target = "https://radiotamazuj.org/en/news/article/some-slug"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		payload := r.PostFormValue("f.req")
		assert.Contains(t, payload, "Fbv4je")
		assert.Contains(t, payload, "garturlreq")
		assert.Contains(t, payload, "ENCODED_ID")

		w.Write([]byte(")]}'\n\n123\n" +
			`[[["wrb.fr","Fbv4je","[\"garturlres\",\"` + target + `\"]",null,null,null,"generic"]]]`))
	}))
	defer server.Close()

	r := NewResolver()
	r.batchEndpoint = server.URL

	got, err := r.batchExecute(context.Background(), "ENCODED_ID")
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestBatchExecuteNoTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(")]}'\n\n[[[\"wrb.fr\",\"Fbv4je\",\"[\\\"garturlres\\\",\\\"https://news.google.com/articles/ABC\\\"]\"]]]"))
	}))
	defer server.Close()

	r := NewResolver()
	r.batchEndpoint = server.URL

	got, err := r.batchExecute(context.Background(), "ENCODED_ID")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrampoline(t *testing.T) {
	const target = "https://www.dabangasudan.org/en/all-news/article/some-slug"

	mux := http.NewServeMux()
	mux.HandleFunc("/meta", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta http-equiv="refresh" content="0; url=` + target + `"></head><body></body></html>`))
	})
	mux.HandleFunc("/script", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><script>window.location.href = "` + target + `";</script></body></html>`))
	})
	mux.HandleFunc("/data-url", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><c-wiz data-url="` + target + `"></c-wiz></body></html>`))
	})
	mux.HandleFunc("/anchor", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="https://news.google.com/home">home</a><a href="` + target + `">read</a></body></html>`))
	})
	mux.HandleFunc("/nothing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>consent wall</p></body></html>`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	r := NewResolver()
	for _, path := range []string{"/meta", "/script", "/data-url", "/anchor"} {
		got, err := r.trampoline(context.Background(), server.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, target, got, path)
	}

	got, err := r.trampoline(context.Background(), server.URL+"/nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApplyAnchorAndDecode(t *testing.T) {
	target := "https://bbc.com/news/world-africa-123"
	raw := append([]byte{0x08, 0x13, 0x22}, []byte("https://sudanspost.com/some-story/")...)
	raw = append(raw, 0xd2, 0x01)
	decodable := "https://news.google.com/rss/articles/" + base64.RawURLEncoding.EncodeToString(raw)

	items := []ingest.Item{
		{
			Article:    models.Article{URL: "https://news.google.com/rss/articles/OPAQUE1", Title: "one"},
			RawPayload: `<a href="` + target + `">story</a>`,
		},
		{
			Article: models.Article{URL: decodable, Title: "two"},
		},
		{
			Article: models.Article{URL: "https://sudantribune.com/article295882/", Title: "three"},
		},
	}

	r := NewResolver()
	r.UseBatchAPI = false
	r.UseTrampoline = false
	r.Apply(context.Background(), items)

	assert.Equal(t, target, items[0].URL)
	assert.Equal(t, "https://sudanspost.com/some-story/", items[1].URL)
	assert.Equal(t, "https://sudantribune.com/article295882/", items[2].URL)
}

func TestScanURLs(t *testing.T) {
	data := []byte("junk\x01https://bbc.com/one\x00middle \"https://gstatic.com/img\" tail")
	got := scanURLs(data)
	require.Len(t, got, 2)
	assert.Equal(t, "https://bbc.com/one", got[0])
	assert.Equal(t, "https://gstatic.com/img", got[1])

	assert.Empty(t, scanURLs([]byte("no links here")))
	assert.True(t, strings.HasPrefix(got[0], "https://"))
}
