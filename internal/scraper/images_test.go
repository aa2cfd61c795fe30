package scraper

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: alpha})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	wide := pngBytes(t, 400, 100, 255)
	clear := pngBytes(t, 10, 10, 0)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/img/wide.png":
			w.Write(wide)
		case "/img/clear.png":
			w.Write(clear)
		case "/img/broken.png":
			w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func decodeDataURI(t *testing.T, uri string) (image.Image, string) {
	t.Helper()
	prefix, payload, ok := strings.Cut(uri, ";base64,")
	require.True(t, ok)
	data, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img, strings.TrimPrefix(prefix, "data:")
}

func TestInlineDownscalesAndEmbeds(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)
	defer srv.Close()

	in := NewImageInliner(srv.Client(), 100, nil, nil)
	out, err := in.Inline(context.Background(),
		`<p>text</p><img src="/img/wide.png" width="400"><img src="/img/missing.png"><img src="/img/broken.png">`,
		srv.URL+"/posts/1")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "<img"))
	assert.NotContains(t, out, "width=")

	start := strings.Index(out, `src="`) + len(`src="`)
	end := strings.Index(out[start:], `"`) + start
	img, mime := decodeDataURI(t, out[start:end])
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestInlineKeepsTransparencyAsPNG(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)
	defer srv.Close()

	in := NewImageInliner(srv.Client(), 100, nil, nil)
	uri, err := in.dataURI(context.Background(), srv.URL+"/img/clear.png")
	require.NoError(t, err)
	_, mime := decodeDataURI(t, uri)
	assert.Equal(t, "image/png", mime)
}

func TestInlineCachesByURL(t *testing.T) {
	var hits atomic.Int32
	srv := imageServer(t, &hits)
	defer srv.Close()

	in := NewImageInliner(srv.Client(), 100, nil, nil)
	html := `<img src="` + srv.URL + `/img/wide.png">`
	_, err := in.Inline(context.Background(), html, "")
	require.NoError(t, err)
	_, err = in.Inline(context.Background(), html, "")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestInlineLeavesDataURIsAlone(t *testing.T) {
	in := NewImageInliner(nil, 100, nil, nil)
	out, err := in.Inline(context.Background(), `<img src="`+tinyPNG+`">`, "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, out, tinyPNG)
}

func TestReencodeJPEGPassesThroughSmallImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10)), nil))

	in := NewImageInliner(nil, 100, nil, nil)
	_, mime, err := in.reencode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}
