package scraper

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/deusflow/inkpost/internal/cache"
)

const maxImageBytes = 10 << 20

// ImageInliner replaces remote images with downscaled data URIs so the
// document is self-contained on the reading device.
type ImageInliner struct {
	client   *http.Client
	maxWidth int
	cache    *cache.Cache[string]
	log      *slog.Logger
}

func NewImageInliner(client *http.Client, maxWidth int, c *cache.Cache[string], log *slog.Logger) *ImageInliner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if maxWidth <= 0 {
		maxWidth = 1200
	}
	if c == nil {
		c = cache.New[string](6 * time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}
	return &ImageInliner{client: client, maxWidth: maxWidth, cache: c, log: log}
}

// Inline rewrites every <img> in raw. Relative sources resolve against base.
// Images that cannot be fetched or decoded are removed.
func (in *ImageInliner) Inline(ctx context.Context, raw, base string) (string, error) {
	if !strings.Contains(raw, "<img") {
		return raw, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	baseURL, _ := url.Parse(base)

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if strings.HasPrefix(src, "data:image/") {
			img.SetAttr("src", src)
			return
		}
		abs, ok := resolve(baseURL, src)
		if !ok {
			img.Remove()
			return
		}
		dataURI, err := in.dataURI(ctx, abs)
		if err != nil {
			in.log.Debug("image dropped", "src", abs, "error", err)
			img.Remove()
			return
		}
		img.SetAttr("src", dataURI)
		img.RemoveAttr("srcset")
		img.RemoveAttr("data-src")
		img.RemoveAttr("width")
		img.RemoveAttr("height")
	})

	return doc.Find("body").Html()
}

// imageSource prefers lazy-loading attributes over the placeholder src.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-original", "src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func resolve(base *url.URL, src string) (string, bool) {
	if src == "" {
		return "", false
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func (in *ImageInliner) dataURI(ctx context.Context, src string) (string, error) {
	if v, ok := in.cache.Get(src); ok {
		return v, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	encoded, mime, err := in.reencode(data)
	if err != nil {
		return "", err
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(encoded)
	in.cache.Set(src, uri)
	return uri, nil
}

// reencode decodes any supported format, downscales wide images and returns
// JPEG, or PNG when the image has transparency. Small GIFs keep their frames.
func (in *ImageInliner) reencode(data []byte) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	if format == "gif" && b.Dx() <= in.maxWidth {
		return data, "image/gif", nil
	}

	img := src
	if b.Dx() > in.maxWidth {
		h := b.Dy() * in.maxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, in.maxWidth, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if opaque(img) {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/png", nil
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}
