package storage

import (
	"bytes"
	"context"
	"image"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAllowedContentType(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/png", "image/webp", "image/gif"} {
		if !AllowedContentType(ct) {
			t.Errorf("expected %s to be allowed", ct)
		}
	}
	for _, ct := range []string{"image/svg+xml", "text/html", "application/pdf", ""} {
		if AllowedContentType(ct) {
			t.Errorf("expected %s to be rejected", ct)
		}
	}
}

func TestSimulator_UploadNamespacesByOwner(t *testing.T) {
	sim := NewSimulator("profile-photos", "https://cdn.example.com")
	data := pngBytes(t, 10, 10)

	url, err := sim.Upload(context.Background(), "user_1", data, "image/png")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(url, "/photos/user_1/") {
		t.Errorf("expected owner-namespaced key in %q", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("expected png extension in %q", url)
	}
	if !sim.Stored(url) {
		t.Error("expected object to be stored")
	}
}

func TestSimulator_UploadRejectsBadInput(t *testing.T) {
	sim := NewSimulator("", "")
	ctx := context.Background()
	data := pngBytes(t, 4, 4)

	if _, err := sim.Upload(ctx, "", data, "image/png"); err == nil {
		t.Error("expected missing owner to fail")
	}
	if _, err := sim.Upload(ctx, "user_1", nil, "image/png"); err == nil {
		t.Error("expected empty data to fail")
	}
	if _, err := sim.Upload(ctx, "user_1", data, "image/svg+xml"); err == nil {
		t.Error("expected disallowed content type to fail")
	}
	if _, err := sim.Upload(ctx, "user_1", make([]byte, maxPhotoBytes+1), "image/png"); err == nil {
		t.Error("expected oversized data to fail")
	}
}

func TestSimulator_DeleteEnforcesNamespace(t *testing.T) {
	sim := NewSimulator("profile-photos", "https://cdn.example.com")
	ctx := context.Background()

	url, err := sim.Upload(ctx, "user_1", pngBytes(t, 4, 4), "image/png")
	if err != nil {
		t.Fatal(err)
	}

	// another identity may not delete under user_1's namespace
	if err := sim.Delete(ctx, "user_2", url); err == nil {
		t.Error("expected cross-namespace delete to be refused")
	}
	if !sim.Stored(url) {
		t.Error("object must survive refused delete")
	}

	if err := sim.Delete(ctx, "user_1", url); err != nil {
		t.Errorf("owner delete failed: %v", err)
	}
	if sim.Stored(url) {
		t.Error("expected object gone after owner delete")
	}
}

func TestKeyFromURL(t *testing.T) {
	key, err := keyFromURL("https://cdn.example.com/bucket/photos/user_1/abc.png")
	if err != nil {
		t.Fatal(err)
	}
	if key != "photos/user_1/abc.png" {
		t.Errorf("expected key photos/user_1/abc.png, got %q", key)
	}

	if _, err := keyFromURL("https://cdn.example.com/other/path.png"); err == nil {
		t.Error("expected unrecognized url to fail")
	}
}

func TestNormalizePhoto_BoundsLargeImages(t *testing.T) {
	big := pngBytes(t, 2048, 512)

	out, err := normalizePhoto(big, "image/png")
	if err != nil {
		t.Fatal(err)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	b := img.Bounds()
	if b.Dx() > maxPhotoEdge || b.Dy() > maxPhotoEdge {
		t.Errorf("expected image bounded to %d, got %dx%d", maxPhotoEdge, b.Dx(), b.Dy())
	}
}

func TestNormalizePhoto_PassesGifThrough(t *testing.T) {
	data := []byte("GIF89a-not-really-but-opaque")
	out, err := normalizePhoto(data, "image/gif")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Error("expected gif bytes to pass through untouched")
	}
}
