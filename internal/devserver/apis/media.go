package apis

import (
	"net/http"
	"path"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/h2non/filetype"
	"github.com/plantitas/plantitas/internal/common/httpx"
	"github.com/plantitas/plantitas/internal/common/uuid"
)

// MediaPrefix is the URL prefix of uploaded product images.
const MediaPrefix = "/media/products/"

type mediaFile struct {
	contentType string
	data        []byte
}

// Media keeps uploaded images in memory.
type Media struct {
	mu    sync.RWMutex
	files map[string]mediaFile
}

func NewMedia() *Media {
	return &Media{files: map[string]mediaFile{}}
}

// Save stores an image under a random name that keeps the detected extension and returns its
// path. Files that are not images are rejected.
func (m *Media) Save(data []byte) (string, error) {
	kind, err := filetype.Image(data)
	if err != nil || kind == filetype.Unknown {
		return "", httpx.ErrFieldErrors(map[string][]string{
			"image": {"Upload a valid image. The file you uploaded was either not an image or a corrupted image."},
		})
	}
	name := uuid.ShortHex(32) + "." + kind.Extension
	m.mu.Lock()
	m.files[name] = mediaFile{contentType: kind.MIME.Value, data: data}
	m.mu.Unlock()
	return MediaPrefix + name, nil
}

// ServeHTTP serves a stored image.
func (m *Media) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Base(chi.URLParam(r, "name"))
	m.mu.RLock()
	f, ok := m.files[name]
	m.mu.RUnlock()
	if !ok {
		httpx.ErrNotFound().Send(w)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(f.data)
}
