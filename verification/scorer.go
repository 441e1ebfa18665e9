package verification

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ScorerResult is the parsed outcome of one scoring round trip. RawBody
// keeps the provider response verbatim; non-JSON bodies are tolerated and
// carried as opaque text.
type ScorerResult struct {
	Verdict    string  `json:"verdict"`
	Score      float64 `json:"score"`
	HTTPStatus int     `json:"-"`
	RawBody    string  `json:"-"`
}

// OK reports whether the provider answered with a success status.
func (r *ScorerResult) OK() bool {
	return r.HTTPStatus >= 200 && r.HTTPStatus < 300
}

// Scorer calls the external document-verification microservice. The call
// is a blocking round trip bounded by the client timeout; expiry is
// reported as a transport error, identical to an unreachable provider.
type Scorer struct {
	url  string
	http *http.Client
}

func NewScorer(url string, timeout time.Duration) *Scorer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Scorer{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Score uploads the id-card scans (and optional selfie) as multipart
// form data and parses whatever comes back.
func (s *Scorer) Score(frontPath, backPath, selfiePath string) (*ScorerResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if err := attachFile(form, "idCardFront", frontPath); err != nil {
		return nil, err
	}
	if err := attachFile(form, "idCardBack", backPath); err != nil {
		return nil, err
	}
	if selfiePath != "" {
		if err := attachFile(form, "selfie", selfiePath); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	resp, err := s.http.Post(s.url, form.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	result := &ScorerResult{
		HTTPStatus: resp.StatusCode,
		RawBody:    string(body),
	}
	// Best effort: the provider normally answers JSON, but anything else
	// is kept opaque in RawBody.
	_ = json.Unmarshal(body, result)
	return result, nil
}

func attachFile(form *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := form.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
