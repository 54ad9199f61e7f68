package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-templates/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
	defaultMistralRPS   = 2.0
)

// MistralOCR extracts text from PDFs using the Mistral OCR API. Requests
// are rate limited and transient failures are retried.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewMistralOCR creates a MistralOCR extractor. Empty model and
// non-positive rps fall back to defaults.
func NewMistralOCR(apiKey, model string, rps float64) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	if rps <= 0 {
		rps = defaultMistralRPS
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("mistral", "ocr")
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
		limiter:  rate.NewLimiter(rate.Limit(rps), max(int(rps), 1)),
		retry:    retry,
	}
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractPages reads a PDF file, sends it to Mistral OCR, and returns the
// markdown of each page ordered by page index.
func (m *MistralOCR) ExtractPages(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: read PDF %s", path)
	}

	body, err := json.Marshal(mistralOCRRequest{
		Model: m.model,
		Document: mistralOCRDocument{
			Type:        "document_url",
			DocumentURL: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	resp, err := resilience.DoVal(ctx, m.retry, func(ctx context.Context) (*mistralOCRResponse, error) {
		return m.post(ctx, body)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ocr: mistral OCR for %s", path)
	}

	sort.SliceStable(resp.Pages, func(i, j int) bool {
		return resp.Pages[i].Index < resp.Pages[j].Index
	})
	pages := make([]string, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		pages = append(pages, p.Markdown)
	}
	return pages, nil
}

// post performs one rate-limited API call. Errors are returned unwrapped so
// the retry loop can classify them.
func (m *MistralOCR) post(ctx context.Context, body []byte) (*mistralOCRResponse, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.HTTPError(
			eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody)),
			resp,
		)
	}

	var out mistralOCRResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal mistral response")
	}
	return &out, nil
}
