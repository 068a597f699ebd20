package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/alanyoungcy/matchcast/internal/domain"
	"github.com/alanyoungcy/matchcast/internal/prob"
)

// RemoteModelID is reported when the model server does not name itself.
const RemoteModelID = "remote"

type remoteRequest struct {
	Features domain.FeatureVector `json:"features"`
}

type remoteResponse struct {
	Win     float64 `json:"win"`
	Draw    float64 `json:"draw"`
	Loss    float64 `json:"loss"`
	ModelID string  `json:"model_id"`
}

// Remote posts the feature vector as JSON to an external model server and
// expects {"win":..,"draw":..,"loss":..} back.
type Remote struct {
	url    string
	client *http.Client
}

// NewRemote creates a Remote classifier calling url.
func NewRemote(url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Remote{url: url, client: &http.Client{Timeout: timeout}}
}

// ModelID implements domain.Classifier.
func (r *Remote) ModelID() string { return RemoteModelID }

// Predict implements domain.Classifier.
func (r *Remote) Predict(ctx context.Context, fv domain.FeatureVector) (domain.Probabilities, error) {
	p, _, err := r.PredictModel(ctx, fv)
	return p, err
}

// PredictModel also returns the model id the server reported.
func (r *Remote) PredictModel(ctx context.Context, fv domain.FeatureVector) (domain.Probabilities, string, error) {
	body, err := json.Marshal(remoteRequest{Features: fv})
	if err != nil {
		return domain.Probabilities{}, "", fmt.Errorf("classifier: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return domain.Probabilities{}, "", fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Probabilities{}, "", fmt.Errorf("classifier: remote call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Probabilities{}, "", fmt.Errorf("classifier: remote status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Probabilities{}, "", fmt.Errorf("classifier: decode response: %w", err)
	}
	for _, v := range []float64{out.Win, out.Draw, out.Loss} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return domain.Probabilities{}, "", fmt.Errorf("classifier: remote returned invalid probability %v", v)
		}
	}
	model := out.ModelID
	if model == "" {
		model = RemoteModelID
	}
	return prob.Normalize(out.Win, out.Draw, out.Loss), model, nil
}

var _ domain.Classifier = (*Remote)(nil)
