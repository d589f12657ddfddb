package classifiersvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

const systemPrompt = "You are an expert at detecting whether a QR code in an image is being " +
	"displayed on a physical screen/paper or if it's a screenshot/photo being held up to the " +
	"camera. Analyze the image for: 1) Screen glare, reflections, and viewing angles that " +
	"indicate a real physical display 2) Depth and perspective cues 3) Lighting variations " +
	"across the surface 4) Moiré patterns that appear when photographing screens 5) Edge " +
	"characteristics that differentiate physical displays from printed screenshots. Respond " +
	"ONLY with 'PHYSICAL' if it appears to be scanned from a real screen/paper, or 'SCREENSHOT' " +
	"if it appears to be a photo/screenshot of a QR code."

const userPrompt = "Analyze this QR code image and determine if it's being scanned from a " +
	"physical display/paper or if it's a screenshot/photo. Respond with only 'PHYSICAL' or 'SCREENSHOT'."

type (
	// chat-completions request/response, OpenAI wire format
	chatRequest struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}
	chatMessage struct {
		Role    string      `json:"role"`
		Content interface{} `json:"content"` // string or []contentPart
	}
	contentPart struct {
		Type     string    `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL *imageURL `json:"image_url,omitempty"`
	}
	imageURL struct {
		URL string `json:"url"`
	}
	chatResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
)

// GatewayClassifier vets still frames against an OpenAI-compatible
// vision gateway.
type GatewayClassifier struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  core.Logger
}

var _ attendance.Classifier = (*GatewayClassifier)(nil)

func NewGatewayClassifier(logger core.Logger, conf *core.Config) *GatewayClassifier {
	return &GatewayClassifier{
		baseURL: strings.TrimRight(conf.Classifier.BaseURL, "/"),
		apiKey:  conf.Classifier.APIKey,
		model:   conf.Classifier.Model,
		client:  &http.Client{Timeout: conf.Classifier.Timeout},
		logger:  logger,
	}
}

func (c *GatewayClassifier) Classify(ctx context.Context, imageData string) (attendance.ClassifierResult, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: imageData}},
			}},
		},
	})
	if err != nil {
		return attendance.ClassifierResult{}, errors.Wrap(err, "encoding classifier request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return attendance.ClassifierResult{}, errors.Wrap(err, "building classifier request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return attendance.ClassifierResult{}, errors.Wrap(attendance.ErrClassifierUnavailable, err.Error())
	}
	defer func() {
		_, _ = io.Copy(ioutil.Discard, res.Body)
		_ = res.Body.Close()
	}()

	// rate limiting and quota stay distinguishable from a verdict so
	// the caller can let the student retry
	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return attendance.ClassifierResult{}, attendance.ErrRateLimited
	case res.StatusCode == http.StatusPaymentRequired:
		return attendance.ClassifierResult{}, attendance.ErrQuotaExceeded
	case res.StatusCode != http.StatusOK:
		errText, _ := ioutil.ReadAll(io.LimitReader(res.Body, 1024))
		c.logger.Warn(fmt.Sprintf("classifier gateway error - status: %d - Body: %s", res.StatusCode, errText))
		return attendance.ClassifierResult{}, errors.Wrapf(attendance.ErrClassifierUnavailable, "gateway status %d", res.StatusCode)
	}

	var data chatResponse
	if err = json.NewDecoder(res.Body).Decode(&data); err != nil {
		return attendance.ClassifierResult{}, errors.Wrap(attendance.ErrClassifierUnavailable, err.Error())
	}
	if len(data.Choices) == 0 {
		return attendance.ClassifierResult{}, errors.Wrap(attendance.ErrClassifierUnavailable, "empty response")
	}

	verdict := strings.ToUpper(strings.TrimSpace(data.Choices[0].Message.Content))
	if verdict == "PHYSICAL" {
		return attendance.ClassifierResult{
			Outcome:    attendance.OutcomePhysical,
			Confidence: "high",
			Message:    "QR code verified as physical",
		}, nil
	}
	return attendance.ClassifierResult{
		Outcome:    attendance.OutcomeScreenshot,
		Confidence: "low",
		Message:    "Possible screenshot detected - please scan from the actual display",
	}, nil
}
