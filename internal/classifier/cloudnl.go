package classifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	language "cloud.google.com/go/language/apiv2"
	"cloud.google.com/go/language/apiv2/languagepb"
	"google.golang.org/api/option"
)

type analyzeSentimentFunc func(ctx context.Context, req *languagepb.AnalyzeSentimentRequest) (*languagepb.AnalyzeSentimentResponse, error)

// CloudNL scores text with the Google Cloud Natural Language API. The
// document sentiment score is already in [-1, 1].
type CloudNL struct {
	client  *language.Client
	analyze analyzeSentimentFunc
}

// NewCloudNL creates a language client. encodedCreds is base64 encoded
// service-account JSON; when empty, application default credentials apply.
func NewCloudNL(ctx context.Context, encodedCreds string) (*CloudNL, error) {
	var opts []option.ClientOption
	if encodedCreds != "" {
		creds, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("decode natural language credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	client, err := language.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create language client: %w", err)
	}
	return &CloudNL{
		client: client,
		analyze: func(ctx context.Context, req *languagepb.AnalyzeSentimentRequest) (*languagepb.AnalyzeSentimentResponse, error) {
			return client.AnalyzeSentiment(ctx, req)
		},
	}, nil
}

func (c *CloudNL) Name() string { return "cloudnl" }

func (c *CloudNL) Score(ctx context.Context, text string) (float64, error) {
	req := &languagepb.AnalyzeSentimentRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{
				Content: text,
			},
			Type: languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	}

	resp, err := c.analyze(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("analyze sentiment: %w", err)
	}
	if resp.GetDocumentSentiment() == nil {
		return 0, errors.New("analyze sentiment: response has no document sentiment")
	}
	return clamp(float64(resp.GetDocumentSentiment().GetScore())), nil
}

func (c *CloudNL) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
