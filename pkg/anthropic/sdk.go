package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/jsonl"
	"github.com/rotisserie/eris"
)

type sdkClient struct {
	client sdk.Client
}

// NewClient returns a Client backed by the official SDK.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(all...)}
}

func (c *sdkClient) CreateBatch(ctx context.Context, items []BatchItem) (*Batch, error) {
	params := sdk.MessageBatchNewParams{Requests: make([]sdk.MessageBatchNewParamsRequest, len(items))}
	for i, item := range items {
		params.Requests[i] = sdk.MessageBatchNewParamsRequest{
			CustomID: item.CustomID,
			Params:   toSDKParams(item.Prompt),
		}
	}

	batch, err := c.client.Messages.Batches.New(ctx, params)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: create batch of %d", len(items))
	}
	return fromSDKBatch(batch), nil
}

func (c *sdkClient) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	batch, err := c.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: get batch %s", batchID)
	}
	return fromSDKBatch(batch), nil
}

func (c *sdkClient) GetBatchResults(ctx context.Context, batchID string) (ResultIterator, error) {
	stream := c.client.Messages.Batches.ResultsStreaming(ctx, batchID)
	if err := stream.Err(); err != nil {
		return nil, eris.Wrapf(err, "anthropic: stream results of batch %s", batchID)
	}
	return &streamIterator{stream: stream}, nil
}

type streamIterator struct {
	stream  *jsonl.Stream[sdk.MessageBatchIndividualResponse]
	current Result
}

func (it *streamIterator) Next() bool {
	if !it.stream.Next() {
		return false
	}
	it.current = fromSDKResult(it.stream.Current())
	return true
}

func (it *streamIterator) Result() Result { return it.current }
func (it *streamIterator) Err() error     { return it.stream.Err() }
func (it *streamIterator) Close() error   { return it.stream.Close() }

func toSDKParams(p Prompt) sdk.MessageBatchNewParamsRequestParams {
	params := sdk.MessageBatchNewParamsRequestParams{
		Model:     sdk.Model(p.Model),
		MaxTokens: p.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(p.User))},
	}
	if p.System != "" {
		params.System = []sdk.TextBlockParam{{Text: p.System}}
	}
	if p.Temperature != nil {
		params.Temperature = sdk.Float(*p.Temperature)
	}
	return params
}

func fromSDKBatch(b *sdk.MessageBatch) *Batch {
	rc := b.RequestCounts
	return &Batch{
		ID:     b.ID,
		Status: string(b.ProcessingStatus),
		Counts: Counts{
			Processing: rc.Processing,
			Succeeded:  rc.Succeeded,
			Errored:    rc.Errored,
			Canceled:   rc.Canceled,
			Expired:    rc.Expired,
		},
		CreatedAt: b.CreatedAt,
		EndedAt:   b.EndedAt,
	}
}

func fromSDKResult(resp sdk.MessageBatchIndividualResponse) Result {
	r := Result{CustomID: resp.CustomID, Type: resp.Result.Type}
	if r.Type != ResultSucceeded {
		return r
	}
	msg := resp.Result.Message
	r.Model = string(msg.Model)
	r.StopReason = string(msg.StopReason)
	r.InputTokens = msg.Usage.InputTokens
	r.OutputTokens = msg.Usage.OutputTokens
	for _, block := range msg.Content {
		if block.Type == "text" {
			r.Text += block.Text
		}
	}
	return r
}
