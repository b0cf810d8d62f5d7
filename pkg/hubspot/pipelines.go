package hubspot

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

// Pipeline is a deal pipeline definition.
type Pipeline struct {
	PipelineID string  `json:"pipelineId"`
	Label      string  `json:"label"`
	Stages     []Stage `json:"stages"`
}

// Stage is one stage of a pipeline.
type Stage struct {
	StageID      string `json:"stageId"`
	Label        string `json:"label"`
	DisplayOrder int    `json:"displayOrder"`
}

// StageLabels maps stage IDs to their labels.
func (p *Pipeline) StageLabels() map[string]string {
	labels := make(map[string]string, len(p.Stages))
	for _, s := range p.Stages {
		labels[s.StageID] = s.Label
	}
	return labels
}

func (c *httpClient) GetPipeline(ctx context.Context, pipelineID string) (*Pipeline, error) {
	var p Pipeline
	err := c.call(ctx, "get_pipeline", request{
		method: http.MethodGet,
		path:   "/crm-pipelines/v1/pipelines/deals/" + url.PathEscape(pipelineID),
	}, &p)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: get pipeline %s", pipelineID)
	}
	return &p, nil
}
