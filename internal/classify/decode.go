package classify

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MalformedPolicy decides what Decode does with a line it cannot parse.
type MalformedPolicy string

const (
	// SkipMalformed logs the line and continues.
	SkipMalformed MalformedPolicy = "skip"
	// AbortOnMalformed fails the whole decode.
	AbortOnMalformed MalformedPolicy = "abort"
)

// Result is one decoded output line.
type Result struct {
	CustomID string
	Type     string // succeeded, errored, canceled, expired
	Text     string
	Error    string
}

// Succeeded reports whether the request produced text.
func (r Result) Succeeded() bool {
	return r.Type == "succeeded"
}

// resultLine mirrors the per-request line of a batch results file.
type resultLine struct {
	CustomID string `json:"custom_id"`
	Result   struct {
		Type    string `json:"type"`
		Message *struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message,omitempty"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"result"`
}

// Decode splits raw on newlines and decodes each non-blank line.
func Decode(raw []byte, policy MalformedPolicy) ([]Result, error) {
	var out []Result

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		r, err := decodeLine(line)
		if err != nil {
			if policy == AbortOnMalformed {
				return nil, eris.Wrapf(err, "classify: decode line %d", lineNo)
			}
			zap.L().Warn("classify: skipping malformed result line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "classify: scan results")
	}
	return out, nil
}

func decodeLine(line []byte) (Result, error) {
	var rl resultLine
	if err := json.Unmarshal(line, &rl); err != nil {
		return Result{}, err
	}
	if rl.CustomID == "" {
		return Result{}, eris.New("missing custom_id")
	}
	if rl.Result.Type == "" {
		return Result{}, eris.New("missing result type")
	}

	r := Result{CustomID: rl.CustomID, Type: rl.Result.Type}
	if rl.Result.Message != nil {
		var parts []string
		for _, c := range rl.Result.Message.Content {
			if c.Type == "text" {
				parts = append(parts, c.Text)
			}
		}
		r.Text = strings.Join(parts, "")
	}
	if rl.Result.Error != nil {
		r.Error = rl.Result.Error.Message
	}
	return r, nil
}
