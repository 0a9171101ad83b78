// Copyright (c) 2025-present Daognosis, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package pipeline implements the two-stage LLM pipeline that filters and
// analyzes the normalized governance data gathered for a query.
package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoJSON is returned when no JSON object can be recovered from a model
// response.
var ErrNoJSON = errors.New("no JSON object in model response")

// DecodeLooseJSON decodes a model response that should contain a JSON
// object. The contract is explicit: try a strict parse of the whole text,
// then try the first-to-last-brace substring, then give up with ErrNoJSON
// so the caller can fall back to treating the raw text as a value.
func DecodeLooseJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return errors.Wrap(ErrNoJSON, err.Error())
	}
	return nil
}

// IDList tolerates models emitting ids as numbers or strings.
type IDList []string

func (l *IDList) UnmarshalJSON(data []byte) error {
	var loose []any
	if err := json.Unmarshal(data, &loose); err != nil {
		return err
	}
	ids := make([]string, 0, len(loose))
	for _, item := range loose {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case float64:
			if v == float64(int64(v)) {
				ids = append(ids, strconv.FormatInt(int64(v), 10))
			} else {
				ids = append(ids, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
	}
	*l = ids
	return nil
}
