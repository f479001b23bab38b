package ccdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/halld-offline/conddb/internal/model"
)

// Request is a parsed one-line table request: a path plus the run context
// selecting one assignment.
type Request struct {
	Path      Path
	Run       model.RunNumber
	Variation string
	AsOf      time.Time
}

// Key returns the cache key for the request.
func (r Request) Key() Key {
	return Key{Path: r.Path, Run: r.Run, Variation: r.Variation, AsOf: r.AsOf}
}

// ParseRequest parses the "/path/to/table:run:variation:timestamp" request
// syntax. Everything after the path is optional; empty fields keep their
// defaults (run 0, the default variation, latest timestamp). Timestamps use
// the permissive form accepted by model.ParseTimestamp.
func ParseRequest(s string) (Request, error) {
	pathStr, rest, hasRest := strings.Cut(s, ":")
	path, err := ParsePath(pathStr)
	if err != nil {
		return Request{}, err
	}
	req := Request{Path: path, Variation: DefaultVariation}
	if !hasRest {
		return req, nil
	}

	parts := strings.SplitN(rest, ":", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	if runStr := parts[0]; runStr != "" {
		run, err := strconv.ParseUint(runStr, 10, 32)
		if err != nil || model.RunNumber(run) > model.MaxRunNumber {
			return Request{}, fmt.Errorf("ccdb: invalid run number %q", runStr)
		}
		req.Run = model.RunNumber(run)
	}
	if parts[1] != "" {
		req.Variation = parts[1]
	}
	if timeStr := parts[2]; timeStr != "" {
		asOf, err := model.ParseTimestamp(timeStr)
		if err != nil {
			return Request{}, err
		}
		req.AsOf = asOf
	}
	return req, nil
}
