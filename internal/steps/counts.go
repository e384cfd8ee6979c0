package steps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kode4food/buildprops/pkg/api"
)

// Suffixes appended to the key prefix of a test-count request
const (
	SuffixPassedCount = "PassedCount"
	SuffixFailedCount = "FailedCount"
	SuffixFailedAge   = "FailedAge"
)

var ErrInvalidPattern = errors.New("invalid class name pattern")

// SetTestCounts counts the passed and failed cases whose class names pass
// the include and exclude filters, then stores the passed count, the failed
// count and the oldest failure age as three properties
func (s *Steps) SetTestCounts(
	ctx context.Context, runID api.RunID, req api.TestCountsRequest,
) (api.Properties, error) {
	include, err := compileFilter(req.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileFilter(req.Exclude)
	if err != nil {
		return nil, err
	}

	passed, _ := countCases(req.Results.Passed, include, exclude)
	failed, age := countCases(req.Results.Failed, include, exclude)

	values := api.Properties{
		{Key: req.KeyPrefix + SuffixPassedCount, Value: passed},
		{Key: req.KeyPrefix + SuffixFailedCount, Value: failed},
		{Key: req.KeyPrefix + SuffixFailedAge, Value: age},
	}
	res := make(api.Properties, 0, len(values))
	for _, p := range values {
		set, err := s.SetProperty(ctx, SetRequest{
			RunID:        runID,
			Key:          p.Key,
			Value:        p.Value,
			OnlyIfAbsent: req.OnlyIfAbsent,
		})
		if err != nil {
			return nil, err
		}
		res = append(res, set.Property)
	}
	return res, nil
}

// compileFilter anchors a class name pattern. A blank pattern means no
// filter
func compileFilter(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	if _, err := regexp.Compile(expr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return regexp.MustCompile(`^(?:` + expr + `)$`), nil
}

func countCases(
	cases []api.TestCase, include, exclude *regexp.Regexp,
) (count, age int32) {
	for _, c := range cases {
		if c.ClassName == "" {
			continue
		}
		if include != nil && !include.MatchString(c.ClassName) {
			continue
		}
		if exclude != nil && exclude.MatchString(c.ClassName) {
			continue
		}
		age = max(age, ageOf(c))
		count++
	}
	return count, age
}

// ageOf saturates a case age to the int range of the stored property
func ageOf(c api.TestCase) int32 {
	return int32(min(max(c.Age, 0), math.MaxInt32))
}
