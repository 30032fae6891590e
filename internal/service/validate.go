package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"lol-reviewer/internal/constants"
	"lol-reviewer/internal/domain"
)

const (
	minNameLength = 3
	maxNameLength = 16
	minTagLength  = 3
	maxTagLength  = 5
)

type ReviewRequest struct {
	RiotID     string `json:"riot_id"`
	Region     string `json:"region"`
	NumMatches int    `json:"num_matches"`
}

// reviewInput is a ReviewRequest after validation.
type reviewInput struct {
	name   string
	tag    string
	region domain.Region
	count  int
}

// ParseRiotID splits "Name#TAG" and validates both halves.
func ParseRiotID(riotID string) (string, string, error) {
	riotID = strings.TrimSpace(riotID)
	name, tag, ok := strings.Cut(riotID, "#")
	if !ok {
		return "", "", domain.InvalidInput("riot id must be in Name#TAG format")
	}
	name = strings.TrimSpace(name)
	tag = strings.TrimSpace(tag)

	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return "", "", domain.InvalidInput("name must be %d-%d characters", minNameLength, maxNameLength)
	}
	if n := utf8.RuneCountInString(tag); n < minTagLength || n > maxTagLength {
		return "", "", domain.InvalidInput("tag must be %d-%d characters", minTagLength, maxTagLength)
	}
	for _, r := range tag {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", "", domain.InvalidInput("tag must be alphanumeric")
		}
	}
	return name, tag, nil
}

func validateRequest(req ReviewRequest) (reviewInput, error) {
	name, tag, err := ParseRiotID(req.RiotID)
	if err != nil {
		return reviewInput{}, err
	}

	region, ok := domain.ParseRegion(req.Region)
	if !ok {
		return reviewInput{}, domain.InvalidInput("unsupported region %q", req.Region)
	}

	count := req.NumMatches
	if count == 0 {
		count = constants.DefaultMatchCount
	}
	if count < constants.MinMatchCount || count > constants.MaxMatchCount {
		return reviewInput{}, domain.InvalidInput("num_matches must be between %d and %d", constants.MinMatchCount, constants.MaxMatchCount)
	}

	return reviewInput{name: name, tag: tag, region: region, count: count}, nil
}
