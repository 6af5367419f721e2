package domain

import (
	"strconv"
	"strings"
)

type Quality string

const (
	Quality360p  Quality = "360p"
	Quality540p  Quality = "540p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
)

// Qualities lists the recognised values from lowest to highest.
var Qualities = []Quality{Quality360p, Quality540p, Quality720p, Quality1080p}

// ParseQuality accepts only the closed set of qualities.
func ParseQuality(s string) (Quality, error) {
	for _, q := range Qualities {
		if strings.EqualFold(s, string(q)) {
			return q, nil
		}
	}
	return "", Usagef("unrecognised quality %q (want one of %s)", s, QualityNames())
}

// Height returns the vertical resolution, e.g. 720 for 720p.
func (q Quality) Height() int {
	n, err := strconv.Atoi(strings.TrimSuffix(string(q), "p"))
	if err != nil {
		return 0
	}
	return n
}

func QualityNames() string {
	names := make([]string, len(Qualities))
	for i, q := range Qualities {
		names[i] = string(q)
	}
	return strings.Join(names, ", ")
}
