package config

import (
	"fmt"
	"strings"
)

// Region is a Konnect geographic API region.
type Region string

// Supported Konnect regions.
const (
	RegionUS Region = "us"
	RegionEU Region = "eu"
	RegionAU Region = "au"
	RegionME Region = "me"
	RegionIN Region = "in"
)

// DefaultRegion is used when KONNECT_REGION is unset.
const DefaultRegion = RegionUS

// Regions lists every supported region in display order.
var Regions = []Region{RegionUS, RegionEU, RegionAU, RegionME, RegionIN}

// ParseRegion parses a region name, case-insensitively. An empty string
// yields DefaultRegion.
func ParseRegion(s string) (Region, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultRegion, nil
	}
	for _, r := range Regions {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown Konnect region %q (valid: %s)", s, regionList())
}

// BaseURL returns the regional API root, e.g. https://us.api.konghq.com.
func (r Region) BaseURL() string {
	return "https://" + string(r) + ".api.konghq.com"
}

func regionList() string {
	names := make([]string, len(Regions))
	for i, r := range Regions {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
