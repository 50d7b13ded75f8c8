package device

import (
	"regexp"
)

const (
	bdfPattern   = `^(?P<domain>[0-9a-fA-F]{1,4}):(?P<bus>[0-9a-fA-F]+):(?P<device>[0-9a-fA-F]+)\.(?P<function>[0-7])$`
	subExpKeyBus = "bus"
)

var (
	bdfRegExp = regexp.MustCompile(bdfPattern)
)

func parseBusIDFromBDF(bdf string) (string, error) {
	matches := bdfRegExp.FindStringSubmatch(bdf)
	if matches == nil {
		return "", unexpectedValue("couldn't parse the given string %s with bdf regex pattern: %s", bdf, bdfPattern)
	}

	namedMatches := map[string]string{}
	for i, subExp := range bdfRegExp.SubexpNames() {
		if subExp == "" {
			continue
		}
		namedMatches[subExp] = matches[i]
	}

	busID, ok := namedMatches[subExpKeyBus]
	if !ok {
		return "", unexpectedValue("couldn't parse bus id from the given bdf expression %s", bdf)
	}

	return busID, nil
}
