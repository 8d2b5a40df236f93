package parser

import (
	"fmt"
	"strings"
)

// parseAttributeList parses an HLS attribute list such as
// TYPE=AUDIO,URI="a.m3u8",NAME="en, US". Commas inside quoted strings are
// part of the value. Quoted values are returned without their quotes.
func parseAttributeList(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}

		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("attribute %q has no value", s[i:])
		}
		name := strings.TrimSpace(s[i : i+eq])
		if !validAttributeName(name) {
			return nil, fmt.Errorf("invalid attribute name %q", name)
		}
		i += eq + 1

		var value string
		if i < len(s) && s[i] == '"' {
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quoted value for %s", name)
			}
			value = s[i+1 : i+1+end]
			i += end + 2
			for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			if i < len(s) {
				if s[i] != ',' {
					return nil, fmt.Errorf("unexpected %q after value of %s", s[i], name)
				}
				i++
			}
		} else {
			end := strings.IndexByte(s[i:], ',')
			if end < 0 {
				value = s[i:]
				i = len(s)
			} else {
				value = s[i : i+end]
				i += end + 1
			}
			value = strings.TrimSpace(value)
		}

		attrs[name] = value
	}
	return attrs, nil
}

func validAttributeName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
