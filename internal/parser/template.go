package parser

import (
	"fmt"
	"regexp"
	"strconv"
)

// templateIdentifier matches $Name$, $Name%0Nd$ and the $$ escape.
var templateIdentifier = regexp.MustCompile(`\$(RepresentationID|Bandwidth|Number|Time)(?:%0?(\d+)d)?\$|\$\$`)

// templateVars holds the substitution values. Nil Number or Time leaves
// the identifier in place.
type templateVars struct {
	RepresentationID string
	Bandwidth        int64
	Number           *int64
	Time             *int64
}

func expandTemplate(tmpl string, v templateVars) string {
	return templateIdentifier.ReplaceAllStringFunc(tmpl, func(match string) string {
		if match == "$$" {
			return "$"
		}
		sub := templateIdentifier.FindStringSubmatch(match)
		width, _ := strconv.Atoi(sub[2])

		switch sub[1] {
		case "RepresentationID":
			return v.RepresentationID
		case "Bandwidth":
			return padInt(v.Bandwidth, width)
		case "Number":
			if v.Number != nil {
				return padInt(*v.Number, width)
			}
		case "Time":
			if v.Time != nil {
				return padInt(*v.Time, width)
			}
		}
		return match
	})
}

// usesIdentifier reports whether tmpl references $name$ in any width form.
func usesIdentifier(tmpl, name string) bool {
	for _, m := range templateIdentifier.FindAllStringSubmatch(tmpl, -1) {
		if m[1] == name {
			return true
		}
	}
	return false
}

func padInt(n int64, width int) string {
	if width <= 0 {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%0*d", width, n)
}
