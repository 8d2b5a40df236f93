package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Eyevinn/dash-mpd/mpd"
	"github.com/Eyevinn/dash-mpd/xml"

	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/models"
)

// DASHParser parses DASH (mpd) manifests that address segments through
// SegmentTemplate.
type DASHParser struct {
	log logger.Logger
}

// NewDASHParser creates a new DASH parser.
func NewDASHParser(log logger.Logger) *DASHParser {
	if log == nil {
		log = logger.Nop()
	}
	return &DASHParser{log: log}
}

// Format implements Parser.
func (p *DASHParser) Format() models.Format { return models.FormatDASH }

// CanParse checks if URL is a DASH manifest.
func (p *DASHParser) CanParse(urlStr string) bool {
	path, query := urlPathLower(urlStr)
	return strings.HasSuffix(path, ".mpd") ||
		strings.Contains(path, "format=mpd-time-csf") ||
		strings.Contains(query, "format=mpd-time-csf")
}

// DASHResult is the parsed form of a DASH asset.
type DASHResult struct {
	URL             string
	ContentType     string
	Periods         int
	Representations int

	segments []models.Segment
}

func (r *DASHResult) Format() models.Format      { return models.FormatDASH }
func (r *DASHResult) MasterURL() string          { return r.URL }
func (r *DASHResult) Segments() []models.Segment { return r.segments }
func (r *DASHResult) isParsed()                  {}

// DASH MPD XML structures. Only what segment enumeration needs is decoded.
// SegmentTemplate is a slice so that duplicates can be rejected.

type mpdDocument struct {
	XMLName                   xml.Name
	MediaPresentationDuration *mpd.Duration `xml:"mediaPresentationDuration,attr"`
	BaseURL                   []string      `xml:"BaseURL"`
	Periods                   []mpdPeriod   `xml:"Period"`
}

type mpdPeriod struct {
	ID             string             `xml:"id,attr"`
	Start          *mpd.Duration      `xml:"start,attr"`
	Duration       *mpd.Duration      `xml:"duration,attr"`
	BaseURL        []string           `xml:"BaseURL"`
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	ID               string              `xml:"id,attr"`
	BaseURL          []string            `xml:"BaseURL"`
	SegmentTemplates []mpdTemplate       `xml:"SegmentTemplate"`
	Representations  []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID               string        `xml:"id,attr"`
	Bandwidth        int64         `xml:"bandwidth,attr"`
	BaseURL          []string      `xml:"BaseURL"`
	SegmentTemplates []mpdTemplate `xml:"SegmentTemplate"`
}

type mpdTemplate struct {
	Media                  string       `xml:"media,attr"`
	Initialization         string       `xml:"initialization,attr"`
	Timescale              *int64       `xml:"timescale,attr"`
	Duration               *int64       `xml:"duration,attr"`
	StartNumber            *int64       `xml:"startNumber,attr"`
	PresentationTimeOffset int64        `xml:"presentationTimeOffset,attr"`
	Timeline               *mpdTimeline `xml:"SegmentTimeline"`
}

type mpdTimeline struct {
	S []TimelineEntry `xml:"S"`
}

// Parse enumerates every segment of every representation, period by
// period, in document order.
func (p *DASHParser) Parse(_ context.Context, master *models.Document, _ map[string]string) (Parsed, error) {
	body := trimLeading(master.Body)
	if !bytes.HasPrefix(body, []byte("<")) {
		return nil, &models.NotAManifestError{URL: master.URL, Status: master.Status, Expected: models.FormatDASH}
	}

	var doc mpdDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, models.WrapFormatError(master, err, "decode MPD")
	}
	if doc.XMLName.Local != "MPD" {
		return nil, &models.NotAManifestError{URL: master.URL, Status: master.Status, Expected: models.FormatDASH}
	}

	manifestURL, err := url.Parse(master.URL)
	if err != nil {
		return nil, models.FormatErrorf(master, "invalid manifest url: %v", err)
	}

	result := &DASHResult{
		URL:         master.URL,
		ContentType: correctContentType(master.ContentType, models.FormatDASH),
		Periods:     len(doc.Periods),
	}

	mpdBase := resolveBase(manifestURL, doc.BaseURL)
	for i, period := range doc.Periods {
		periodSeconds, periodKnown := periodDuration(&doc, i)
		periodBase := resolveBase(mpdBase, period.BaseURL)
		p.log.Debugf("period %d (%s): %d adaptation sets, %.3fs", i+1, period.ID, len(period.AdaptationSets), periodSeconds)

		for _, as := range period.AdaptationSets {
			asBase := resolveBase(periodBase, as.BaseURL)

			for _, rep := range as.Representations {
				tmpl, err := selectTemplate(as, rep)
				if err != nil {
					return nil, models.WrapFormatError(master, err, "period %d, representation %q", i+1, rep.ID)
				}

				segments, err := expandRepresentation(tmpl, rep, resolveBase(asBase, rep.BaseURL), periodSeconds, periodKnown)
				if err != nil {
					return nil, models.WrapFormatError(master, err, "period %d, representation %q", i+1, rep.ID)
				}

				result.segments = append(result.segments, segments...)
				result.Representations++
			}
		}
	}

	p.log.Infof("parsed %d periods, %d representations, %d segments", result.Periods, result.Representations, len(result.segments))
	return result, nil
}

// ErrSegmentTemplate is wrapped by every failure to pick or expand a
// representation's SegmentTemplate.
var ErrSegmentTemplate = errors.New("unusable SegmentTemplate")

// selectTemplate applies the lookup rule: the representation's own
// template wins over its adaptation set's, and the chosen level must carry
// exactly one.
func selectTemplate(as mpdAdaptationSet, rep mpdRepresentation) (*mpdTemplate, error) {
	templates := rep.SegmentTemplates
	if len(templates) == 0 {
		templates = as.SegmentTemplates
	}
	switch len(templates) {
	case 0:
		return nil, fmt.Errorf("%w: no SegmentTemplate found", ErrSegmentTemplate)
	case 1:
		return &templates[0], nil
	default:
		return nil, fmt.Errorf("%w: %d SegmentTemplates at one level, at most one is supported", ErrSegmentTemplate, len(templates))
	}
}

func expandRepresentation(tmpl *mpdTemplate, rep mpdRepresentation, base *url.URL, periodSeconds float64, periodKnown bool) ([]models.Segment, error) {
	if tmpl.Media == "" {
		return nil, fmt.Errorf("%w: no media attribute", ErrSegmentTemplate)
	}

	timescale := int64(1)
	if tmpl.Timescale != nil && *tmpl.Timescale > 0 {
		timescale = *tmpl.Timescale
	}
	startNumber := int64(1)
	if tmpl.StartNumber != nil {
		startNumber = *tmpl.StartNumber
	}

	vars := templateVars{RepresentationID: rep.ID, Bandwidth: rep.Bandwidth}
	baseStr := base.String()

	var segments []models.Segment
	add := func(ref string, init bool) error {
		u, err := ResolveURL(baseStr, ref)
		if err != nil {
			return err
		}
		segments = append(segments, models.Segment{URL: u, Init: init, Representation: rep.ID})
		return nil
	}

	useTime := usesIdentifier(tmpl.Media, "Time")
	useNumber := usesIdentifier(tmpl.Media, "Number")

	switch {
	case useTime:
		times, err := segmentTimes(tmpl, timescale, startNumber, periodSeconds, periodKnown)
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			v := vars
			v.Time = &t
			if err := add(expandTemplate(tmpl.Media, v), false); err != nil {
				return nil, err
			}
		}

	case useNumber:
		count, err := segmentCount(tmpl, timescale, startNumber, periodSeconds, periodKnown)
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < count; i++ {
			n := startNumber + i
			v := vars
			v.Number = &n
			if err := add(expandTemplate(tmpl.Media, v), false); err != nil {
				return nil, err
			}
		}

	default:
		if err := add(expandTemplate(tmpl.Media, vars), false); err != nil {
			return nil, err
		}
	}

	if tmpl.Initialization != "" {
		// Some packagers put $Time$ in the init template; it names the
		// init segment with a literal "i".
		init := strings.ReplaceAll(tmpl.Initialization, "$Time$", "i")
		if err := add(expandTemplate(init, vars), true); err != nil {
			return nil, err
		}
	}

	return segments, nil
}

// segmentTimes returns $Time$ values: the explicit timeline when there is
// one, the inferred numbers otherwise.
func segmentTimes(tmpl *mpdTemplate, timescale, startNumber int64, periodSeconds float64, periodKnown bool) ([]int64, error) {
	if tmpl.Timeline != nil && len(tmpl.Timeline.S) > 0 {
		return ExplicitTimeline(tmpl.Timeline.S, periodEnd(tmpl, timescale, periodSeconds, periodKnown))
	}

	// Without a timeline $Time$ takes the inferred segment numbers.
	return inferred(tmpl, timescale, startNumber, periodSeconds, periodKnown)
}

// segmentCount returns how many $Number$ segments the template yields.
func segmentCount(tmpl *mpdTemplate, timescale, startNumber int64, periodSeconds float64, periodKnown bool) (int64, error) {
	if tmpl.Timeline != nil && len(tmpl.Timeline.S) > 0 {
		times, err := ExplicitTimeline(tmpl.Timeline.S, periodEnd(tmpl, timescale, periodSeconds, periodKnown))
		if err != nil {
			return 0, err
		}
		return int64(len(times)), nil
	}

	numbers, err := inferred(tmpl, timescale, startNumber, periodSeconds, periodKnown)
	if err != nil {
		return 0, err
	}
	return int64(len(numbers)), nil
}

func inferred(tmpl *mpdTemplate, timescale, startNumber int64, periodSeconds float64, periodKnown bool) ([]int64, error) {
	if tmpl.Duration == nil {
		return nil, fmt.Errorf("%w: neither SegmentTimeline nor duration", ErrSegmentTemplate)
	}
	if !periodKnown {
		return nil, fmt.Errorf("%w: period duration is unknown, cannot infer segment count", ErrTimeline)
	}
	return InferredTimeline(startNumber, *tmpl.Duration, timescale, periodSeconds)
}

func periodEnd(tmpl *mpdTemplate, timescale int64, periodSeconds float64, periodKnown bool) int64 {
	if !periodKnown {
		return 0
	}
	return tmpl.PresentationTimeOffset + int64(periodSeconds*float64(timescale))
}

// periodDuration returns Period@duration, or the distance to the next
// period's start, or for the last period what remains of the presentation.
func periodDuration(doc *mpdDocument, i int) (float64, bool) {
	period := doc.Periods[i]
	if period.Duration != nil {
		return seconds(period.Duration), true
	}

	var start float64
	if period.Start != nil {
		start = seconds(period.Start)
	}
	if i+1 < len(doc.Periods) {
		if next := doc.Periods[i+1].Start; next != nil {
			return seconds(next) - start, true
		}
		return 0, false
	}
	if doc.MediaPresentationDuration != nil {
		return seconds(doc.MediaPresentationDuration) - start, true
	}
	return 0, false
}

func seconds(d *mpd.Duration) float64 {
	return time.Duration(*d).Seconds()
}
