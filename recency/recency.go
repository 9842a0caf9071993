// Package recency decides whether a scraped, free-form date string refers to
// today or yesterday in the news site's local timezone.
package recency

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// NoDateFound is the date value recorded when an article page carries no
// recognisable date. It is always treated as recent.
const NoDateFound = "No date found"

// DefaultTimezone is the timezone the site publishes in.
const DefaultTimezone = "Asia/Dhaka"

// layouts are tried in order; the first that parses wins.
var layouts = []string{
	"2006-1-2",
	"2 January, 2006",
	"2 Jan, 2006",
	"2 January 2006",
	"January 2, 2006",
	"2/1/2006",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z", // fractional seconds are accepted after the seconds field
	time.RFC3339,
}

// relativeIndicators mark a date string as recent regardless of the clock.
var relativeIndicators = []string{
	"today",
	"just now",
	"minutes ago",
	"hours ago",
	"yesterday",
}

var (
	monthWord    = regexp.MustCompile(`\b(jan(uary)?|feb(ruary)?|mar(ch)?|apr(il)?|may|june?|july?|aug(ust)?|sept?(ember)?|oct(ober)?|nov(ember)?|dec(ember)?)\b`)
	numericDate  = regexp.MustCompile(`\p{Nd}{1,4}[/.-]\p{Nd}{1,2}|(^|[^\p{Nd}])\p{Nd}{4}([^\p{Nd}]|$)`)
	olderThanDay = regexp.MustCompile(`\b(days?|weeks?|months?|years?)\s+ago\b`)
)

// bengaliMonths maps the Bengali spellings of Gregorian month names, with
// common variants, to English.
var bengaliMonths = map[string]string{
	"জানুয়ারি":   "January",
	"জানুয়ারী":   "January",
	"ফেব্রুয়ারি": "February",
	"ফেব্রুয়ারী": "February",
	"মার্চ":       "March",
	"এপ্রিল":      "April",
	"মে":          "May",
	"জুন":         "June",
	"জুলাই":       "July",
	"আগস্ট":       "August",
	"আগষ্ট":       "August",
	"সেপ্টেম্বর":  "September",
	"অক্টোবর":     "October",
	"নভেম্বর":     "November",
	"ডিসেম্বর":    "December",
}

// bengaliPhrases maps relative date phrases to their English forms.
var bengaliPhrases = []string{
	"মিনিট আগে", "minutes ago",
	"ঘণ্টা আগে", "hours ago",
	"ঘন্টা আগে", "hours ago",
	"দিন আগে", "days ago",
	"সপ্তাহ আগে", "weeks ago",
	"মাস আগে", "months ago",
	"বছর আগে", "years ago",
	"এইমাত্র", "just now",
	"গতকাল", "yesterday",
	"আজ", "today",
}

var (
	bengaliMonthWord *regexp.Regexp
	bengaliReplacer  *strings.Replacer
)

func init() {
	names := make([]string, 0, len(bengaliMonths))
	months := make(map[string]string, len(bengaliMonths))
	for name, english := range bengaliMonths {
		name = norm.NFC.String(name)
		names = append(names, regexp.QuoteMeta(name))
		months[name] = english
	}
	bengaliMonths = months
	// Longest names first so a prefix never wins.
	slices.SortFunc(names, func(a, b string) int { return len(b) - len(a) })
	bengaliMonthWord = regexp.MustCompile(`(^|[\s,])(` + strings.Join(names, "|") + `)([\s,]|$)`)

	pairs := make([]string, len(bengaliPhrases))
	for i, p := range bengaliPhrases {
		pairs[i] = norm.NFC.String(p)
	}
	bengaliReplacer = strings.NewReplacer(pairs...)
}

// normalize rewrites Bengali digits, month names and relative phrases into
// their English forms so the layouts and indicators below can match them.
func normalize(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if r >= '০' && r <= '৯' {
			return '0' + (r - '০')
		}
		return r
	}, s)
	s = bengaliMonthWord.ReplaceAllStringFunc(s, func(m string) string {
		sub := bengaliMonthWord.FindStringSubmatch(m)
		return sub[1] + bengaliMonths[sub[2]] + sub[3]
	})
	return bengaliReplacer.Replace(s)
}

// Dhaka returns the site's location, falling back to a fixed UTC+6 zone when
// the tz database is unavailable.
func Dhaka() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.FixedZone(DefaultTimezone, 6*60*60)
	}
	return loc
}

// Classifier evaluates date strings against a wall clock in a fixed
// location.
type Classifier struct {
	loc *time.Location
	now func() time.Time
}

// NewClassifier creates a classifier anchored to the current time in loc.
func NewClassifier(loc *time.Location) *Classifier {
	if loc == nil {
		loc = Dhaka()
	}
	return &Classifier{loc: loc, now: time.Now}
}

// WithClock returns a copy of the classifier that reads the time from now.
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	return &Classifier{loc: c.loc, now: now}
}

// Location returns the classifier's timezone.
func (c *Classifier) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the classifier's timezone.
func (c *Classifier) Now() time.Time {
	return c.now().In(c.loc)
}

type calendarDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) calendarDay {
	y, m, d := t.Date()
	return calendarDay{year: y, month: m, day: d}
}

// IsRecent reports whether raw names today or yesterday. Strings that parse
// as a known layout are compared by calendar date; otherwise relative
// phrases and rendered fragments of today's and yesterday's dates count as
// recent. A string with no date-like content at all is given the benefit of
// the doubt. Any internal failure also yields true.
func (c *Classifier) IsRecent(raw string) (recent bool) {
	defer func() {
		if r := recover(); r != nil {
			recent = true
		}
	}()

	now := c.Now()
	today := dayOf(now)
	yesterday := dayOf(time.Date(now.Year(), now.Month(), now.Day()-1, 12, 0, 0, 0, c.loc))

	clean := normalize(raw)
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, clean)
		if err != nil {
			continue
		}
		d := dayOf(parsed)
		return d == today || d == yesterday
	}

	lower := strings.ToLower(clean)
	for _, indicator := range indicators(today, yesterday) {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	return !hasDateSignal(lower)
}

// IsRecentOrUndated is IsRecent with the NoDateFound sentinel short-circuited
// to true.
func (c *Classifier) IsRecentOrUndated(raw string) bool {
	if raw == NoDateFound {
		return true
	}
	return c.IsRecent(raw)
}

func indicators(days ...calendarDay) []string {
	out := append([]string{}, relativeIndicators...)
	for _, d := range days {
		full := strings.ToLower(d.month.String())
		short := full[:3]
		out = append(out,
			fmt.Sprintf("%02d %s", d.day, full),
			fmt.Sprintf("%02d %s", d.day, short),
			fmt.Sprintf("%d %s", d.day, full),
			fmt.Sprintf("%d %s", d.day, short),
			fmt.Sprintf("%d/%d", d.day, int(d.month)),
			fmt.Sprintf("%d/%d", int(d.month), d.day),
		)
	}
	return out
}

// hasDateSignal reports whether s mentions a month, a numeric date, a year
// or an age older than a day, any of which rules out the lenient default.
func hasDateSignal(s string) bool {
	return monthWord.MatchString(s) || numericDate.MatchString(s) || olderThanDay.MatchString(s)
}

var defaultClassifier = NewClassifier(nil)

// IsRecent classifies raw with the default Asia/Dhaka classifier.
func IsRecent(raw string) bool {
	return defaultClassifier.IsRecent(raw)
}
