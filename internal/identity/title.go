package identity

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizedTitle is a title reduced to its identity-relevant part
type NormalizedTitle struct {
	Slug    string // folded, diacritic-free tokens joined by "-"
	Display string // original-case tokens joined by spaces
	Year    int    // year recovered from the title, 0 if none
}

// noiseTokens are release tags that never belong to a title.
// Everything from the first noise token onwards is dropped.
var noiseTokens = map[string]struct{}{
	"480p": {}, "576p": {}, "720p": {}, "1080p": {}, "1080i": {}, "2160p": {}, "4k": {}, "uhd": {},
	"hdr": {}, "hdr10": {}, "sdr": {}, "10bit": {}, "8bit": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {}, "xvid": {}, "divx": {}, "av1": {},
	"bluray": {}, "bdrip": {}, "brrip": {}, "webdl": {}, "webrip": {}, "hdtv": {}, "dvdrip": {},
	"hdrip": {}, "remux": {},
	"aac": {}, "ac3": {}, "eac3": {}, "dts": {}, "ddp5": {}, "dd5": {}, "truehd": {}, "flac": {},
	"vostfr": {},
}

// wordTokens are release tags that are also ordinary words. They only start the noise
// when followed by more noise, a year, or nothing.
var wordTokens = map[string]struct{}{
	"proper": {}, "repack": {}, "multi": {}, "dv": {}, "atmos": {}, "subbed": {}, "dubbed": {},
}

var (
	bracketYearRegex = regexp.MustCompile(`[\(\[\{]\s*((?:19|20)\d{2})\s*[\)\]\}]`)
	bracketTagRegex  = regexp.MustCompile(`\[[^\]]*\]|\{[^\}]*\}`)
	yearTokenRegex   = regexp.MustCompile(`^(?:19|20)\d{2}$`)
	webDLRegex       = regexp.MustCompile(`(?i)\bweb[\.\-_ ]dl\b`)
	episodeTagRegex  = regexp.MustCompile(`^s\d{1,3}(?:e\d{1,4})?$`)
)

var apostrophes = strings.NewReplacer("’", "'", "`", "'")

// folder case-folds tokens and removes diacritics.
// Transformers and casers are stateful, so each normalization builds its own.
type folder struct {
	marks transform.Transformer
	caser cases.Caser
}

func newFolder() *folder {
	return &folder{
		marks: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		caser: cases.Fold(),
	}
}

func isStrongNoise(folded string) bool {
	_, ok := noiseTokens[folded]
	return ok || episodeTagRegex.MatchString(folded)
}

func (f *folder) fold(token string) string {
	stripped, _, err := transform.String(f.marks, token)
	if err != nil {
		stripped = token
	}
	return f.caser.String(stripped)
}

// NormalizeTitle strips release noise from a title.
// knownYear is the year supplied by the source (0 if unknown). With a known year, a trailing
// year token is kept as part of the name unless it repeats that year or precedes noise.
func NormalizeTitle(title string, knownYear int) NormalizedTitle {
	var result NormalizedTitle
	title = webDLRegex.ReplaceAllString(apostrophes.Replace(title), " WEBDL ")

	// Bracketed years are metadata, not title
	if m := bracketYearRegex.FindStringSubmatch(title); m != nil {
		result.Year, _ = strconv.Atoi(m[1])
		title = bracketYearRegex.ReplaceAllString(title, " ")
	}
	// [Group] and {tags} are never part of the name
	title = bracketTagRegex.ReplaceAllString(title, " ")

	original := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	f := newFolder()
	type token struct{ orig, folded string }
	tokens := make([]token, 0, len(original))
	for _, o := range original {
		o = strings.Trim(o, "'")
		if o == "" {
			continue
		}
		tokens = append(tokens, token{orig: o, folded: strings.ReplaceAll(f.fold(o), "'", "")})
	}

	isNoise := func(i int) bool {
		t := tokens[i].folded
		if isStrongNoise(t) {
			return true
		}
		if _, ok := wordTokens[t]; !ok {
			return false
		}
		if i+1 == len(tokens) {
			return true
		}
		next := tokens[i+1].folded
		_, nextWord := wordTokens[next]
		return nextWord || yearTokenRegex.MatchString(next) || isStrongNoise(next)
	}

	// Cut at the first noise or SxxEyy token, unless the title would become empty
	cut := len(tokens)
	for i := 1; i < len(tokens); i++ {
		if isNoise(i) {
			cut = i
			break
		}
	}
	truncated := cut < len(tokens)
	tail := tokens[cut:]
	tokens = tokens[:cut]

	// A trailing year is the release year when it precedes release noise, when the source
	// gave no year, or when it repeats the year the source gave
	if len(tokens) > 1 {
		last := tokens[len(tokens)-1].folded
		if yearTokenRegex.MatchString(last) && (truncated || knownYear == 0 || last == strconv.Itoa(knownYear)) {
			if result.Year == 0 {
				result.Year, _ = strconv.Atoi(last)
			}
			tokens = tokens[:len(tokens)-1]
		}
	}

	// "Name PROPER 2019 ..." carries its year behind the tag
	if result.Year == 0 {
		for _, t := range tail {
			if yearTokenRegex.MatchString(t.folded) {
				result.Year, _ = strconv.Atoi(t.folded)
				break
			}
		}
	}

	slugParts := make([]string, 0, len(tokens))
	displayParts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.folded == "" {
			continue
		}
		slugParts = append(slugParts, t.folded)
		displayParts = append(displayParts, t.orig)
	}

	result.Slug = strings.Join(slugParts, "-")
	result.Display = strings.Join(displayParts, " ")
	return result
}
