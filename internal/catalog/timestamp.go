package catalog

import (
	"regexp"
	"strconv"
	"time"
)

var (
	filenameStampPattern = regexp.MustCompile(`_(\d{4})-(\d{2})-(\d{2})_(\d{2})-(\d{2})-(\d{2})`)
	urlExpiryPattern     = regexp.MustCompile(`[?&]ex=([0-9a-fA-F]+)`)
)

// ResolveCapture derives the authoritative capture instant for an image, in
// milliseconds since the epoch. Precedence, first match wins:
//
//  1. a PREFIX_YYYY-MM-DD_HH-MM-SS stamp embedded in the filename (the VRChat
//     screenshot naming scheme);
//  2. the hexadecimal ex= expiry parameter on the source URL, in epoch seconds;
//  3. the creation instant of the hosting message.
//
// Filename components are interpreted against the process-local calendar
// while CaptureDisplay renders in UTC. The upstream gallery behaved this way
// and its stored milliseconds are what consumers key off, so both stay as
// they are.
func ResolveCapture(filename, sourceURL string, fallback time.Time) int64 {
	if groups := filenameStampPattern.FindStringSubmatch(filename); groups != nil {
		year, _ := strconv.Atoi(groups[1])
		month, _ := strconv.Atoi(groups[2])
		day, _ := strconv.Atoi(groups[3])
		hour, _ := strconv.Atoi(groups[4])
		minute, _ := strconv.Atoi(groups[5])
		second, _ := strconv.Atoi(groups[6])
		stamp := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
		return stamp.UnixMilli()
	}

	if groups := urlExpiryPattern.FindStringSubmatch(sourceURL); groups != nil {
		if seconds, err := strconv.ParseInt(groups[1], 16, 64); err == nil {
			return seconds * 1000
		}
	}

	return fallback.UnixMilli()
}

// CaptureDisplay renders a capture instant as DD.MM.YYYY-HH:MM:SS in UTC.
// The hyphen between the date and time fragments matches the document format
// the serving layer already consumes.
func CaptureDisplay(capturedAt int64) string {
	return time.UnixMilli(capturedAt).UTC().Format("02.01.2006-15:04:05")
}
