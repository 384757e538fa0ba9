package audio

import (
	"math"
	"time"
)

// Range is a span of a clip in milliseconds, end exclusive.
type Range struct {
	Start int
	End   int
}

// seekStepMS is the window stride used by silence detection.
const seekStepMS = 1

// DetectSilence returns the ranges where the RMS of every minSilence window
// stays at or below threshDB (dBFS). Overlapping and adjacent windows are
// merged into one range.
func DetectSilence(c *Clip, minSilence time.Duration, threshDB float64) []Range {
	segLen := c.Milliseconds()
	minLen := int(minSilence / time.Millisecond)
	if minLen <= 0 || segLen < minLen {
		return nil
	}

	thresh := DBToAmplitude(threshDB)
	prefix := squaredPrefix(c.Samples)

	lastStart := segLen - minLen
	starts := make([]int, 0, lastStart/seekStepMS+2)
	for i := 0; i <= lastStart; i += seekStepMS {
		starts = append(starts, i)
	}
	if lastStart%seekStepMS != 0 {
		starts = append(starts, lastStart)
	}

	var silent []int
	for _, i := range starts {
		if windowRMS(c, prefix, i, i+minLen) <= thresh {
			silent = append(silent, i)
		}
	}
	if len(silent) == 0 {
		return nil
	}

	var ranges []Range
	prev := silent[0]
	rangeStart := prev
	for _, i := range silent[1:] {
		continuous := i == prev+seekStepMS
		hasGap := i > prev+minLen
		if !continuous && hasGap {
			ranges = append(ranges, Range{Start: rangeStart, End: prev + minLen})
			rangeStart = i
		}
		prev = i
	}
	return append(ranges, Range{Start: rangeStart, End: prev + minLen})
}

// DetectNonsilent returns the complement of DetectSilence. A clip with no
// silence is one range covering it. A clip that is silent throughout yields
// no ranges.
func DetectNonsilent(c *Clip, minSilence time.Duration, threshDB float64) []Range {
	segLen := c.Milliseconds()
	silent := DetectSilence(c, minSilence, threshDB)
	if len(silent) == 0 {
		return []Range{{Start: 0, End: segLen}}
	}
	if silent[0].Start == 0 && silent[0].End == segLen {
		return nil
	}

	var ranges []Range
	prevEnd := 0
	for _, r := range silent {
		ranges = append(ranges, Range{Start: prevEnd, End: r.Start})
		prevEnd = r.End
	}
	if silent[len(silent)-1].End != segLen {
		ranges = append(ranges, Range{Start: prevEnd, End: segLen})
	}
	if ranges[0].Start == 0 && ranges[0].End == 0 {
		ranges = ranges[1:]
	}
	return ranges
}

// TrimSilence drops leading and trailing silence. When the clip has no
// non-silent audio it is returned unchanged and ok is false.
func TrimSilence(c *Clip, minSilence time.Duration, threshDB float64) (trimmed *Clip, ok bool) {
	ranges := DetectNonsilent(c, minSilence, threshDB)
	if len(ranges) == 0 {
		return c, false
	}
	return c.Slice(ranges[0].Start, ranges[len(ranges)-1].End), true
}

func squaredPrefix(samples []float64) []float64 {
	prefix := make([]float64, len(samples)+1)
	for i, s := range samples {
		prefix[i+1] = prefix[i] + s*s
	}
	return prefix
}

func windowRMS(c *Clip, prefix []float64, startMS, endMS int) float64 {
	start := c.frameAt(startMS)
	end := c.frameAt(endMS)
	if end <= start {
		return 0
	}
	return math.Sqrt((prefix[end] - prefix[start]) / float64(end-start))
}
