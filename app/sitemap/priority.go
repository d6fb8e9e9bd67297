package sitemap

import (
	"math"
	"time"
)

// Calculator scores URLs by recency and popularity. Every formula is
// monotonically non-decreasing in both.
type Calculator struct {
	weights Weights
	now     time.Time
}

func NewCalculator(weights Weights, now time.Time) *Calculator {
	return &Calculator{weights: weights, now: now}
}

func (c *Calculator) Post(r PostRecord) (ChangeFreq, float64) {
	w := c.weights
	priority := w.PostBase

	if r.Views > w.HighViews {
		priority += w.PopularityBonus
	}
	if r.Views > w.VeryHighViews {
		priority += w.PopularityBonus
	}

	freq := ChangeFreqMonthly
	if r.PublishedAt != nil {
		age := c.ageInDays(*r.PublishedAt)
		switch {
		case age <= w.FreshDays:
			freq = ChangeFreqDaily
		case age <= w.RecentDays:
			freq = ChangeFreqWeekly
		case age <= w.AgingDays:
			freq = ChangeFreqMonthly
		default:
			freq = ChangeFreqYearly
		}

		if age <= w.FreshDays {
			priority += w.FreshBonus
		} else if age <= w.RecentDays {
			priority += w.RecentBonus
		}
	}

	if r.CoverImage != nil && r.CoverImage.Loc != "" {
		priority += w.ImageBonus
	}

	return freq, clampPriority(priority)
}

func (c *Calculator) Category(r CategoryRecord) (ChangeFreq, float64) {
	w := c.weights
	priority := w.CategoryBase

	var freq ChangeFreq
	switch {
	case r.PostCount > w.CategoryVeryBusy:
		freq = ChangeFreqDaily
	case r.PostCount > w.CategoryBusy:
		freq = ChangeFreqWeekly
	case r.PostCount > w.CategoryActive:
		freq = ChangeFreqMonthly
	default:
		freq = ChangeFreqYearly
	}

	if r.PostCount > w.CategoryBusy {
		priority += w.CategoryBonus
	}
	if r.PostCount > w.CategoryVeryBusy {
		priority += w.CategoryBonus
	}

	return freq, clampPriority(priority)
}

func (c *Calculator) Author() (ChangeFreq, float64) {
	return ChangeFreqMonthly, clampPriority(c.weights.AuthorPriority)
}

func (c *Calculator) Tag() (ChangeFreq, float64) {
	return ChangeFreqMonthly, clampPriority(c.weights.TagPriority)
}

func (c *Calculator) Index() (ChangeFreq, float64) {
	return ChangeFreqDaily, clampPriority(c.weights.IndexPriority)
}

// ageInDays counts whole days; future dates count as zero.
func (c *Calculator) ageInDays(t time.Time) int {
	d := c.now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

func clampPriority(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return math.Round(p*100) / 100
}
