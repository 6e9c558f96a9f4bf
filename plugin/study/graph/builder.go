package graph

import (
	"math"
	"math/rand"
	"time"

	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/mathx"
)

// BuildGraph projects concepts into nodes, links and stats.
// Concepts sharing a key collapse to the first occurrence.
func BuildGraph(concepts []mastery.ConceptMastery, cfg Config) ConceptGraph {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	graph := ConceptGraph{
		Nodes: make([]Node, 0, len(concepts)),
		Links: make([]Link, 0),
	}

	anchors := make(map[string]Anchor, len(cfg.Anchors))
	for subject, anchor := range cfg.Anchors {
		anchors[subject] = anchor
	}
	subjectIndex := make(map[string]int)
	seen := make(map[string]bool, len(concepts))
	kept := make([]mastery.ConceptMastery, 0, len(concepts))

	for _, c := range concepts {
		if c.ConceptKey == "" || seen[c.ConceptKey] {
			continue
		}
		seen[c.ConceptKey] = true
		kept = append(kept, c)

		anchor, ok := anchors[c.Subject]
		if !ok {
			anchor = randomAnchor(rng)
			anchors[c.Subject] = anchor
		}
		idx := subjectIndex[c.Subject]
		subjectIndex[c.Subject] = idx + 1

		graph.Nodes = append(graph.Nodes, buildNode(c, anchor, idx, rng))
		graph.Links = append(graph.Links, buildLinks(c)...)
	}

	graph.Stats = computeStats(kept, now)
	return graph
}

func randomAnchor(rng *rand.Rand) Anchor {
	return Anchor{
		Angle:  rng.Float64() * 2 * math.Pi,
		Radius: MinAnchorRadius + rng.Float64()*(MaxAnchorRadius-MinAnchorRadius),
	}
}

func buildNode(c mastery.ConceptMastery, anchor Anchor, idx int, rng *rand.Rand) Node {
	status := mastery.Classify(float64(c.MasteryLevel), c.ConfidenceScore)

	// index-based offset keeps nodes of one subject from stacking when jitter collides
	offsetX := float64(idx%4) * 6
	offsetY := float64((idx/4)%4) * 6

	x := anchor.Radius*math.Cos(anchor.Angle) + (rng.Float64()*2-1)*Jitter + offsetX
	y := anchor.Radius*math.Sin(anchor.Angle) + (rng.Float64()*2-1)*Jitter + offsetY

	var next *time.Time
	if c.NextReview != nil {
		t := *c.NextReview
		next = &t
	}

	return Node{
		ID:         c.ConceptKey,
		Label:      c.ConceptName,
		Subject:    c.Subject,
		Status:     status,
		Mastery:    c.MasteryLevel,
		Importance: c.Importance,
		NextReview: next,
		X:          x,
		Y:          y,
		Size:       BaseNodeSize + mathx.Clamp(c.Importance, 0, 1)*ImportanceSizeSpan,
		Visual:     Palette[status],
	}
}

// buildLinks emits one link per relation. Related and prerequisite keys use
// different formats and never dedupe against each other.
func buildLinks(c mastery.ConceptMastery) []Link {
	links := make([]Link, 0, len(c.RelatedConcepts)+len(c.Prerequisites))
	for _, rel := range c.RelatedConcepts {
		links = append(links, Link{
			ID:       c.ConceptKey + "->" + rel.ConceptKey,
			Source:   c.ConceptKey,
			Target:   rel.ConceptKey,
			Type:     LinkTypeRelated,
			Strength: mathx.Clamp(rel.Strength, 0, 1),
		})
	}
	for _, pre := range c.Prerequisites {
		links = append(links, Link{
			ID:       pre.ConceptKey + "|" + c.ConceptKey,
			Source:   pre.ConceptKey,
			Target:   c.ConceptKey,
			Type:     LinkTypePrerequisite,
			Strength: mathx.Clamp(pre.Strength, 0, 1),
		})
	}
	return links
}

func computeStats(concepts []mastery.ConceptMastery, now time.Time) Stats {
	stats := Stats{
		Total:    len(concepts),
		ByStatus: make(map[mastery.Status]int, len(mastery.Statuses)),
	}
	for _, s := range mastery.Statuses {
		stats.ByStatus[s] = 0
	}

	levels := make([]int, 0, len(concepts))
	for _, c := range concepts {
		levels = append(levels, c.MasteryLevel)
		stats.ByStatus[mastery.Classify(float64(c.MasteryLevel), c.ConfidenceScore)]++

		if c.NextReview == nil {
			continue
		}
		if !c.NextReview.After(now) {
			stats.Overdue++
			continue
		}
		if days := mathx.DaysUntil(*c.NextReview, now); days <= DueSoonDays {
			stats.DueSoon++
		}
	}
	stats.AverageMastery = mathx.MeanRounded(levels)
	return stats
}
