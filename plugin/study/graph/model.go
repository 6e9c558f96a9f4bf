// Package graph projects a learner's concepts into a renderable node/link graph.
package graph

import (
	"math/rand"
	"time"

	"github.com/hrygo/studypulse/plugin/study/mastery"
)

// LinkType constants.
const (
	LinkTypeRelated      = "related"      // relatedConcepts entry
	LinkTypePrerequisite = "prerequisite" // prerequisites entry, directed prereq -> concept
)

// Visual is the color pair used to draw a node.
type Visual struct {
	Fill   string `json:"fill"`
	Stroke string `json:"stroke"`
}

// Palette maps each status to its visual.
var Palette = map[mastery.Status]Visual{
	mastery.StatusWeak:       {Fill: "#fee2e2", Stroke: "#ef4444"},
	mastery.StatusDeveloping: {Fill: "#fef3c7", Stroke: "#f59e0b"},
	mastery.StatusStrong:     {Fill: "#dbeafe", Stroke: "#3b82f6"},
	mastery.StatusMastered:   {Fill: "#dcfce7", Stroke: "#22c55e"},
}

// Node represents one concept in the graph.
type Node struct {
	ID         string         `json:"id"` // concept key
	Label      string         `json:"label"`
	Subject    string         `json:"subject"`
	Status     mastery.Status `json:"status"`
	Mastery    int            `json:"mastery"`
	Importance float64        `json:"importance"`
	NextReview *time.Time     `json:"next_review,omitempty"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Size       float64        `json:"size"`
	Visual     Visual         `json:"visual"`
}

// Link represents an edge between two concepts.
type Link struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"` // 0-1
}

// Stats contains aggregate numbers over the projected concepts.
type Stats struct {
	Total          int                    `json:"total"`
	AverageMastery int                    `json:"average_mastery"`
	Overdue        int                    `json:"overdue"`
	DueSoon        int                    `json:"due_soon"`
	ByStatus       map[mastery.Status]int `json:"by_status"`
}

// ConceptGraph is the derived graph view. It is never persisted.
type ConceptGraph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
	Stats Stats  `json:"stats"`
}

// Anchor is the polar position a subject cluster is laid out around.
type Anchor struct {
	Angle  float64 `json:"angle"`  // radians
	Radius float64 `json:"radius"` // pixels
}

// Layout constants.
const (
	BaseNodeSize       = 12.0
	ImportanceSizeSpan = 20.0
	MinAnchorRadius    = 180.0
	MaxAnchorRadius    = 320.0
	Jitter             = 60.0
	// DueSoonDays is the horizon for the due-soon count.
	DueSoonDays = 3.0
)

// Config controls a single BuildGraph call.
type Config struct {
	// Rand drives anchor placement and jitter. Nil means a freshly seeded source,
	// so repeated builds of the same input are laid out differently.
	Rand *rand.Rand
	// Anchors pins subjects to fixed anchors. Subjects missing here get a random anchor.
	Anchors map[string]Anchor
	// Now is the reference time for the overdue and due-soon stats.
	Now time.Time
}
