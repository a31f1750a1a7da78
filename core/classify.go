package core

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// ClassifyStrategy is one stage of the billable/non-billable decision
// chain. Attempt returns ok=false when the stage cannot produce a
// sufficiently confident decision and the next stage should run.
type ClassifyStrategy interface {
	Name() string
	Available() bool
	Attempt(block *schema.ProposedBlock, ev schema.EvidenceSignals) (schema.Category, float64, bool)
}

// HybridClassifier runs the stages in order and records which one
// decided. The final rule stage is total, so Classify always decides.
type HybridClassifier struct {
	stages        []ClassifyStrategy
	minConfidence float64
}

// NewHybridClassifier builds the standard chain from the config: decision
// tree, then logistic model, then deterministic rules. Missing model
// files leave their stage unavailable rather than failing construction.
func NewHybridClassifier(cfg *contract.Config) *HybridClassifier {
	return &HybridClassifier{
		stages: []ClassifyStrategy{
			loadTreeStrategy(cfg.TreeModelPath),
			loadLogisticStrategy(cfg.LogisticModelPath),
			&RuleStrategy{},
		},
		minConfidence: cfg.MinConfidence,
	}
}

// Classify assigns the block's category, confidence, and deciding stage
// in place. A stage decides only when available and at or above the
// configured confidence floor; the rule stage always decides.
func (h *HybridClassifier) Classify(block *schema.ProposedBlock, ev schema.EvidenceSignals) {
	for _, stage := range h.stages {
		if !stage.Available() {
			continue
		}
		category, confidence, ok := stage.Attempt(block, ev)
		if !ok {
			continue
		}
		if confidence < h.minConfidence && stage.Name() != stageRules {
			continue
		}
		block.Category = category
		block.Confidence = confidence
		block.DecidedBy = stage.Name()
		if category == schema.PendingCategory {
			block.FlaggedForReview = true
		}
		return
	}
	// Unreachable while the rule stage is present, kept as a hard floor.
	block.Category = schema.PendingCategory
	block.Confidence = 0
	block.DecidedBy = stageRules
	block.FlaggedForReview = true
}

// Health reports each stage's availability without classifying anything.
func (h *HybridClassifier) Health() []schema.StageHealth {
	out := make([]schema.StageHealth, 0, len(h.stages))
	for _, stage := range h.stages {
		health := schema.StageHealth{Stage: stage.Name(), Available: stage.Available()}
		if d, ok := stage.(interface{ Detail() string }); ok {
			health.Detail = d.Detail()
		}
		out = append(out, health)
	}
	return out
}

// Degradations lists unavailable stages for the run summary.
func (h *HybridClassifier) Degradations() []string {
	var out []string
	for _, stage := range h.stages {
		if !stage.Available() {
			out = append(out, fmt.Sprintf("classifier stage %s unavailable", stage.Name()))
		}
	}
	return out
}

const (
	stageTree     = "tree"
	stageLogistic = "logistic"
	stageRules    = "rules"
)

// featureVector flattens a block and its evidence into the numeric
// features both model stages score on.
func featureVector(block *schema.ProposedBlock, ev schema.EvidenceSignals) map[string]float64 {
	boolFeature := func(v bool) float64 {
		if v {
			return 1
		}
		return 0
	}
	var matchConfidence, isFallback float64
	if block.Match != nil {
		matchConfidence = block.Match.Confidence
		isFallback = boolFeature(block.Match.Method == schema.FallbackMatch)
	}
	duration := block.Duration().Seconds()
	var idleRatio float64
	if duration > 0 {
		idleRatio = float64(block.TotalIdleSecs) / duration
	}
	return map[string]float64{
		"match_confidence": matchConfidence,
		"is_fallback":      isFallback,
		"idle_ratio":       idleRatio,
		"duration_hours":   duration / 3600,
		"identifier_count": float64(len(ev.Identifiers)),
		"keyword_count":    float64(len(ev.Keywords)),
		"domain_count":     float64(len(ev.Domains)),
		"has_meeting":      boolFeature(ev.HasOnlineMeeting),
		"has_recurring":    boolFeature(ev.HasRecurringMeeting),
		"app_count":        float64(len(block.Breakdown.Shares)),
	}
}

// treeModel is a serialized binary decision tree. Nodes index into the
// flat Nodes slice; a node with an empty Feature is a leaf.
type treeModel struct {
	Version int        `json:"version"`
	Nodes   []treeNode `json:"nodes"`
}

type treeNode struct {
	Feature    string  `json:"feature,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	Left       int     `json:"left,omitempty"`
	Right      int     `json:"right,omitempty"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TreeStrategy scores blocks with a pre-trained decision tree.
type TreeStrategy struct {
	model *treeModel
	err   error
}

func loadTreeStrategy(path string) *TreeStrategy {
	s := &TreeStrategy{}
	s.model, s.err = readTreeModel(path)
	return s
}

func readTreeModel(path string) (*treeModel, error) {
	if path == "" {
		return nil, fmt.Errorf("no tree model configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tree model unreadable: %w", err)
	}
	var model treeModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("tree model malformed: %w", err)
	}
	if len(model.Nodes) == 0 {
		return nil, fmt.Errorf("tree model has no nodes")
	}
	return &model, nil
}

func (s *TreeStrategy) Name() string    { return stageTree }
func (s *TreeStrategy) Available() bool { return s.model != nil }

func (s *TreeStrategy) Detail() string {
	if s.err != nil {
		return s.err.Error()
	}
	return fmt.Sprintf("%d nodes", len(s.model.Nodes))
}

func (s *TreeStrategy) Attempt(block *schema.ProposedBlock, ev schema.EvidenceSignals) (schema.Category, float64, bool) {
	features := featureVector(block, ev)
	idx := 0
	for steps := 0; steps <= len(s.model.Nodes); steps++ {
		if idx < 0 || idx >= len(s.model.Nodes) {
			return "", 0, false
		}
		node := s.model.Nodes[idx]
		if node.Feature == "" {
			category := schema.Category(node.Category)
			if _, ok := schema.ValidCategories[category]; !ok {
				return "", 0, false
			}
			return category, node.Confidence, true
		}
		if features[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	// Cycle in the node graph.
	return "", 0, false
}

// logisticModel is a serialized logistic regression over the feature
// vector, predicting the probability a block is billable.
type logisticModel struct {
	Version int                `json:"version"`
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

// LogisticStrategy scores blocks with a pre-trained logistic model.
type LogisticStrategy struct {
	model *logisticModel
	err   error
}

func loadLogisticStrategy(path string) *LogisticStrategy {
	s := &LogisticStrategy{}
	s.model, s.err = readLogisticModel(path)
	return s
}

func readLogisticModel(path string) (*logisticModel, error) {
	if path == "" {
		return nil, fmt.Errorf("no logistic model configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("logistic model unreadable: %w", err)
	}
	var model logisticModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("logistic model malformed: %w", err)
	}
	if len(model.Weights) == 0 {
		return nil, fmt.Errorf("logistic model has no weights")
	}
	return &model, nil
}

func (s *LogisticStrategy) Name() string    { return stageLogistic }
func (s *LogisticStrategy) Available() bool { return s.model != nil }

func (s *LogisticStrategy) Detail() string {
	if s.err != nil {
		return s.err.Error()
	}
	return fmt.Sprintf("%d weights", len(s.model.Weights))
}

func (s *LogisticStrategy) Attempt(block *schema.ProposedBlock, ev schema.EvidenceSignals) (schema.Category, float64, bool) {
	features := featureVector(block, ev)
	z := s.model.Bias
	for name, weight := range s.model.Weights {
		z += weight * features[name]
	}
	p := 1 / (1 + math.Exp(-z))

	category := schema.BillableCategory
	confidence := p
	if p < 0.5 {
		category = schema.NonBillableCategory
		confidence = 1 - p
	}
	return category, confidence, true
}

// Rule confidence tiers. The rule stage is deterministic and total, so
// these express how decisive each rule is, not a model probability.
const (
	ruleConfidenceStrong   = 0.90
	ruleConfidenceModerate = 0.70
	ruleConfidenceWeak     = 0.50
)

// RuleStrategy is the deterministic floor of the chain. It always
// produces a decision.
type RuleStrategy struct{}

func (s *RuleStrategy) Name() string    { return stageRules }
func (s *RuleStrategy) Available() bool { return true }

func (s *RuleStrategy) Attempt(block *schema.ProposedBlock, ev schema.EvidenceSignals) (schema.Category, float64, bool) {
	// Personal activity is never billable, regardless of any match.
	if block.FlaggedForReview && containsReason(block.ReviewReasons, "personal browsing detected") {
		return schema.NonBillableCategory, ruleConfidenceStrong, true
	}

	duration := block.Duration().Seconds()
	if duration > 0 && float64(block.TotalIdleSecs)/duration > 0.5 {
		return schema.NonBillableCategory, ruleConfidenceModerate, true
	}

	if block.Match != nil {
		switch {
		case block.Match.Method == schema.ExactCodeMatch:
			return schema.BillableCategory, ruleConfidenceStrong, true
		case block.Match.Method == schema.FallbackMatch:
			return schema.PendingCategory, ruleConfidenceWeak, true
		case block.Match.Confidence >= contract.DefaultFuzzyThreshold:
			confidence := ruleConfidenceModerate
			if ev.HasOnlineMeeting {
				confidence = ruleConfidenceStrong
			}
			return schema.BillableCategory, confidence, true
		}
	}

	// Client meeting with no project match still reads as work.
	if ev.HasOnlineMeeting && len(ev.Domains) > 0 {
		return schema.BillableCategory, ruleConfidenceWeak, true
	}

	return schema.PendingCategory, ruleConfidenceWeak, true
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
