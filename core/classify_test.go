package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorales/segmint/schema"
)

func classifyBlock(match *schema.ProjectMatch) *schema.ProposedBlock {
	return &schema.ProposedBlock{
		Start: at(9, 0, 0),
		End:   at(10, 0, 0),
		Match: match,
	}
}

func writeModelFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRuleStrategy(t *testing.T) {
	tests := []struct {
		name           string
		block          *schema.ProposedBlock
		ev             schema.EvidenceSignals
		wantCategory   schema.Category
		wantConfidence float64
	}{
		{
			name: "personal is never billable",
			block: &schema.ProposedBlock{
				Start: at(9, 0, 0), End: at(10, 0, 0),
				Match:            &schema.ProjectMatch{Code: "A", Method: schema.ExactCodeMatch, Confidence: 1},
				FlaggedForReview: true,
				ReviewReasons:    []string{"personal browsing detected"},
			},
			wantCategory:   schema.NonBillableCategory,
			wantConfidence: ruleConfidenceStrong,
		},
		{
			name: "mostly idle",
			block: &schema.ProposedBlock{
				Start: at(9, 0, 0), End: at(10, 0, 0),
				TotalIdleSecs: 2400,
			},
			wantCategory:   schema.NonBillableCategory,
			wantConfidence: ruleConfidenceModerate,
		},
		{
			name:           "exact code match",
			block:          classifyBlock(&schema.ProjectMatch{Code: "ACME-1", Method: schema.ExactCodeMatch, Confidence: 1}),
			wantCategory:   schema.BillableCategory,
			wantConfidence: ruleConfidenceStrong,
		},
		{
			name:           "fallback match stays pending",
			block:          classifyBlock(&schema.ProjectMatch{Code: "GA-000", Method: schema.FallbackMatch, Confidence: 0.1}),
			wantCategory:   schema.PendingCategory,
			wantConfidence: ruleConfidenceWeak,
		},
		{
			name:           "confident fuzzy match",
			block:          classifyBlock(&schema.ProjectMatch{Code: "ACME-1", Method: schema.FuzzyTextMatch, Confidence: 0.6}),
			wantCategory:   schema.BillableCategory,
			wantConfidence: ruleConfidenceModerate,
		},
		{
			name:           "fuzzy match during a meeting",
			block:          classifyBlock(&schema.ProjectMatch{Code: "ACME-1", Method: schema.FuzzyTextMatch, Confidence: 0.6}),
			ev:             schema.EvidenceSignals{HasOnlineMeeting: true},
			wantCategory:   schema.BillableCategory,
			wantConfidence: ruleConfidenceStrong,
		},
		{
			name:           "client meeting without a match",
			block:          classifyBlock(nil),
			ev:             schema.EvidenceSignals{HasOnlineMeeting: true, Domains: []string{"acme.com"}},
			wantCategory:   schema.BillableCategory,
			wantConfidence: ruleConfidenceWeak,
		},
		{
			name:           "nothing decisive",
			block:          classifyBlock(nil),
			wantCategory:   schema.PendingCategory,
			wantConfidence: ruleConfidenceWeak,
		},
	}

	s := &RuleStrategy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, confidence, ok := s.Attempt(tt.block, tt.ev)
			require.True(t, ok)
			assert.Equal(t, tt.wantCategory, category)
			assert.Equal(t, tt.wantConfidence, confidence)
		})
	}
}

func TestHybridClassifierTreeDecides(t *testing.T) {
	cfg := newTestConfig()
	cfg.TreeModelPath = writeModelFile(t, "tree.json", `{
		"version": 2,
		"nodes": [
			{"feature": "match_confidence", "threshold": 0.5, "left": 1, "right": 2},
			{"category": "pending", "confidence": 0.6},
			{"category": "billable", "confidence": 0.95}
		]
	}`)
	h := NewHybridClassifier(cfg)

	block := classifyBlock(&schema.ProjectMatch{Code: "ACME-1", Method: schema.ExactCodeMatch, Confidence: 1})
	h.Classify(block, schema.EvidenceSignals{})

	assert.Equal(t, schema.BillableCategory, block.Category)
	assert.Equal(t, 0.95, block.Confidence)
	assert.Equal(t, stageTree, block.DecidedBy)
	assert.False(t, block.FlaggedForReview)
}

func TestHybridClassifierConfidenceFloor(t *testing.T) {
	cfg := newTestConfig()
	// The tree answers, but below the floor; rules take over.
	cfg.TreeModelPath = writeModelFile(t, "tree.json", `{
		"version": 2,
		"nodes": [{"category": "billable", "confidence": 0.3}]
	}`)
	h := NewHybridClassifier(cfg)

	block := classifyBlock(&schema.ProjectMatch{Code: "ACME-1", Method: schema.ExactCodeMatch, Confidence: 1})
	h.Classify(block, schema.EvidenceSignals{})

	assert.Equal(t, stageRules, block.DecidedBy)
	assert.Equal(t, schema.BillableCategory, block.Category)
}

func TestHybridClassifierLogisticFallback(t *testing.T) {
	cfg := newTestConfig()
	cfg.LogisticModelPath = writeModelFile(t, "logistic.json", `{
		"version": 2,
		"bias": -1.0,
		"weights": {"match_confidence": 4.0}
	}`)
	h := NewHybridClassifier(cfg)

	block := classifyBlock(&schema.ProjectMatch{Code: "ACME-1", Method: schema.ExactCodeMatch, Confidence: 1})
	h.Classify(block, schema.EvidenceSignals{})

	assert.Equal(t, stageLogistic, block.DecidedBy)
	assert.Equal(t, schema.BillableCategory, block.Category)
	assert.Greater(t, block.Confidence, 0.9)
}

func TestHybridClassifierPendingFlagsReview(t *testing.T) {
	h := NewHybridClassifier(newTestConfig())

	block := classifyBlock(nil)
	h.Classify(block, schema.EvidenceSignals{})

	assert.Equal(t, schema.PendingCategory, block.Category)
	assert.Equal(t, stageRules, block.DecidedBy)
	assert.True(t, block.FlaggedForReview)
}

func TestHybridClassifierHealthAndDegradations(t *testing.T) {
	cfg := newTestConfig()
	cfg.TreeModelPath = writeModelFile(t, "tree.json", `not json`)
	h := NewHybridClassifier(cfg)

	health := h.Health()
	require.Len(t, health, 3)
	assert.Equal(t, stageTree, health[0].Stage)
	assert.False(t, health[0].Available)
	assert.Contains(t, health[0].Detail, "malformed")
	assert.False(t, health[1].Available)
	assert.True(t, health[2].Available)

	degradations := h.Degradations()
	assert.Len(t, degradations, 2)
	assert.Contains(t, degradations[0], stageTree)
}

func TestTreeStrategyRejectsBadModels(t *testing.T) {
	block := classifyBlock(nil)

	t.Run("unknown leaf category", func(t *testing.T) {
		s := loadTreeStrategy(writeModelFile(t, "tree.json", `{
			"version": 2,
			"nodes": [{"category": "maybe", "confidence": 0.9}]
		}`))
		require.True(t, s.Available())
		_, _, ok := s.Attempt(block, schema.EvidenceSignals{})
		assert.False(t, ok)
	})

	t.Run("cyclic node graph", func(t *testing.T) {
		s := loadTreeStrategy(writeModelFile(t, "tree.json", `{
			"version": 2,
			"nodes": [{"feature": "idle_ratio", "threshold": 0.5, "left": 0, "right": 0}]
		}`))
		require.True(t, s.Available())
		_, _, ok := s.Attempt(block, schema.EvidenceSignals{})
		assert.False(t, ok)
	})
}

func TestLogisticStrategyBelowHalfIsNonBillable(t *testing.T) {
	s := loadLogisticStrategy(writeModelFile(t, "logistic.json", `{
		"version": 2,
		"bias": -2.0,
		"weights": {"idle_ratio": 1.0}
	}`))
	require.True(t, s.Available())

	category, confidence, ok := s.Attempt(classifyBlock(nil), schema.EvidenceSignals{})
	require.True(t, ok)
	assert.Equal(t, schema.NonBillableCategory, category)
	assert.Greater(t, confidence, 0.5)
}
