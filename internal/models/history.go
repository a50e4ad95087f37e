package models

import "time"

// ActionSnapshot is the pre-mutation state retained inside an action history
// record. Its lifetime is exactly one record; undo consumes it.
type ActionSnapshot struct {
	Holding       *Holding      `json:"holding,omitempty"`        // pre-mutation copy (nil for pure creates)
	CreatedID     string        `json:"created_id,omitempty"`     // id of the record the action created
	Yearly        *YearlyRecord `json:"yearly,omitempty"`         // pre-mutation yearly record
	YearlyCreated bool          `json:"yearly_created,omitempty"` // the yearly record was newly created
	Cascaded      bool          `json:"cascaded,omitempty"`       // a reduce hit zero and deleted the holding
}

// ActionHistory is one append-only record of a processed mutation.
// Never mutated after creation.
type ActionHistory struct {
	ID          string          `json:"id"`
	UserInput   string          `json:"user_input"`
	ActionTaken ActionKind      `json:"action_taken"`
	Success     bool            `json:"success"`
	PatternUsed string          `json:"pattern_used,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Metadata    *ActionSnapshot `json:"metadata,omitempty"`
}

// MaxPatternExamples bounds the example utterances kept per pattern.
const MaxPatternExamples = 5

// UserPattern is a generalized template of a successful instruction, e.g.
// "rename {entity} to {new_name}". Success rate is an incremental mean.
type UserPattern struct {
	ID          string    `json:"id"`
	Template    string    `json:"template"`
	SuccessRate float64   `json:"success_rate"`
	UsageCount  int       `json:"usage_count"`
	LastUsed    time.Time `json:"last_used"`
	Examples    []string  `json:"examples,omitempty"`
}

// RecordUse folds one more observed outcome into the rolling success rate:
// newRate = (oldRate·oldCount + outcome) / newCount.
func (p *UserPattern) RecordUse(example string, success bool, now time.Time) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	oldCount := float64(p.UsageCount)
	p.UsageCount++
	p.SuccessRate = (p.SuccessRate*oldCount + outcome) / float64(p.UsageCount)
	p.LastUsed = now

	if example != "" {
		for _, e := range p.Examples {
			if e == example {
				return
			}
		}
		p.Examples = append(p.Examples, example)
		if len(p.Examples) > MaxPatternExamples {
			p.Examples = p.Examples[len(p.Examples)-MaxPatternExamples:]
		}
	}
}
