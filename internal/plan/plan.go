// Package plan reads workout plans written in YAML.
//
// A plan lists exercises in order; each set may repeat:
//
//	name: Push Day
//	exercises:
//	  - name: Bench Press
//	    sets:
//	      - {reps: 8, weight: 60, rest: 90, repeat: 3}
//	  - name: Plank
//	    sets:
//	      - {time: 45, rest: 60}
//	      - {time: 60}
package plan

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/claude/spotter/internal/session"
)

// maxRepeat bounds a single set entry's expansion.
const maxRepeat = 50

type Plan struct {
	Name      string     `yaml:"name"`
	Exercises []Exercise `yaml:"exercises"`
}

type Exercise struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Sets        []Set  `yaml:"sets"`
}

// Set is one planned set. Time and Rest are in seconds.
type Set struct {
	Reps   int     `yaml:"reps"`
	Weight float64 `yaml:"weight"`
	Time   int     `yaml:"time"`
	Rest   int     `yaml:"rest"`
	Repeat int     `yaml:"repeat"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("plan validation: %w", err)
	}
	return &p, nil
}

func (p *Plan) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Exercises) == 0 {
		return fmt.Errorf("at least one exercise is required")
	}
	for i, ex := range p.Exercises {
		if ex.Name == "" {
			return fmt.Errorf("exercise %d: name is required", i+1)
		}
		if len(ex.Sets) == 0 {
			return fmt.Errorf("%s: at least one set is required", ex.Name)
		}
		for j, s := range ex.Sets {
			if s.Reps < 0 || s.Weight < 0 || s.Time < 0 || s.Rest < 0 {
				return fmt.Errorf("%s set %d: values must not be negative", ex.Name, j+1)
			}
			if s.Reps == 0 && s.Time == 0 {
				return fmt.Errorf("%s set %d: reps or time is required", ex.Name, j+1)
			}
			if s.Repeat < 0 || s.Repeat > maxRepeat {
				return fmt.Errorf("%s set %d: repeat must be between 0 and %d", ex.Name, j+1, maxRepeat)
			}
		}
	}
	return nil
}

// Session expands the plan into an unsaved session. Set numbers start at 1
// within each exercise.
func (p *Plan) Session() session.Session {
	s := session.Session{Name: p.Name, Exercises: make([]session.Exercise, 0, len(p.Exercises))}
	for _, ex := range p.Exercises {
		out := session.Exercise{Name: ex.Name, Description: ex.Description}
		for _, set := range ex.Sets {
			n := max(set.Repeat, 1)
			for range n {
				out.Sets = append(out.Sets, session.Set{
					Number:        len(out.Sets) + 1,
					TargetReps:    set.Reps,
					TargetWeight:  set.Weight,
					TargetTime:    set.Time,
					RestTimeAfter: set.Rest,
				})
			}
		}
		s.Exercises = append(s.Exercises, out)
	}
	return s
}
