package actions

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// workflowFile mirrors the top-level structure of a GitHub Actions workflow
// file. Jobs are kept as a raw yaml.Node so declaration order survives the
// decode; YAML maps are ordered, Go maps are not.
type workflowFile struct {
	Name        string       `yaml:"name"`
	On          *onSection   `yaml:"on"`
	Concurrency *concurrency `yaml:"concurrency"`
	Jobs        yaml.Node    `yaml:"jobs"`
}

// onSection accepts the three shapes GitHub allows for the `on` key: a single
// event name, a list of event names, or a map of event name to filters.
type onSection struct {
	Push     *pushFilter
	Schedule []scheduleEntry
	Dispatch bool
}

type pushFilter struct {
	Branches stringList `yaml:"branches"`
	Tags     stringList `yaml:"tags"`
}

type scheduleEntry struct {
	Cron string `yaml:"cron"`
}

type concurrency struct {
	Group            string `yaml:"group"`
	CancelInProgress bool   `yaml:"cancel-in-progress"`
}

type jobEntry struct {
	Uses     string         `yaml:"uses"`
	Needs    stringList     `yaml:"needs"`
	With     map[string]any `yaml:"with"`
	Strategy *strategy      `yaml:"strategy"`
}

type strategy struct {
	Matrix *matrixSection `yaml:"matrix"`
}

type matrixSection struct {
	Include []matrixInclude `yaml:"include"`
}

type matrixInclude struct {
	Config    string `yaml:"config"`
	Shard     int    `yaml:"shard"`
	NumShards int    `yaml:"num_shards"`
	Runner    string `yaml:"runner"`
}

// stringList accepts either a single scalar or a sequence of scalars, the way
// GitHub treats `needs` and branch filters.
type stringList []string

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*s = []string{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

func (o *onSection) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var event string
		if err := node.Decode(&event); err != nil {
			return err
		}
		return o.addEvent(event, nil)
	case yaml.SequenceNode:
		var events []string
		if err := node.Decode(&events); err != nil {
			return err
		}
		for _, event := range events {
			if err := o.addEvent(event, nil); err != nil {
				return err
			}
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i < len(node.Content)-1; i += 2 {
			key := node.Content[i].Value
			if err := o.addEvent(key, node.Content[i+1]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: unsupported `on` section shape", node.Line)
	}
}

func (o *onSection) addEvent(name string, filters *yaml.Node) error {
	switch name {
	case "push":
		o.Push = &pushFilter{}
		if filters != nil && filters.Kind == yaml.MappingNode {
			return filters.Decode(o.Push)
		}
		return nil
	case "schedule":
		if filters == nil {
			return fmt.Errorf("`schedule` trigger requires a list of cron entries")
		}
		return filters.Decode(&o.Schedule)
	case "workflow_dispatch":
		o.Dispatch = true
		return nil
	default:
		return fmt.Errorf("unsupported trigger event %q", name)
	}
}
